package badgerstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pathoram "github.com/etclab/pathoram-kv"
)

func bucketOf(z int, tag byte) pathoram.Bucket {
	b := make(pathoram.Bucket, z)
	for i := range b {
		b[i] = pathoram.EncryptedBlob{tag, byte(i)}
	}
	return b
}

func openTest(t *testing.T, dir string, levels, z int) *Store {
	t.Helper()
	s, err := Open(dir, levels, z, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Paths(t *testing.T) {
	s := openTest(t, "", 3, 2)

	// unwritten nodes read as unset slots
	fresh, err := s.GetBucket(5)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
	assert.Empty(t, fresh[0])

	path := []pathoram.Bucket{bucketOf(2, 5), bucketOf(2, 2), bucketOf(2, 1)}
	require.NoError(t, s.OverwritePath(5, path))
	got, err := s.TraversePath(5)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	require.NoError(t, s.PutBucket(3, bucketOf(2, 3)))
	b, err := s.GetBucket(3)
	require.NoError(t, err)
	assert.Equal(t, bucketOf(2, 3), b)
	assert.Equal(t, 3, s.NumLevels())
	assert.Equal(t, 2, s.BucketSize())
}

func TestStore_Rejects(t *testing.T) {
	s := openTest(t, "", 3, 2)
	require.NoError(t, s.OverwritePath(4, []pathoram.Bucket{bucketOf(2, 4), bucketOf(2, 2), bucketOf(2, 1)}))

	_, err := s.TraversePath(2)
	assert.ErrorIs(t, err, pathoram.ErrOutOfRange)
	_, err = s.GetBucket(0)
	assert.ErrorIs(t, err, pathoram.ErrOutOfRange)
	assert.ErrorIs(t, s.PutBucket(9, bucketOf(2, 0)), pathoram.ErrOutOfRange)

	err = s.OverwritePath(4, []pathoram.Bucket{bucketOf(2, 40), bucketOf(1, 20), bucketOf(2, 10)})
	assert.ErrorIs(t, err, pathoram.ErrShapeMismatch)
	got, err := s.TraversePath(4)
	require.NoError(t, err)
	assert.Equal(t, bucketOf(2, 4), got[0])
}

func TestStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 2, 1, nil)
	require.NoError(t, err)
	require.NoError(t, s.PutBucket(1, bucketOf(1, 7)))
	require.NoError(t, s.Close())

	s = openTest(t, dir, 2, 1)
	b, err := s.GetBucket(1)
	require.NoError(t, err)
	assert.Equal(t, bucketOf(1, 7), b)
}

func TestStore_ORAM(t *testing.T) {
	s := openTest(t, "", 4, 4)
	cfg := pathoram.Config{NumLevels: 4, BucketSize: 4}
	key, err := pathoram.NewSessionKey()
	require.NoError(t, err)
	codec, err := pathoram.NewCodecFromConfig(cfg, key)
	require.NoError(t, err)
	o, err := pathoram.New(cfg, s, codec)
	require.NoError(t, err)

	for _, kv := range [][2]string{{"a", "apple"}, {"b", "banana"}, {"c", "cherry"}, {"c", "coconut"}} {
		require.NoError(t, o.Write(kv[0], []byte(kv[1])))
	}
	got, ok, err := o.Read("c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "coconut", string(got))
	assert.NoError(t, o.Verify())
}
