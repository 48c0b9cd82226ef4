package pathoram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledBucket(z int, tag byte) Bucket {
	b := make(Bucket, z)
	for i := range b {
		b[i] = EncryptedBlob{tag, byte(i)}
	}
	return b
}

func filledPath(levels, z int, tag byte) []Bucket {
	path := make([]Bucket, levels)
	for i := range path {
		path[i] = filledBucket(z, tag+byte(i))
	}
	return path
}

func TestInMemoryStorage_PathOrder(t *testing.T) {
	s := NewInMemoryStorage(3, 2)
	for idx := 1; idx <= 7; idx++ {
		require.NoError(t, s.PutBucket(idx, filledBucket(2, byte(idx))))
	}

	path, err := s.TraversePath(6)
	require.NoError(t, err)
	require.Len(t, path, 3)
	// leaf first, root last
	assert.Equal(t, filledBucket(2, 6), path[0])
	assert.Equal(t, filledBucket(2, 3), path[1])
	assert.Equal(t, filledBucket(2, 1), path[2])

	require.NoError(t, s.OverwritePath(5, filledPath(3, 2, 100)))
	for i, idx := range []int{5, 2, 1} {
		got, err := s.GetBucket(idx)
		require.NoError(t, err)
		assert.Equal(t, filledBucket(2, 100+byte(i)), got)
	}
	// sibling untouched
	got, err := s.GetBucket(4)
	require.NoError(t, err)
	assert.Equal(t, filledBucket(2, 4), got)
}

func TestInMemoryStorage_OutOfRange(t *testing.T) {
	s := NewInMemoryStorage(3, 2)

	for _, leaf := range []int{0, 1, 3, 8, -1} {
		_, err := s.TraversePath(leaf)
		assert.ErrorIs(t, err, ErrOutOfRange, "traverse %d", leaf)
		assert.ErrorIs(t, s.OverwritePath(leaf, filledPath(3, 2, 0)), ErrOutOfRange, "overwrite %d", leaf)
	}
	for _, idx := range []int{0, 8, -3} {
		_, err := s.GetBucket(idx)
		assert.ErrorIs(t, err, ErrOutOfRange)
		assert.ErrorIs(t, s.PutBucket(idx, filledBucket(2, 0)), ErrOutOfRange)
	}
}

func TestInMemoryStorage_ShapeMismatchWritesNothing(t *testing.T) {
	s := NewInMemoryStorage(3, 2)
	require.NoError(t, s.OverwritePath(4, filledPath(3, 2, 1)))
	before, err := s.TraversePath(4)
	require.NoError(t, err)

	tests := map[string][]Bucket{
		"short path":      filledPath(2, 2, 50),
		"long path":       filledPath(4, 2, 50),
		"short bucket":    {filledBucket(2, 50), filledBucket(1, 51), filledBucket(2, 52)},
		"wide bucket":     {filledBucket(2, 50), filledBucket(2, 51), filledBucket(3, 52)},
		"empty slot":      {filledBucket(2, 50), {EncryptedBlob{1}, nil}, filledBucket(2, 52)},
		"blank root slot": {filledBucket(2, 50), filledBucket(2, 51), {EncryptedBlob{}, EncryptedBlob{1}}},
	}
	for name, buckets := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, s.OverwritePath(4, buckets), ErrShapeMismatch)
			after, err := s.TraversePath(4)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}

	assert.ErrorIs(t, s.PutBucket(1, filledBucket(3, 0)), ErrShapeMismatch)
}

func TestInMemoryStorage_ReturnsCopies(t *testing.T) {
	s := NewInMemoryStorage(2, 2)
	in := filledPath(2, 2, 10)
	require.NoError(t, s.OverwritePath(2, in))

	in[0][0][0] = 0xFF
	out, err := s.TraversePath(2)
	require.NoError(t, err)
	assert.Equal(t, byte(10), out[0][0][0])

	out[1][1][0] = 0xEE
	root, err := s.GetBucket(1)
	require.NoError(t, err)
	assert.Equal(t, byte(11), root[1][0])
}

func TestEncodeDecodeBucket(t *testing.T) {
	bucket := Bucket{EncryptedBlob("abc"), EncryptedBlob{}, EncryptedBlob("0123456789")}
	raw := EncodeBucket([]byte("prefix"), bucket)

	got, rest, err := DecodeBucket(raw[len("prefix"):])
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.Len(t, got, 3)
	assert.Equal(t, EncryptedBlob("abc"), got[0])
	assert.Empty(t, got[1])
	assert.Equal(t, EncryptedBlob("0123456789"), got[2])

	two := EncodeBucket(EncodeBucket(nil, bucket), Bucket{EncryptedBlob("x")})
	_, rest, err = DecodeBucket(two)
	require.NoError(t, err)
	second, rest, err := DecodeBucket(rest)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, Bucket{EncryptedBlob("x")}, second)
}

func TestDecodeBucket_Truncated(t *testing.T) {
	raw := EncodeBucket(nil, filledBucket(3, 7))
	for n := 0; n < len(raw); n++ {
		_, _, err := DecodeBucket(raw[:n])
		assert.ErrorIs(t, err, ErrShapeMismatch, "prefix of %d bytes", n)
	}

	// absurd slot count
	huge := EncodeBucket(nil, nil)
	huge[7] = 0x7F
	_, _, err := DecodeBucket(huge)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
