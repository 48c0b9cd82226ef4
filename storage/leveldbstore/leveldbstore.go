// Package leveldbstore implements pathoram.Storage using leveldb.
// A path overwrite is written as a single batch.
package leveldbstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	pathoram "github.com/etclab/pathoram-kv"
)

// Store is a leveldb-backed bucket tree.
type Store struct {
	db         *leveldb.DB
	tree       pathoram.Tree
	bucketSize int
	wo         *opt.WriteOptions
}

var _ pathoram.Storage = (*Store)(nil)

// Open opens the database at path; an empty path uses leveldb's memory storage.
func Open(path string, numLevels, bucketSize int) (*Store, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return Wrap(db, numLevels, bucketSize), nil
}

// Wrap uses an open leveldb.DB as bucket storage (with Sync:true).
func Wrap(db *leveldb.DB, numLevels, bucketSize int) *Store {
	return &Store{
		db:         db,
		tree:       pathoram.NewTree(numLevels),
		bucketSize: bucketSize,
		wo:         &opt.WriteOptions{Sync: true},
	}
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nodeKey(idx int) []byte {
	k := make([]byte, 9)
	k[0] = 'n'
	binary.BigEndian.PutUint64(k[1:], uint64(idx))
	return k
}

func (s *Store) get(idx int) (pathoram.Bucket, error) {
	raw, err := s.db.Get(nodeKey(idx), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return make(pathoram.Bucket, s.bucketSize), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node %d: %w", idx, err)
	}
	bucket, _, err := pathoram.DecodeBucket(raw)
	if err != nil {
		return nil, fmt.Errorf("decode node %d: %w", idx, err)
	}
	return bucket, nil
}

// TraversePath reads the buckets from leaf to root.
func (s *Store) TraversePath(leaf int) ([]pathoram.Bucket, error) {
	if err := pathoram.CheckLeaf(s.tree, leaf); err != nil {
		return nil, err
	}
	path := s.tree.Path(leaf)
	result := make([]pathoram.Bucket, len(path))
	for i, idx := range path {
		b, err := s.get(idx)
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

// OverwritePath validates the path and writes it as one batch.
func (s *Store) OverwritePath(leaf int, buckets []pathoram.Bucket) error {
	if err := pathoram.CheckPath(s.tree, s.bucketSize, leaf, buckets); err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	for i, idx := range s.tree.Path(leaf) {
		batch.Put(nodeKey(idx), pathoram.EncodeBucket(nil, buckets[i]))
	}
	return s.db.Write(batch, s.wo)
}

// GetBucket returns the bucket at idx.
func (s *Store) GetBucket(idx int) (pathoram.Bucket, error) {
	if err := pathoram.CheckNode(s.tree, idx); err != nil {
		return nil, err
	}
	return s.get(idx)
}

// PutBucket replaces the bucket at idx.
func (s *Store) PutBucket(idx int, bucket pathoram.Bucket) error {
	if err := pathoram.CheckNode(s.tree, idx); err != nil {
		return err
	}
	if err := pathoram.CheckBucket(bucket, s.bucketSize); err != nil {
		return err
	}
	return s.db.Put(nodeKey(idx), pathoram.EncodeBucket(nil, bucket), s.wo)
}

// NumLevels returns the number of tree levels.
func (s *Store) NumLevels() int { return s.tree.NumLevels() }

// BucketSize returns slots per bucket.
func (s *Store) BucketSize() int { return s.bucketSize }
