// Package badgerstore implements pathoram.Storage on top of badger.
// Each bucket is one key; a path overwrite is one transaction.
package badgerstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	pathoram "github.com/etclab/pathoram-kv"
)

var bucketPrefix = []byte("bucket/")

// Store is a badger-backed bucket tree.
type Store struct {
	db         *badger.DB
	tree       pathoram.Tree
	bucketSize int
}

var _ pathoram.Storage = (*Store)(nil)

// Open opens (or creates) a store in dir. An empty dir keeps everything in
// memory. badger's own logging is routed to log when non-nil.
func Open(dir string, numLevels, bucketSize int, log *logrus.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	if log != nil {
		opts = opts.WithLogger(log)
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, tree: pathoram.NewTree(numLevels), bucketSize: bucketSize}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func bucketKey(idx int) []byte {
	k := make([]byte, len(bucketPrefix)+8)
	copy(k, bucketPrefix)
	binary.BigEndian.PutUint64(k[len(bucketPrefix):], uint64(idx))
	return k
}

// get reads one bucket inside txn. A node never written yet yields a
// bucket of unset slots.
func (s *Store) get(txn *badger.Txn, idx int) (pathoram.Bucket, error) {
	item, err := txn.Get(bucketKey(idx))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return make(pathoram.Bucket, s.bucketSize), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node %d: %w", idx, err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("read node %d: %w", idx, err)
	}
	bucket, _, err := pathoram.DecodeBucket(raw)
	if err != nil {
		return nil, fmt.Errorf("decode node %d: %w", idx, err)
	}
	return bucket, nil
}

// TraversePath reads the buckets from leaf to root in one read transaction.
func (s *Store) TraversePath(leaf int) ([]pathoram.Bucket, error) {
	if err := pathoram.CheckLeaf(s.tree, leaf); err != nil {
		return nil, err
	}
	path := s.tree.Path(leaf)
	result := make([]pathoram.Bucket, len(path))
	err := s.db.View(func(txn *badger.Txn) error {
		for i, idx := range path {
			b, err := s.get(txn, idx)
			if err != nil {
				return err
			}
			result[i] = b
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// OverwritePath validates the path and writes it in one transaction.
func (s *Store) OverwritePath(leaf int, buckets []pathoram.Bucket) error {
	if err := pathoram.CheckPath(s.tree, s.bucketSize, leaf, buckets); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for i, idx := range s.tree.Path(leaf) {
			if err := txn.Set(bucketKey(idx), pathoram.EncodeBucket(nil, buckets[i])); err != nil {
				return fmt.Errorf("set node %d: %w", idx, err)
			}
		}
		return nil
	})
}

// GetBucket returns the bucket at idx.
func (s *Store) GetBucket(idx int) (pathoram.Bucket, error) {
	if err := pathoram.CheckNode(s.tree, idx); err != nil {
		return nil, err
	}
	var bucket pathoram.Bucket
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		bucket, err = s.get(txn, idx)
		return err
	})
	return bucket, err
}

// PutBucket replaces the bucket at idx.
func (s *Store) PutBucket(idx int, bucket pathoram.Bucket) error {
	if err := pathoram.CheckNode(s.tree, idx); err != nil {
		return err
	}
	if err := pathoram.CheckBucket(bucket, s.bucketSize); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(bucketKey(idx), pathoram.EncodeBucket(nil, bucket))
	})
}

// NumLevels returns the number of tree levels.
func (s *Store) NumLevels() int { return s.tree.NumLevels() }

// BucketSize returns slots per bucket.
func (s *Store) BucketSize() int { return s.bucketSize }
