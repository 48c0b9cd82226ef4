package pathoram

import "fmt"

// Storage is the server side of the protocol: a complete binary tree of
// fixed-capacity buckets addressed only by node index. Implementations may
// store data in memory, in a local KV store, or behind a remote boundary.
// Storage never sees keys or plaintext.
type Storage interface {
	// TraversePath returns the buckets on the path from leaf up to the root.
	// It does not modify the tree.
	TraversePath(leaf int) ([]Bucket, error)

	// OverwritePath replaces every bucket on the path from leaf up to the
	// root, in the same order TraversePath returns them. Either every node
	// is written or none is.
	OverwritePath(leaf int, buckets []Bucket) error

	// GetBucket returns the bucket at node idx.
	GetBucket(idx int) (Bucket, error)

	// PutBucket replaces the bucket at node idx.
	PutBucket(idx int, bucket Bucket) error

	// NumLevels returns the number of tree levels.
	NumLevels() int

	// BucketSize returns the number of slots per bucket.
	BucketSize() int
}

// CheckLeaf returns ErrOutOfRange unless leaf is a leaf of t.
func CheckLeaf(t Tree, leaf int) error {
	if !t.IsLeaf(leaf) {
		return fmt.Errorf("%w: leaf %d not in [%d, %d]", ErrOutOfRange, leaf, t.FirstLeaf(), t.LastLeaf())
	}
	return nil
}

// CheckNode returns ErrOutOfRange unless idx is a node of t.
func CheckNode(t Tree, idx int) error {
	if !t.Contains(idx) {
		return fmt.Errorf("%w: node %d not in [1, %d]", ErrOutOfRange, idx, t.NumNodes())
	}
	return nil
}

// CheckBucket returns ErrShapeMismatch unless b has exactly z non-empty slots.
func CheckBucket(b Bucket, z int) error {
	if len(b) != z {
		return fmt.Errorf("%w: bucket has %d slots, want %d", ErrShapeMismatch, len(b), z)
	}
	for i, blob := range b {
		if len(blob) == 0 {
			return fmt.Errorf("%w: slot %d is empty", ErrShapeMismatch, i)
		}
	}
	return nil
}

// CheckPath validates a full OverwritePath argument before anything is written.
func CheckPath(t Tree, z, leaf int, buckets []Bucket) error {
	if err := CheckLeaf(t, leaf); err != nil {
		return err
	}
	if len(buckets) != t.NumLevels() {
		return fmt.Errorf("%w: path has %d buckets, want %d", ErrShapeMismatch, len(buckets), t.NumLevels())
	}
	for i, b := range buckets {
		if err := CheckBucket(b, z); err != nil {
			return fmt.Errorf("level %d: %w", len(buckets)-1-i, err)
		}
	}
	return nil
}

// CloneBucket deep-copies a bucket so callers never alias stored slots.
func CloneBucket(b Bucket) Bucket {
	if b == nil {
		return nil
	}
	out := make(Bucket, len(b))
	for i, blob := range b {
		if blob != nil {
			out[i] = append(EncryptedBlob(nil), blob...)
		}
	}
	return out
}

// InMemoryStorage implements Storage using a 1-indexed slice of buckets.
type InMemoryStorage struct {
	tree       Tree
	buckets    []Bucket // buckets[0] unused
	bucketSize int
}

// NewInMemoryStorage creates a tree of numLevels levels with bucketSize
// slots per node. Slots start unset; the controller formats them with
// encrypted dummies before use.
func NewInMemoryStorage(numLevels, bucketSize int) *InMemoryStorage {
	t := NewTree(numLevels)
	buckets := make([]Bucket, t.NumNodes()+1)
	for i := 1; i < len(buckets); i++ {
		buckets[i] = make(Bucket, bucketSize)
	}
	return &InMemoryStorage{
		tree:       t,
		buckets:    buckets,
		bucketSize: bucketSize,
	}
}

// TraversePath returns copies of the buckets from leaf to root.
func (s *InMemoryStorage) TraversePath(leaf int) ([]Bucket, error) {
	if err := CheckLeaf(s.tree, leaf); err != nil {
		return nil, err
	}
	path := s.tree.Path(leaf)
	result := make([]Bucket, len(path))
	for i, idx := range path {
		result[i] = CloneBucket(s.buckets[idx])
	}
	return result, nil
}

// OverwritePath validates the whole path and then writes it.
func (s *InMemoryStorage) OverwritePath(leaf int, buckets []Bucket) error {
	if err := CheckPath(s.tree, s.bucketSize, leaf, buckets); err != nil {
		return err
	}
	for i, idx := range s.tree.Path(leaf) {
		s.buckets[idx] = CloneBucket(buckets[i])
	}
	return nil
}

// GetBucket returns a copy of the bucket at idx.
func (s *InMemoryStorage) GetBucket(idx int) (Bucket, error) {
	if err := CheckNode(s.tree, idx); err != nil {
		return nil, err
	}
	return CloneBucket(s.buckets[idx]), nil
}

// PutBucket writes the bucket at idx.
func (s *InMemoryStorage) PutBucket(idx int, bucket Bucket) error {
	if err := CheckNode(s.tree, idx); err != nil {
		return err
	}
	if err := CheckBucket(bucket, s.bucketSize); err != nil {
		return err
	}
	s.buckets[idx] = CloneBucket(bucket)
	return nil
}

// NumLevels returns the number of tree levels.
func (s *InMemoryStorage) NumLevels() int {
	return s.tree.NumLevels()
}

// BucketSize returns slots per bucket.
func (s *InMemoryStorage) BucketSize() int {
	return s.bucketSize
}
