package pathoram

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PathORAM implements the Path ORAM protocol on the client side.
// It is not safe for concurrent use: accesses must be issued one at a time.
type PathORAM struct {
	cfg  Config
	tree Tree

	storage Storage     // pluggable storage backend
	posMap  PositionMap // pluggable position map
	codec   *Codec      // session encryption

	stash *Stash // blocks not yet written back to tree
	rng   io.Reader
	log   *logrus.Entry
	stats Stats

	// pending holds leaves whose path was read into the stash but not yet
	// overwritten. Their server copies are stale until rewritten.
	pending []int
}

// Stats counts protocol activity since construction.
type Stats struct {
	Accesses   int // completed Read/Write calls that contacted storage
	PathReads  int // TraversePath calls
	PathWrites int // OverwritePath calls
	MaxStash   int // largest stash size observed after an eviction
}

// Option customizes a PathORAM.
type Option func(*PathORAM)

// WithRand sets the randomness source for leaf selection. Defaults to
// crypto/rand. Tests inject a seeded source to make leaf sequences reproducible.
func WithRand(r io.Reader) Option {
	return func(o *PathORAM) { o.rng = r }
}

// WithLogger sets the logger. Keys and values are never logged.
func WithLogger(l *logrus.Logger) Option {
	return func(o *PathORAM) { o.log = l.WithField("session", o.log.Data["session"]) }
}

// WithPositionMap replaces the in-memory position map.
func WithPositionMap(p PositionMap) Option {
	return func(o *PathORAM) { o.posMap = p }
}

func defaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

// New creates a PathORAM over storage and formats every bucket with
// encrypted dummies. The storage shape must match cfg.
func New(cfg Config, storage Storage, codec *Codec, opts ...Option) (*PathORAM, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if storage.NumLevels() != cfg.NumLevels || storage.BucketSize() != cfg.BucketSize {
		return nil, fmt.Errorf("%w: storage is %d levels x %d slots, config wants %d x %d",
			ErrShapeMismatch, storage.NumLevels(), storage.BucketSize(), cfg.NumLevels, cfg.BucketSize)
	}

	o := &PathORAM{
		cfg:     cfg,
		tree:    NewTree(cfg.NumLevels),
		storage: storage,
		posMap:  NewInMemoryPositionMap(),
		codec:   codec,
		stash:   NewStash(),
		rng:     rand.Reader,
		log:     defaultLogger().WithField("session", uuid.NewString()),
	}
	for _, opt := range opts {
		opt(o)
	}

	if err := o.format(); err != nil {
		return nil, err
	}
	o.log.WithFields(logrus.Fields{
		"levels":   cfg.NumLevels,
		"bucket":   cfg.BucketSize,
		"eviction": cfg.EvictionStrategy.String(),
		"blob":     codec.BlobSize(),
	}).Debug("path oram ready")
	return o, nil
}

// NewInMemory creates a PathORAM with in-memory storage and a fresh random
// session key for the cipher named in cfg.
func NewInMemory(cfg Config, opts ...Option) (*PathORAM, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	key, err := NewSessionKey()
	if err != nil {
		return nil, err
	}
	codec, err := NewCodecFromConfig(cfg, key)
	if err != nil {
		return nil, err
	}
	return New(cfg, NewInMemoryStorage(cfg.NumLevels, cfg.BucketSize), codec, opts...)
}

// format fills every node with freshly encrypted dummies.
func (o *PathORAM) format() error {
	for idx := 1; idx <= o.tree.NumNodes(); idx++ {
		bucket, err := o.dummyBucket()
		if err != nil {
			return err
		}
		if err := o.storage.PutBucket(idx, bucket); err != nil {
			return fmt.Errorf("format node %d: %w", idx, err)
		}
	}
	return nil
}

func (o *PathORAM) dummyBucket() (Bucket, error) {
	bucket := make(Bucket, 0, o.cfg.BucketSize)
	return o.padBucket(bucket)
}

func (o *PathORAM) padBucket(bucket Bucket) (Bucket, error) {
	for len(bucket) < o.cfg.BucketSize {
		blob, err := o.codec.Dummy()
		if err != nil {
			return nil, err
		}
		bucket = append(bucket, blob)
	}
	return bucket, nil
}

// NumLevels returns the number of tree levels.
func (o *PathORAM) NumLevels() int {
	return o.tree.NumLevels()
}

// NumLeaves returns the number of leaf nodes in the tree.
func (o *PathORAM) NumLeaves() int {
	return o.tree.NumLeaves()
}

// BucketSize returns Z.
func (o *PathORAM) BucketSize() int {
	return o.cfg.BucketSize
}

// StashSize returns the current number of blocks in the stash.
func (o *PathORAM) StashSize() int {
	return o.stash.Len()
}

// Size returns the number of keys ever written.
func (o *PathORAM) Size() int {
	return o.posMap.Size()
}

// Stats returns a snapshot of the access counters.
func (o *PathORAM) Stats() Stats {
	return o.stats
}

// Read returns the value stored under key. A key that was never written
// yields (nil, false, nil) without contacting storage.
func (o *PathORAM) Read(key string) ([]byte, bool, error) {
	if err := o.checkKey(key); err != nil {
		return nil, false, err
	}
	leaf, exists := o.posMap.Get(key)
	if !exists {
		return nil, false, nil
	}
	return o.access(opRead, key, nil, leaf)
}

// Write stores value under key.
func (o *PathORAM) Write(key string, value []byte) error {
	if err := o.checkKey(key); err != nil {
		return err
	}
	if len(value) > o.cfg.MaxValueSize {
		return fmt.Errorf("%w: %d > %d", ErrInvalidDataSize, len(value), o.cfg.MaxValueSize)
	}
	leaf, exists := o.posMap.Get(key)
	if !exists {
		var err error
		if leaf, err = o.randomLeaf(); err != nil {
			return err
		}
	}
	_, _, err := o.access(opWrite, key, bytes.Clone(value), leaf)
	return err
}

func (o *PathORAM) checkKey(key string) error {
	if len(key) == 0 || len(key) > o.cfg.MaxKeySize {
		return fmt.Errorf("%w: key length %d not in [1, %d]", ErrInvalidKey, len(key), o.cfg.MaxKeySize)
	}
	return nil
}

type opKind int

const (
	opRead opKind = iota
	opWrite
)

func (k opKind) String() string {
	if k == opWrite {
		return "write"
	}
	return "read"
}

// randomLeaf returns a uniformly random leaf index. The leaf count is a
// power of two, so masking a random word is exactly uniform.
func (o *PathORAM) randomLeaf() (int, error) {
	var buf [8]byte
	if _, err := io.ReadFull(o.rng, buf[:]); err != nil {
		return 0, fmt.Errorf("draw random leaf: %w", err)
	}
	n := binary.LittleEndian.Uint64(buf[:]) & uint64(o.tree.NumLeaves()-1)
	return o.tree.FirstLeaf() + int(n), nil
}

// repair rewrites paths left stale by an earlier failed access, before any
// new path is read. Otherwise a stale server copy of a block could be pulled
// back into the stash after the live copy was evicted elsewhere.
func (o *PathORAM) repair() error {
	for len(o.pending) > 0 {
		leaf := o.pending[0]
		o.log.WithField("leaf", leaf).Warn("rewriting path left by failed access")
		if err := o.writeBack(leaf, o.planLevelByLevel(o.tree.Path(leaf))); err != nil {
			return err
		}
	}
	return nil
}

func (o *PathORAM) markPending(leaf int) {
	for _, l := range o.pending {
		if l == leaf {
			return
		}
	}
	o.pending = append(o.pending, leaf)
}

func (o *PathORAM) clearPending(leaf int) {
	for i, l := range o.pending {
		if l == leaf {
			o.pending = append(o.pending[:i], o.pending[i+1:]...)
			return
		}
	}
}

// access performs the core PathORAM access on the path of leaf.
// Every call issues exactly one TraversePath and one OverwritePath on the
// same leaf (two of each under EvictTwoPath), whatever the operation.
func (o *PathORAM) access(op opKind, key string, newValue []byte, leaf int) ([]byte, bool, error) {
	// The replacement leaf is drawn up front so that no failure can occur
	// between mutating the stash and updating the position map.
	newLeaf, err := o.randomLeaf()
	if err != nil {
		return nil, false, err
	}

	if err := o.repair(); err != nil {
		return nil, false, err
	}

	// Step 1: Read path into stash
	if err := o.readPathIntoStash(leaf); err != nil {
		o.log.WithError(err).WithField("leaf", leaf).Error("retrieve path")
		return nil, false, err
	}

	// Step 2: Serve from stash
	var (
		result []byte
		found  bool
	)
	if o.cfg.ConstantTime {
		result, found = o.findInStashConstantTime(key)
	} else if b, ok := o.stash.Find(key); ok {
		result, found = bytes.Clone(b.Value), true
	}
	prevLeaf, hadLeaf := o.posMap.Get(key)
	if op == opWrite {
		o.stash.SetValue(key, newValue)
	}

	// Step 3: Assign new random leaf for this key
	o.posMap.Set(key, newLeaf)

	// Step 4: Eviction - write blocks back to path. An access that would
	// leave more than StashLimit blocks behind is undone, and the path is
	// written back from the stash as it was before it.
	plan := o.plan(leaf)
	if left := o.stash.Len() - planned(plan); left > o.cfg.StashLimit {
		o.rollback(key, result, found, prevLeaf, hadLeaf)
		if err := o.writeBack(leaf, o.planLevelByLevel(o.tree.Path(leaf))); err != nil {
			o.log.WithError(err).WithField("leaf", leaf).Error("evict path")
			return nil, false, err
		}
		o.log.WithField("stash", left).Error("stash limit reached, access rejected")
		return nil, false, fmt.Errorf("%w: access would leave %d blocks, limit %d", ErrStashOverflow, left, o.cfg.StashLimit)
	}
	if err := o.writeBack(leaf, plan); err != nil {
		o.rollback(key, result, found, prevLeaf, hadLeaf)
		o.log.WithError(err).WithField("leaf", leaf).Error("evict path")
		return nil, false, err
	}
	if o.cfg.EvictionStrategy == EvictTwoPath {
		// The access is committed here. A failed extra round leaves its
		// path pending and the next access rewrites it.
		if err := o.evictExtraPath(); err != nil {
			o.log.WithError(err).Warn("evict extra path")
		}
	}
	o.stats.Accesses++

	if n := o.stash.Len(); n > o.stats.MaxStash {
		o.stats.MaxStash = n
	}
	o.log.WithFields(logrus.Fields{
		"op":    op.String(),
		"leaf":  leaf,
		"stash": o.stash.Len(),
	}).Debug("access")

	if o.stash.Len() > o.cfg.StashLimit/2 {
		o.log.WithField("stash", o.stash.Len()).Warn("stash above half its limit")
	}
	return result, found, nil
}

// rollback undoes the serve and reassign steps of an access whose eviction
// failed or was rejected, so the call has no effect on the stored data.
func (o *PathORAM) rollback(key string, prevValue []byte, hadBlock bool, prevLeaf int, hadLeaf bool) {
	if hadBlock {
		o.stash.SetValue(key, prevValue)
	} else {
		o.stash.Remove(key)
	}
	if hadLeaf {
		o.posMap.Set(key, prevLeaf)
	} else {
		o.posMap.Delete(key)
	}
}

// readPathIntoStash decrypts every slot on the path of leaf and adds real
// blocks the stash does not already hold. The server copy is left in place
// until the path is overwritten. Nothing is added if any slot fails.
func (o *PathORAM) readPathIntoStash(leaf int) error {
	buckets, err := o.storage.TraversePath(leaf)
	if err != nil {
		return fmt.Errorf("traverse path %d: %w", leaf, err)
	}
	o.stats.PathReads++
	if len(buckets) != o.tree.NumLevels() {
		return fmt.Errorf("%w: traverse returned %d buckets, want %d", ErrShapeMismatch, len(buckets), o.tree.NumLevels())
	}

	path := o.tree.Path(leaf)
	var pulled []Block
	for i, bucket := range buckets {
		if len(bucket) != o.cfg.BucketSize {
			return fmt.Errorf("%w: node %d has %d slots, want %d", ErrShapeMismatch, path[i], len(bucket), o.cfg.BucketSize)
		}
		for slot, blob := range bucket {
			b, err := o.codec.Decrypt(blob)
			if err != nil {
				return fmt.Errorf("node %d slot %d: %w", path[i], slot, err)
			}
			if !b.IsDummy {
				pulled = append(pulled, b)
			}
		}
	}
	for _, b := range pulled {
		o.stash.InsertIfAbsent(b)
	}
	o.markPending(leaf)
	return nil
}

// canPlaceAt returns true if the block for key may rest at node, i.e. node
// lies on the path of the key's current leaf.
func (o *PathORAM) canPlaceAt(key string, node int) bool {
	leaf, ok := o.posMap.Get(key)
	if !ok {
		return false
	}
	if o.cfg.ConstantTime {
		return o.onPathConstantTime(node, leaf)
	}
	return o.tree.OnPath(node, leaf)
}
