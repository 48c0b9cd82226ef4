package pathoram

// Stash is the client's plaintext working set, keyed by block key.
// Iteration order is insertion order, which makes eviction deterministic.
type Stash struct {
	blocks []Block
	index  map[string]int // key -> position in blocks
}

// NewStash returns an empty stash.
func NewStash() *Stash {
	return &Stash{index: make(map[string]int)}
}

// Len returns the number of blocks held.
func (s *Stash) Len() int {
	return len(s.blocks)
}

// InsertIfAbsent adds b unless a block with the same key is already held.
// Reports whether b was inserted.
func (s *Stash) InsertIfAbsent(b Block) bool {
	if _, ok := s.index[b.Key]; ok {
		return false
	}
	s.index[b.Key] = len(s.blocks)
	s.blocks = append(s.blocks, b)
	return true
}

// Find returns the block for key.
func (s *Stash) Find(key string) (Block, bool) {
	i, ok := s.index[key]
	if !ok {
		return Block{}, false
	}
	return s.blocks[i], true
}

// SetValue replaces the value of key, inserting a new block if absent.
func (s *Stash) SetValue(key string, value []byte) {
	if i, ok := s.index[key]; ok {
		s.blocks[i].Value = value
		return
	}
	s.InsertIfAbsent(Block{Key: key, Value: value})
}

// Remove drops key from the stash, keeping the order of the rest.
func (s *Stash) Remove(key string) {
	i, ok := s.index[key]
	if !ok {
		return
	}
	s.blocks = append(s.blocks[:i], s.blocks[i+1:]...)
	delete(s.index, key)
	s.reindex(i)
}

// DrainMatching removes and returns, in stash order, up to limit blocks for
// which match returns true. limit <= 0 means no limit.
func (s *Stash) DrainMatching(limit int, match func(Block) bool) []Block {
	var drained []Block
	kept := s.blocks[:0]
	for _, b := range s.blocks {
		if (limit <= 0 || len(drained) < limit) && match(b) {
			drained = append(drained, b)
			delete(s.index, b.Key)
			continue
		}
		kept = append(kept, b)
	}
	// clear the tail so dropped values are not retained
	for i := len(kept); i < len(s.blocks); i++ {
		s.blocks[i] = Block{}
	}
	s.blocks = kept
	s.reindex(0)
	return drained
}

// Blocks returns the held blocks in stash order. The slice must not be modified.
func (s *Stash) Blocks() []Block {
	return s.blocks
}

func (s *Stash) reindex(from int) {
	for i := from; i < len(s.blocks); i++ {
		s.index[s.blocks[i].Key] = i
	}
}
