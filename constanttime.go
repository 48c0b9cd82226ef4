package pathoram

import (
	"crypto/subtle"
	"encoding/binary"
)

// findInStashConstantTime searches the stash without timing leaks.
// Always iterates through the entire stash regardless of match, comparing
// keys padded to MaxKeySize.
func (o *PathORAM) findInStashConstantTime(key string) ([]byte, bool) {
	want := o.padKey(key)
	found := 0
	length := 0
	result := make([]byte, o.cfg.MaxValueSize)
	value := make([]byte, o.cfg.MaxValueSize)

	for _, b := range o.stash.Blocks() {
		match := subtle.ConstantTimeCompare(want, o.padKey(b.Key))
		clear(value)
		copy(value, b.Value)
		subtle.ConstantTimeCopy(match, result, value)
		length = subtle.ConstantTimeSelect(match, len(b.Value), length)
		found |= match
	}
	if found == 0 {
		return nil, false
	}
	return result[:length], true
}

func (o *PathORAM) padKey(key string) []byte {
	p := make([]byte, o.cfg.MaxKeySize+8)
	// the trailing length distinguishes keys that differ only in zero padding
	copy(p, key)
	binary.LittleEndian.PutUint64(p[o.cfg.MaxKeySize:], uint64(len(key)))
	return p
}

// onPathConstantTime checks placement without early exit.
// Always walks the full path from leaf to root.
func (o *PathORAM) onPathConstantTime(node, leaf int) bool {
	hit := 0
	b := leaf
	for level := 0; level < o.tree.NumLevels(); level++ {
		hit |= subtle.ConstantTimeEq(int32(b), int32(node))
		b /= 2
	}
	return hit == 1
}
