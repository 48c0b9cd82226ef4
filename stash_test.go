package pathoram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stashKeys(s *Stash) []string {
	var keys []string
	for _, b := range s.Blocks() {
		keys = append(keys, b.Key)
	}
	return keys
}

func TestStash_InsertIfAbsent(t *testing.T) {
	s := NewStash()
	assert.True(t, s.InsertIfAbsent(Block{Key: "a", Value: []byte("1")}))
	assert.True(t, s.InsertIfAbsent(Block{Key: "b", Value: []byte("2")}))
	// a server copy never replaces what the stash holds
	assert.False(t, s.InsertIfAbsent(Block{Key: "a", Value: []byte("stale")}))

	b, ok := s.Find("a")
	require.True(t, ok)
	assert.Equal(t, "1", string(b.Value))
	assert.Equal(t, 2, s.Len())

	_, ok = s.Find("zzz")
	assert.False(t, ok)
}

func TestStash_SetValue(t *testing.T) {
	s := NewStash()
	s.SetValue("a", []byte("1"))
	s.SetValue("b", []byte("2"))
	s.SetValue("a", []byte("3"))

	assert.Equal(t, []string{"a", "b"}, stashKeys(s))
	b, _ := s.Find("a")
	assert.Equal(t, "3", string(b.Value))
}

func TestStash_RemoveKeepsOrder(t *testing.T) {
	s := NewStash()
	for _, k := range []string{"a", "b", "c", "d"} {
		s.SetValue(k, []byte(k))
	}
	s.Remove("b")
	s.Remove("missing")

	assert.Equal(t, []string{"a", "c", "d"}, stashKeys(s))
	b, ok := s.Find("d")
	require.True(t, ok)
	assert.Equal(t, "d", string(b.Value))
}

func TestStash_DrainMatching(t *testing.T) {
	s := NewStash()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		s.SetValue(k, []byte(k))
	}
	vowel := func(b Block) bool { return b.Key == "a" || b.Key == "e" }

	got := s.DrainMatching(1, vowel)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Key)
	assert.Equal(t, []string{"b", "c", "d", "e"}, stashKeys(s))

	got = s.DrainMatching(0, func(Block) bool { return true })
	assert.Len(t, got, 4)
	assert.Zero(t, s.Len())
	_, ok := s.Find("e")
	assert.False(t, ok)

	// index stays consistent after a partial drain
	s.SetValue("x", nil)
	s.SetValue("y", nil)
	s.SetValue("z", nil)
	s.DrainMatching(0, func(b Block) bool { return b.Key == "y" })
	assert.False(t, s.InsertIfAbsent(Block{Key: "z"}))
	assert.True(t, s.InsertIfAbsent(Block{Key: "y"}))
	assert.Equal(t, []string{"x", "z", "y"}, stashKeys(s))
}

func TestInMemoryPositionMap(t *testing.T) {
	p := NewInMemoryPositionMap()
	_, ok := p.Get("a")
	assert.False(t, ok)

	p.Set("a", 4)
	p.Set("b", 7)
	p.Set("a", 5)

	leaf, ok := p.Get("a")
	require.True(t, ok)
	assert.Equal(t, 5, leaf)
	assert.Equal(t, 2, p.Size())

	seen := map[string]int{}
	p.Range(func(k string, l int) bool {
		seen[k] = l
		return true
	})
	assert.Equal(t, map[string]int{"a": 5, "b": 7}, seen)

	calls := 0
	p.Range(func(string, int) bool {
		calls++
		return false
	})
	assert.Equal(t, 1, calls)
}
