package pathoram

// PositionMap tracks key-to-leaf assignments.
// For recursive ORAM, this can be implemented as another ORAM instance.
type PositionMap interface {
	// Get returns the leaf position for key.
	// Returns (leaf, true) if found, (0, false) if not.
	Get(key string) (leaf int, exists bool)

	// Set assigns key to leaf.
	Set(key string, leaf int)

	// Delete drops the assignment for key.
	Delete(key string)

	// Size returns the number of keys with assigned positions.
	Size() int

	// Range calls fn for every entry until fn returns false.
	Range(fn func(key string, leaf int) bool)
}

// InMemoryPositionMap implements PositionMap using a Go map.
type InMemoryPositionMap struct {
	m map[string]int
}

// NewInMemoryPositionMap creates a new empty position map.
func NewInMemoryPositionMap() *InMemoryPositionMap {
	return &InMemoryPositionMap{
		m: make(map[string]int),
	}
}

// Get returns the leaf position for key.
func (p *InMemoryPositionMap) Get(key string) (int, bool) {
	leaf, ok := p.m[key]
	return leaf, ok
}

// Set assigns key to leaf.
func (p *InMemoryPositionMap) Set(key string, leaf int) {
	p.m[key] = leaf
}

// Delete drops the assignment for key.
func (p *InMemoryPositionMap) Delete(key string) {
	delete(p.m, key)
}

// Size returns the number of keys with assigned positions.
func (p *InMemoryPositionMap) Size() int {
	return len(p.m)
}

// Range iterates entries in unspecified order.
func (p *InMemoryPositionMap) Range(fn func(key string, leaf int) bool) {
	for k, v := range p.m {
		if !fn(k, v) {
			return
		}
	}
}
