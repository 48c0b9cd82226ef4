package pathoram

// Tree describes the shape of a complete binary tree of buckets stored as a
// 1-indexed heap: node i has parent i/2 and children 2i, 2i+1.
//
//	     1
//	   /   \
//	  2     3
//	 / \   / \
//	4   5 6   7
//
// Leaves occupy [2^(L-1), 2^L - 1].
type Tree struct {
	levels int
}

// NewTree returns the geometry of a tree with the given number of levels.
func NewTree(numLevels int) Tree {
	return Tree{levels: numLevels}
}

// NumLevels returns L.
func (t Tree) NumLevels() int { return t.levels }

// NumLeaves returns 2^(L-1).
func (t Tree) NumLeaves() int { return 1 << (t.levels - 1) }

// NumNodes returns 2^L - 1.
func (t Tree) NumNodes() int { return (1 << t.levels) - 1 }

// FirstLeaf returns the smallest leaf index.
func (t Tree) FirstLeaf() int { return t.NumLeaves() }

// LastLeaf returns the largest leaf index.
func (t Tree) LastLeaf() int { return t.NumNodes() }

// Contains reports whether idx is a valid node index.
func (t Tree) Contains(idx int) bool {
	return idx >= 1 && idx <= t.NumNodes()
}

// IsLeaf reports whether idx is a leaf node.
func (t Tree) IsLeaf(idx int) bool {
	return idx >= t.FirstLeaf() && idx <= t.LastLeaf()
}

// Depth returns the level of node idx, root = 0.
func (t Tree) Depth(idx int) int {
	d := -1
	for ; idx >= 1; idx /= 2 {
		d++
	}
	return d
}

// Path returns node indices from leaf to root.
// The caller must pass a valid leaf index.
func (t Tree) Path(leaf int) []int {
	path := make([]int, 0, t.levels)
	for node := leaf; node >= 1; node /= 2 {
		path = append(path, node)
	}
	return path
}

// OnPath reports whether node lies on the root-to-leaf path of leaf, i.e.
// node is leaf itself or one of its ancestors.
func (t Tree) OnPath(node, leaf int) bool {
	if node < 1 {
		return false
	}
	shift := t.Depth(leaf) - t.Depth(node)
	if shift < 0 {
		return false
	}
	return leaf>>shift == node
}
