package pathoram

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTreeGeometry(t *testing.T) {
	tests := []struct {
		levels     int
		wantLeaves int
		wantNodes  int
	}{
		{1, 1, 1},
		{2, 2, 3},
		{3, 4, 7},
		{4, 8, 15},
		{10, 512, 1023},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("L=%d", tt.levels), func(t *testing.T) {
			tr := NewTree(tt.levels)
			assert.Equal(t, tt.wantLeaves, tr.NumLeaves())
			assert.Equal(t, tt.wantNodes, tr.NumNodes())
			assert.Equal(t, tt.wantLeaves, tr.FirstLeaf())
			assert.Equal(t, tt.wantNodes, tr.LastLeaf())
			assert.False(t, tr.Contains(0))
			assert.False(t, tr.Contains(tt.wantNodes+1))
		})
	}
}

func TestPath(t *testing.T) {
	// Tree with 3 levels: 7 buckets (indices 1-7)
	//        1
	//       / \
	//      2   3
	//     / \ / \
	//    4  5 6  7
	tr := NewTree(3)

	tests := []struct {
		leaf     int
		wantPath []int // leaf to root
	}{
		{4, []int{4, 2, 1}},
		{5, []int{5, 2, 1}},
		{6, []int{6, 3, 1}},
		{7, []int{7, 3, 1}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("leaf=%d", tt.leaf), func(t *testing.T) {
			assert.Equal(t, tt.wantPath, tr.Path(tt.leaf))
		})
	}

	assert.Equal(t, []int{1}, NewTree(1).Path(1))
}

func TestOnPath(t *testing.T) {
	tr := NewTree(3)

	// every node returned by Path is on the path, nothing else is
	for leaf := tr.FirstLeaf(); leaf <= tr.LastLeaf(); leaf++ {
		onPath := make(map[int]bool)
		for _, n := range tr.Path(leaf) {
			onPath[n] = true
		}
		for node := 1; node <= tr.NumNodes(); node++ {
			assert.Equal(t, onPath[node], tr.OnPath(node, leaf), "node %d leaf %d", node, leaf)
		}
	}

	assert.False(t, tr.OnPath(0, 4))
	assert.False(t, tr.OnPath(4, 5))
}

func TestDepth(t *testing.T) {
	tr := NewTree(4)
	assert.Equal(t, 0, tr.Depth(1))
	assert.Equal(t, 1, tr.Depth(3))
	assert.Equal(t, 2, tr.Depth(4))
	assert.Equal(t, 3, tr.Depth(15))
	assert.True(t, tr.IsLeaf(8))
	assert.False(t, tr.IsLeaf(7))
}
