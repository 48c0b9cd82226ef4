package pathoram

import "fmt"

// plan stages the write-back of the path of leaf with the configured strategy.
func (o *PathORAM) plan(leaf int) [][]Block {
	if o.cfg.EvictionStrategy == EvictGreedyByDepth {
		return o.planGreedyByDepth(o.tree.Path(leaf))
	}
	return o.planLevelByLevel(o.tree.Path(leaf))
}

// planned counts the blocks a plan moves out of the stash.
func planned(plan [][]Block) int {
	n := 0
	for _, blocks := range plan {
		n += len(blocks)
	}
	return n
}

// evictExtraPath reads a fresh random path into the stash and evicts along
// it. EvictTwoPath runs it after every access.
func (o *PathORAM) evictExtraPath() error {
	leaf, err := o.randomLeaf()
	if err != nil {
		return err
	}
	if err := o.readPathIntoStash(leaf); err != nil {
		return err
	}
	return o.writeBack(leaf, o.planLevelByLevel(o.tree.Path(leaf)))
}

// planLevelByLevel walks the path from leaf to root and, at each node,
// takes up to Z not-yet-placed stash blocks (in stash order) that may rest
// there. A block skipped at a deep node stays eligible for its ancestors.
// The stash is not modified.
func (o *PathORAM) planLevelByLevel(path []int) [][]Block {
	plan := make([][]Block, len(path))
	placed := make(map[string]struct{})
	for level, node := range path {
		for _, b := range o.stash.Blocks() {
			if len(plan[level]) == o.cfg.BucketSize {
				break
			}
			if _, ok := placed[b.Key]; ok {
				continue
			}
			if o.canPlaceAt(b.Key, node) {
				plan[level] = append(plan[level], b)
				placed[b.Key] = struct{}{}
			}
		}
	}
	return plan
}

// planGreedyByDepth places each stash block, in stash order, at the deepest
// node of the path that can hold it and still has room.
func (o *PathORAM) planGreedyByDepth(path []int) [][]Block {
	plan := make([][]Block, len(path))
	for _, b := range o.stash.Blocks() {
		// Try deepest level first (leaf = path[0], root = path[len-1])
		for level, node := range path {
			if len(plan[level]) < o.cfg.BucketSize && o.canPlaceAt(b.Key, node) {
				plan[level] = append(plan[level], b)
				break
			}
		}
	}
	return plan
}

// writeBack encrypts the planned blocks, pads every bucket with fresh
// dummies and commits the whole path in one OverwritePath. Planned blocks
// leave the stash only after the overwrite succeeds, so a failed write-back
// leaves every block recoverable from the stash.
func (o *PathORAM) writeBack(leaf int, plan [][]Block) error {
	buckets := make([]Bucket, len(plan))
	placed := make(map[string]struct{})
	for level, blocks := range plan {
		bucket := make(Bucket, 0, o.cfg.BucketSize)
		for _, b := range blocks {
			blob, err := o.codec.Encrypt(b)
			if err != nil {
				return err
			}
			bucket = append(bucket, blob)
			placed[b.Key] = struct{}{}
		}
		bucket, err := o.padBucket(bucket)
		if err != nil {
			return err
		}
		buckets[level] = bucket
	}

	if err := o.storage.OverwritePath(leaf, buckets); err != nil {
		return fmt.Errorf("overwrite path %d: %w", leaf, err)
	}
	o.stats.PathWrites++
	o.clearPending(leaf)

	o.stash.DrainMatching(0, func(b Block) bool {
		_, ok := placed[b.Key]
		return ok
	})
	return nil
}
