package pathoram

import "fmt"

// Verify scans the whole tree through GetBucket and checks, without
// modifying anything, that
//   - every bucket has exactly Z well-formed slots that decrypt,
//   - every real block rests on the path of its key's current leaf,
//   - every key in the position map is found in the stash or the tree.
//
// It is meant for tests and audits; it reads every node, so its access
// pattern is not oblivious.
func (o *PathORAM) Verify() error {
	located := make(map[string]int) // key -> node, 0 = stash
	for _, b := range o.stash.Blocks() {
		located[b.Key] = 0
	}

	for idx := 1; idx <= o.tree.NumNodes(); idx++ {
		bucket, err := o.storage.GetBucket(idx)
		if err != nil {
			return fmt.Errorf("get node %d: %w", idx, err)
		}
		if err := CheckBucket(bucket, o.cfg.BucketSize); err != nil {
			return fmt.Errorf("node %d: %w", idx, err)
		}
		for slot, blob := range bucket {
			if len(blob) != o.codec.BlobSize() {
				return fmt.Errorf("%w: node %d slot %d has %d bytes, want %d",
					ErrShapeMismatch, idx, slot, len(blob), o.codec.BlobSize())
			}
			b, err := o.codec.Decrypt(blob)
			if err != nil {
				return fmt.Errorf("node %d slot %d: %w", idx, slot, err)
			}
			if b.IsDummy {
				continue
			}
			leaf, ok := o.posMap.Get(b.Key)
			if !ok {
				return fmt.Errorf("%w: node %d holds a block with no position", ErrInvariant, idx)
			}
			if !o.tree.OnPath(idx, leaf) {
				return fmt.Errorf("%w: node %d is not on the path of leaf %d", ErrInvariant, idx, leaf)
			}
			if prev, dup := located[b.Key]; dup {
				if prev == 0 {
					return fmt.Errorf("%w: block found in the stash and at node %d", ErrInvariant, idx)
				}
				return fmt.Errorf("%w: block found at node %d and node %d", ErrInvariant, prev, idx)
			}
			located[b.Key] = idx
		}
	}

	var missing int
	o.posMap.Range(func(key string, _ int) bool {
		if _, ok := located[key]; !ok {
			missing++
		}
		return true
	})
	if missing > 0 {
		return fmt.Errorf("%w: %d mapped keys are neither in the stash nor on their path", ErrInvariant, missing)
	}
	return nil
}
