package pathoram

import (
	"fmt"

	"github.com/tchajed/marshal"
)

// EncodeBucket serializes a bucket as count || (len || blob)*.
// Backends that store buckets as opaque values use this record format.
func EncodeBucket(b0 []byte, bucket Bucket) []byte {
	var b = b0
	b = marshal.WriteInt(b, uint64(len(bucket)))
	for _, blob := range bucket {
		b = marshal.WriteInt(b, uint64(len(blob)))
		b = marshal.WriteBytes(b, blob)
	}
	return b
}

// DecodeBucket parses one bucket and returns the remaining bytes.
func DecodeBucket(b0 []byte) (Bucket, []byte, error) {
	var b = b0
	n, b, err := readInt(b)
	if err != nil {
		return nil, nil, err
	}
	// each slot needs at least its 8-byte length prefix
	if n > uint64(len(b))/8 {
		return nil, nil, fmt.Errorf("%w: bucket claims %d slots", ErrShapeMismatch, n)
	}
	bucket := make(Bucket, n)
	for i := range bucket {
		var l uint64
		l, b, err = readInt(b)
		if err != nil {
			return nil, nil, err
		}
		if uint64(len(b)) < l {
			return nil, nil, fmt.Errorf("%w: truncated slot", ErrShapeMismatch)
		}
		var blob []byte
		blob, b = marshal.ReadBytesCopy(b, l)
		bucket[i] = blob
	}
	return bucket, b, nil
}

func readInt(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("%w: truncated length", ErrShapeMismatch)
	}
	n, rest := marshal.ReadInt(b)
	return n, rest, nil
}
