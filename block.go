package pathoram

import (
	"fmt"

	"github.com/tchajed/marshal"
)

// Block is the plaintext unit held by the client. Real blocks carry a
// non-empty key; dummy blocks exist only to fill bucket slots.
type Block struct {
	Key     string
	Value   []byte
	IsDummy bool
}

// EncryptedBlob is nonce || ciphertext-with-tag, the only form the server sees.
type EncryptedBlob []byte

// Bucket holds exactly Z blobs.
type Bucket []EncryptedBlob

// blockLayout fixes the canonical plaintext size of every block so that
// dummies and real blocks are indistinguishable by length.
type blockLayout struct {
	maxKey   int
	maxValue int
}

// size returns the encoded plaintext length.
func (l blockLayout) size() int {
	// isDummy(1) | keyLen(8) | key | valueLen(8) | value
	return 1 + 8 + l.maxKey + 8 + l.maxValue
}

func (l blockLayout) check(b Block) error {
	if b.IsDummy {
		return nil
	}
	if len(b.Key) == 0 || len(b.Key) > l.maxKey {
		return fmt.Errorf("%w: key length %d not in [1, %d]", ErrInvalidKey, len(b.Key), l.maxKey)
	}
	if len(b.Value) > l.maxValue {
		return fmt.Errorf("%w: %d > %d", ErrInvalidDataSize, len(b.Value), l.maxValue)
	}
	return nil
}

// encode writes the fixed-size canonical encoding of b.
func (l blockLayout) encode(b Block) ([]byte, error) {
	if err := l.check(b); err != nil {
		return nil, err
	}
	var key, value []byte
	if !b.IsDummy {
		key, value = []byte(b.Key), b.Value
	}
	var flag byte
	if b.IsDummy {
		flag = 1
	}
	out := make([]byte, 0, l.size())
	out = marshal.WriteBytes(out, []byte{flag})
	out = marshal.WriteInt(out, uint64(len(key)))
	out = marshal.WriteBytes(out, key)
	out = marshal.WriteBytes(out, make([]byte, l.maxKey-len(key)))
	out = marshal.WriteInt(out, uint64(len(value)))
	out = marshal.WriteBytes(out, value)
	out = marshal.WriteBytes(out, make([]byte, l.maxValue-len(value)))
	return out, nil
}

// decode parses a canonical encoding. Any structural problem is a decode failure.
func (l blockLayout) decode(raw []byte) (Block, error) {
	if len(raw) != l.size() {
		return Block{}, fmt.Errorf("%w: plaintext length %d, want %d", ErrDecodeFailure, len(raw), l.size())
	}
	flag, b := marshal.ReadBytes(raw, 1)
	if flag[0] > 1 {
		return Block{}, fmt.Errorf("%w: dummy flag %d", ErrDecodeFailure, flag[0])
	}
	isDummy := flag[0] == 1
	keyLen, b := marshal.ReadInt(b)
	if keyLen > uint64(l.maxKey) {
		return Block{}, fmt.Errorf("%w: key length %d", ErrDecodeFailure, keyLen)
	}
	keyField, b := marshal.ReadBytes(b, uint64(l.maxKey))
	valueLen, b := marshal.ReadInt(b)
	if valueLen > uint64(l.maxValue) {
		return Block{}, fmt.Errorf("%w: value length %d", ErrDecodeFailure, valueLen)
	}
	valueField, _ := marshal.ReadBytes(b, uint64(l.maxValue))

	if isDummy {
		return Block{IsDummy: true}, nil
	}
	if keyLen == 0 {
		return Block{}, fmt.Errorf("%w: real block with empty key", ErrDecodeFailure)
	}
	value := make([]byte, valueLen)
	copy(value, valueField[:valueLen])
	return Block{Key: string(keyField[:keyLen]), Value: value}, nil
}
