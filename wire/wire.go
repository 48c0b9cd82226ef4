// Package wire carries the Tree Storage contract across a process boundary.
// Messages are length-prefixed little-endian records:
//
//	Request  = op(1) | index(8) | count(8) | bucket*
//	Response = status(1) | code(1) | msgLen(8) | msg | count(8) | bucket*
//
// where bucket is the record written by pathoram.EncodeBucket.
package wire

import (
	"errors"
	"fmt"

	"github.com/tchajed/marshal"

	pathoram "github.com/etclab/pathoram-kv"
)

// Op names a storage operation.
type Op byte

const (
	OpTraversePath Op = iota + 1
	OpOverwritePath
	OpGetBucket
	OpPutBucket
)

// String returns the operation name used in logs.
func (op Op) String() string {
	switch op {
	case OpTraversePath:
		return "traverse_path"
	case OpOverwritePath:
		return "overwrite_path"
	case OpGetBucket:
		return "get_bucket"
	case OpPutBucket:
		return "put_bucket"
	}
	return fmt.Sprintf("op(%d)", byte(op))
}

// Status is ok or error.
type Status byte

const (
	StatusOK Status = iota
	StatusError
)

// Code keeps the error kind across the boundary.
type Code byte

const (
	CodeNone Code = iota
	CodeOutOfRange
	CodeShapeMismatch
	CodeBadRequest
	CodeInternal
)

// ErrBadMessage is returned for truncated or malformed messages.
var ErrBadMessage = errors.New("malformed wire message")

// Request is one storage call. Index is the leaf for path operations and
// the node index for bucket operations.
type Request struct {
	Op      Op
	Index   int
	Payload []pathoram.Bucket
}

// Response carries the buckets of a read, or the error of a failed call.
type Response struct {
	Status  Status
	Code    Code
	Message string
	Buckets []pathoram.Bucket
}

// EncodeRequest appends the encoding of r to b0.
func EncodeRequest(b0 []byte, r *Request) []byte {
	var b = b0
	b = marshal.WriteBytes(b, []byte{byte(r.Op)})
	b = marshal.WriteInt(b, uint64(r.Index))
	b = encodeBuckets(b, r.Payload)
	return b
}

// DecodeRequest parses a whole request. Trailing bytes are an error.
func DecodeRequest(b0 []byte) (*Request, error) {
	op, b, err := readByte(b0)
	if err != nil {
		return nil, err
	}
	idx, b, err := readInt(b)
	if err != nil {
		return nil, err
	}
	payload, b, err := decodeBuckets(b)
	if err != nil {
		return nil, err
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadMessage, len(b))
	}
	return &Request{Op: Op(op), Index: int(idx), Payload: payload}, nil
}

// EncodeResponse appends the encoding of r to b0.
func EncodeResponse(b0 []byte, r *Response) []byte {
	var b = b0
	b = marshal.WriteBytes(b, []byte{byte(r.Status), byte(r.Code)})
	b = marshal.WriteInt(b, uint64(len(r.Message)))
	b = marshal.WriteBytes(b, []byte(r.Message))
	b = encodeBuckets(b, r.Buckets)
	return b
}

// DecodeResponse parses a whole response. Trailing bytes are an error.
func DecodeResponse(b0 []byte) (*Response, error) {
	status, b, err := readByte(b0)
	if err != nil {
		return nil, err
	}
	code, b, err := readByte(b)
	if err != nil {
		return nil, err
	}
	n, b, err := readInt(b)
	if err != nil {
		return nil, err
	}
	if uint64(len(b)) < n {
		return nil, fmt.Errorf("%w: truncated message", ErrBadMessage)
	}
	msg, b := marshal.ReadBytes(b, n)
	buckets, b, err := decodeBuckets(b)
	if err != nil {
		return nil, err
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadMessage, len(b))
	}
	return &Response{Status: Status(status), Code: Code(code), Message: string(msg), Buckets: buckets}, nil
}

func encodeBuckets(b0 []byte, buckets []pathoram.Bucket) []byte {
	var b = b0
	b = marshal.WriteInt(b, uint64(len(buckets)))
	for _, bucket := range buckets {
		b = pathoram.EncodeBucket(b, bucket)
	}
	return b
}

func decodeBuckets(b0 []byte) ([]pathoram.Bucket, []byte, error) {
	n, b, err := readInt(b0)
	if err != nil {
		return nil, nil, err
	}
	if n > uint64(len(b))/8 {
		return nil, nil, fmt.Errorf("%w: claims %d buckets", ErrBadMessage, n)
	}
	var buckets []pathoram.Bucket
	for i := uint64(0); i < n; i++ {
		var bucket pathoram.Bucket
		bucket, b, err = pathoram.DecodeBucket(b)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: bucket %d: %v", ErrBadMessage, i, err)
		}
		buckets = append(buckets, bucket)
	}
	return buckets, b, nil
}

func readByte(b []byte) (byte, []byte, error) {
	if len(b) < 1 {
		return 0, nil, fmt.Errorf("%w: truncated message", ErrBadMessage)
	}
	return b[0], b[1:], nil
}

func readInt(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("%w: truncated message", ErrBadMessage)
	}
	n, rest := marshal.ReadInt(b)
	return n, rest, nil
}

// codeOf classifies err for the response.
func codeOf(err error) Code {
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, pathoram.ErrOutOfRange):
		return CodeOutOfRange
	case errors.Is(err, pathoram.ErrShapeMismatch):
		return CodeShapeMismatch
	case errors.Is(err, ErrBadMessage):
		return CodeBadRequest
	default:
		return CodeInternal
	}
}

// Err turns an error response back into an error matching the original kind.
func (r *Response) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	switch r.Code {
	case CodeOutOfRange:
		return fmt.Errorf("%w: %s", pathoram.ErrOutOfRange, r.Message)
	case CodeShapeMismatch:
		return fmt.Errorf("%w: %s", pathoram.ErrShapeMismatch, r.Message)
	case CodeBadRequest:
		return fmt.Errorf("%w: %s", ErrBadMessage, r.Message)
	default:
		return fmt.Errorf("storage error: %s", r.Message)
	}
}
