package wire

import (
	"fmt"

	pathoram "github.com/etclab/pathoram-kv"
)

// Transport moves one encoded request to the server and returns its
// encoded response. Framing and connection handling belong to the transport.
type Transport interface {
	RoundTrip(req []byte) ([]byte, error)
}

// Loopback delivers requests to an in-process Handler.
type Loopback struct {
	h *Handler
}

// NewLoopback returns a Transport that calls h directly.
func NewLoopback(h *Handler) *Loopback {
	return &Loopback{h: h}
}

// RoundTrip serves req in process. It never fails.
func (l *Loopback) RoundTrip(req []byte) ([]byte, error) {
	return l.h.Serve(req), nil
}

// Client implements pathoram.Storage by sending every call over a Transport.
// The tree shape is fixed at construction and must match the server's.
type Client struct {
	t          Transport
	numLevels  int
	bucketSize int
}

var _ pathoram.Storage = (*Client)(nil)

// NewClient returns a Storage proxy for a tree of the given shape.
func NewClient(t Transport, numLevels, bucketSize int) *Client {
	return &Client{t: t, numLevels: numLevels, bucketSize: bucketSize}
}

func (c *Client) call(req *Request) (*Response, error) {
	raw, err := c.t.RoundTrip(EncodeRequest(nil, req))
	if err != nil {
		return nil, fmt.Errorf("%v round trip: %w", req.Op, err)
	}
	resp, err := DecodeResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("%v response: %w", req.Op, err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

// TraversePath asks the server for the buckets from leaf to root.
func (c *Client) TraversePath(leaf int) ([]pathoram.Bucket, error) {
	resp, err := c.call(&Request{Op: OpTraversePath, Index: leaf})
	if err != nil {
		return nil, err
	}
	return resp.Buckets, nil
}

// OverwritePath sends a whole path to the server.
func (c *Client) OverwritePath(leaf int, buckets []pathoram.Bucket) error {
	_, err := c.call(&Request{Op: OpOverwritePath, Index: leaf, Payload: buckets})
	return err
}

// GetBucket asks the server for the bucket at idx.
func (c *Client) GetBucket(idx int) (pathoram.Bucket, error) {
	resp, err := c.call(&Request{Op: OpGetBucket, Index: idx})
	if err != nil {
		return nil, err
	}
	if len(resp.Buckets) != 1 {
		return nil, fmt.Errorf("%w: get_bucket returned %d buckets", pathoram.ErrShapeMismatch, len(resp.Buckets))
	}
	return resp.Buckets[0], nil
}

// PutBucket sends one bucket to the server.
func (c *Client) PutBucket(idx int, bucket pathoram.Bucket) error {
	_, err := c.call(&Request{Op: OpPutBucket, Index: idx, Payload: []pathoram.Bucket{bucket}})
	return err
}

// NumLevels returns the tree height fixed at construction.
func (c *Client) NumLevels() int { return c.numLevels }

// BucketSize returns the bucket width fixed at construction.
func (c *Client) BucketSize() int { return c.bucketSize }
