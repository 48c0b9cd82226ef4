package wire

import (
	"fmt"

	"github.com/sirupsen/logrus"

	pathoram "github.com/etclab/pathoram-kv"
)

// Handler is the server end: it decodes requests and applies them to a Storage.
type Handler struct {
	store pathoram.Storage
	log   logrus.FieldLogger
}

// NewHandler serves store. A nil logger uses the logrus standard logger.
func NewHandler(store pathoram.Storage, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{store: store, log: log}
}

// Serve handles one encoded request and returns the encoded response.
func (h *Handler) Serve(raw []byte) []byte {
	resp := h.handle(raw)
	return EncodeResponse(nil, resp)
}

func (h *Handler) handle(raw []byte) *Response {
	req, err := DecodeRequest(raw)
	if err != nil {
		return errorResponse(err)
	}

	var buckets []pathoram.Bucket
	switch req.Op {
	case OpTraversePath:
		buckets, err = h.store.TraversePath(req.Index)
	case OpOverwritePath:
		err = h.store.OverwritePath(req.Index, req.Payload)
	case OpGetBucket:
		var b pathoram.Bucket
		if b, err = h.store.GetBucket(req.Index); err == nil {
			buckets = []pathoram.Bucket{b}
		}
	case OpPutBucket:
		if len(req.Payload) != 1 {
			err = fmt.Errorf("%w: put_bucket carries %d buckets", pathoram.ErrShapeMismatch, len(req.Payload))
			break
		}
		err = h.store.PutBucket(req.Index, req.Payload[0])
	default:
		err = fmt.Errorf("%w: unknown op %v", ErrBadMessage, req.Op)
	}
	if err != nil {
		h.log.WithFields(logrus.Fields{"op": req.Op.String(), "index": req.Index}).WithError(err).Warn("storage request failed")
		return errorResponse(err)
	}
	return &Response{Status: StatusOK, Buckets: buckets}
}

func errorResponse(err error) *Response {
	return &Response{Status: StatusError, Code: codeOf(err), Message: err.Error()}
}
