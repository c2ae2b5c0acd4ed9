package httpcore

import (
	"context"
	"errors"
)

// StreamFunc produces the next chunk of a streamed response body. It
// returns (0, io.EOF) once exhausted, matching the Body.Read contract.
type StreamFunc func(ctx context.Context, buf []byte) (int, error)

// bodyKind distinguishes the three response body shapes of §4.E.
type bodyKind int

const (
	bodyEmpty bodyKind = iota
	bodyBytes
	bodyStream
)

// Response is the record a handler returns, per §3.
type Response struct {
	Status  int
	Reason  string // optional; Writer fills in a default if empty
	Headers Header

	kind      bodyKind
	bytes     []byte
	stream    StreamFunc
	streamLen int64 // >= 0: known-length stream; -1: unknown-length (chunked)
	upgrade   UpgradeFunc
}

// UpgradeFunc takes ownership of the raw connection after a 101 response
// per the GLOSSARY's "Protocol upgrade" entry; the connection driver
// invokes it instead of writing further HTTP framing.
type UpgradeFunc func(ctx context.Context, raw any) error

// ErrContentLengthMismatch is returned by Writer.WriteResponse when a
// known-length stream response carries a Content-Length header that
// disagrees with its declared length — §9's open question is resolved by
// rejecting the response before any bytes reach the wire.
var ErrContentLengthMismatch = errors.New("httpcore: response Content-Length disagrees with declared stream length")

// NewResponse builds a response with an empty body.
func NewResponse(status int) *Response {
	return &Response{Status: status, Headers: newHeader()}
}

// NewBytesResponse builds a response whose body is the fixed buffer body.
func NewBytesResponse(status int, body []byte) *Response {
	r := NewResponse(status)
	r.kind = bodyBytes
	r.bytes = body
	return r
}

// NewStreamResponse builds a response whose body is produced by fn.
// length >= 0 declares a known-length stream (Content-Length is emitted
// and must match what fn ultimately yields); length < 0 declares an
// unknown-length stream, framed as chunked per §4.E. If the caller later
// sets a Content-Length header that disagrees with length, Writer rejects
// the response before anything reaches the wire (§9's open question).
func NewStreamResponse(status int, length int64, fn StreamFunc) *Response {
	r := NewResponse(status)
	r.kind = bodyStream
	r.stream = fn
	r.streamLen = length
	return r
}

// WithUpgrade marks r as a protocol-upgrade response (status must be 101);
// fn receives the raw connection once the driver stops treating it as
// HTTP.
func (r *Response) WithUpgrade(fn UpgradeFunc) *Response {
	r.upgrade = fn
	return r
}

// IsUpgrade reports whether this response hands the connection off.
func (r *Response) IsUpgrade() bool { return r.upgrade != nil }

// Upgrade returns the callback attached by WithUpgrade, or nil if this
// response does not upgrade the connection.
func (r *Response) Upgrade() UpgradeFunc { return r.upgrade }
