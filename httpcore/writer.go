package httpcore

import (
	"context"
	"io"
	"strconv"

	"github.com/searchktools/corehttp/pools"
)

// Sink is the symmetric counterpart of Source: wherever the parser reads,
// the writer streams responses back out through it (the async socket's
// WriteAll).
type Sink interface {
	Write(ctx context.Context, buf []byte) error
}

// Writer serializes Responses onto a Sink per §4.E: status line, headers
// in insertion order, blank line, then the body framed per its kind. It
// never buffers more than one chunk of a streamed body at a time.
type Writer struct {
	sink    Sink
	chunkSz int
}

// NewWriter wraps sink. chunkSz bounds how much of an unknown-length
// stream is held in memory per framed chunk; 0 picks a 32 KiB default.
func NewWriter(sink Sink, chunkSz int) *Writer {
	if chunkSz <= 0 {
		chunkSz = 32 * 1024
	}
	return &Writer{sink: sink, chunkSz: chunkSz}
}

// WriteResponse emits resp in full. For a streamed body it pulls one
// buffer at a time from the stream function and writes it immediately,
// so a slow producer never accumulates the whole body in memory.
func (w *Writer) WriteResponse(ctx context.Context, resp *Response) error {
	estimate := len(resp.bytes) + 256
	headp := pools.AcquireBuffer(estimate)
	defer pools.ReleaseBuffer(headp)
	head := appendStatusLine((*headp)[:0], resp)

	switch resp.kind {
	case bodyBytes:
		if !resp.Headers.Has("Content-Length") {
			head = appendHeaderLine(head, "Content-Length", strconv.Itoa(len(resp.bytes)))
		}
		head = appendStoredHeaders(head, resp.Headers)
		head = append(head, "\r\n"...)
		head = append(head, resp.bytes...)
		*headp = head
		return w.sink.Write(ctx, head)

	case bodyStream:
		if resp.streamLen >= 0 {
			want := strconv.FormatInt(resp.streamLen, 10)
			if cl := resp.Headers.Get("Content-Length"); cl != "" && cl != want {
				return ErrContentLengthMismatch
			}
			if !resp.Headers.Has("Content-Length") {
				head = appendHeaderLine(head, "Content-Length", want)
			}
			head = appendStoredHeaders(head, resp.Headers)
			head = append(head, "\r\n"...)
			*headp = head
			if err := w.sink.Write(ctx, head); err != nil {
				return err
			}
			return w.streamKnownLength(ctx, resp)
		}
		head = appendHeaderLine(head, "Transfer-Encoding", "chunked")
		head = appendStoredHeaders(head, resp.Headers)
		head = append(head, "\r\n"...)
		*headp = head
		if err := w.sink.Write(ctx, head); err != nil {
			return err
		}
		return w.streamChunked(ctx, resp)

	default: // bodyEmpty
		if !resp.Headers.Has("Content-Length") {
			head = appendHeaderLine(head, "Content-Length", "0")
		}
		head = appendStoredHeaders(head, resp.Headers)
		head = append(head, "\r\n"...)
		*headp = head
		return w.sink.Write(ctx, head)
	}
}

func (w *Writer) streamKnownLength(ctx context.Context, resp *Response) error {
	bufp := pools.AcquireBuffer(w.chunkSz)
	defer pools.ReleaseBuffer(bufp)
	buf := growTo(bufp, w.chunkSz)

	var sent int64
	for sent < resp.streamLen {
		n, err := resp.stream(ctx, buf)
		if n > 0 {
			if err := w.sink.Write(ctx, buf[:n]); err != nil {
				return err
			}
			sent += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}
	return nil
}

func (w *Writer) streamChunked(ctx context.Context, resp *Response) error {
	bufp := pools.AcquireBuffer(w.chunkSz)
	defer pools.ReleaseBuffer(bufp)
	buf := growTo(bufp, w.chunkSz)

	framep := pools.AcquireBuffer(w.chunkSz + 32)
	defer pools.ReleaseBuffer(framep)

	for {
		n, err := resp.stream(ctx, buf)
		if n > 0 {
			frame := (*framep)[:0]
			frame = append(frame, strconv.FormatInt(int64(n), 16)...)
			frame = append(frame, "\r\n"...)
			frame = append(frame, buf[:n]...)
			frame = append(frame, "\r\n"...)
			*framep = frame
			if werr := w.sink.Write(ctx, frame); werr != nil {
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if n == 0 {
			break
		}
	}
	return w.sink.Write(ctx, []byte("0\r\n\r\n"))
}

// growTo returns a len(n) slice backed by *bufp, extending its capacity
// with a fresh allocation if the pooled buffer was smaller than n (the
// grown slice is what gets returned to the pool, improving future hits).
func growTo(bufp *[]byte, n int) []byte {
	if cap(*bufp) < n {
		*bufp = make([]byte, n)
		return *bufp
	}
	*bufp = (*bufp)[:n]
	return *bufp
}

func appendStatusLine(b []byte, resp *Response) []byte {
	reason := resp.Reason
	if reason == "" {
		reason = statusText(resp.Status)
	}
	b = append(b, "HTTP/1.1 "...)
	b = strconv.AppendInt(b, int64(resp.Status), 10)
	b = append(b, ' ')
	b = append(b, reason...)
	b = append(b, "\r\n"...)
	return b
}

func appendHeaderLine(b []byte, name, value string) []byte {
	b = append(b, name...)
	b = append(b, ':', ' ')
	b = append(b, value...)
	b = append(b, "\r\n"...)
	return b
}

func appendStoredHeaders(b []byte, h Header) []byte {
	h.Each(func(name, value string) {
		b = appendHeaderLine(b, name, value)
	})
	return b
}

func statusText(code int) string {
	if t, ok := statusTexts[code]; ok {
		return t
	}
	return "Status"
}

var statusTexts = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	413: "Payload Too Large",
	416: "Range Not Satisfiable",
	500: "Internal Server Error",
	501: "Not Implemented",
	503: "Service Unavailable",
}
