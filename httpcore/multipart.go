package httpcore

import (
	"bytes"
	"context"
	"io"
	"strings"
)

// ParseMultipartBoundary extracts the boundary parameter from a
// multipart/form-data Content-Type value per RFC 2046 §5.1.1, reporting
// ok=false for any other media type or a missing/empty parameter.
func ParseMultipartBoundary(contentType string) (boundary string, ok bool) {
	ct := strings.TrimSpace(contentType)
	lower := strings.ToLower(ct)
	if !strings.HasPrefix(lower, "multipart/form-data") {
		return "", false
	}
	idx := strings.Index(lower, "boundary=")
	if idx < 0 {
		return "", false
	}
	val := ct[idx+len("boundary="):]
	if semi := strings.IndexByte(val, ';'); semi >= 0 {
		val = val[:semi]
	}
	val = strings.Trim(strings.TrimSpace(val), `"`)
	if val == "" {
		return "", false
	}
	return val, true
}

// SniffMultipartBoundary peeks at the start of req's body and reports
// whether it begins with the boundary marker declared in Content-Type,
// per §4.E's replay primitive: a consumer can inspect body bytes without
// stealing them from whatever reads req.Body afterward. It spends the
// body's single rewind token; on return (whether matched, unmatched, or
// declined because Content-Type isn't multipart) req.Body still yields
// every byte a caller that never sniffed would have seen.
//
// matched is only meaningful when ok is true: ok reports whether a
// boundary was declared and the body supported rewinding at all.
func SniffMultipartBoundary(ctx context.Context, req *Request) (boundary string, ok bool, matched bool, err error) {
	boundary, declared := ParseMultipartBoundary(req.Headers.Get("Content-Type"))
	if !declared {
		return "", false, false, nil
	}
	rw, rewindable := req.Body.(Rewindable)
	if !rewindable {
		return boundary, false, false, nil
	}

	marker := append([]byte("--"), boundary...)
	peek := make([]byte, len(marker))
	n, readErr := readFull(ctx, req.Body, peek)
	if readErr != nil && readErr != io.EOF {
		return boundary, false, false, readErr
	}

	rewound, err := rw.Rewind(ctx)
	if err != nil {
		return boundary, false, false, err
	}
	req.Body = rewound

	return boundary, true, n >= len(marker) && bytes.Equal(peek[:n], marker), nil
}

// readFull reads until buf is full or the body ends, tolerating the short
// reads a single Body.Read call doesn't have to.
func readFull(ctx context.Context, b Body, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := b.Read(ctx, buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
	}
	return total, nil
}
