package httpcore

import "errors"

// ParseError describes a malformed request per §7; the connection driver
// maps any ParseError to a 400 (or 413 for Oversized).
type ParseError struct {
	Reason    string
	Oversized bool // request line or headers exceeded Config.HeaderCap
}

func (e *ParseError) Error() string { return "httpcore: parse error: " + e.Reason }

func parseErr(reason string) error { return &ParseError{Reason: reason} }

func tooLargeErr(reason string) error { return &ParseError{Reason: reason, Oversized: true} }

// ErrUnexpectedEOF is returned by the body reader when the source closes
// before the framed length (Content-Length or final chunk) is reached.
var ErrUnexpectedEOF = errors.New("httpcore: connection closed mid-body")

// ErrNoReplay is returned by Rewind when no replay token is available,
// either because the request has no body (and so no replay buffer) or a
// rewind already consumed the one token §9 grants per request.
var ErrNoReplay = errors.New("httpcore: no replay available")
