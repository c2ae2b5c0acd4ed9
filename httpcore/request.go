package httpcore

import "context"

// QueryParam is one name/value pair from the raw query string, kept in
// wire order per §3 ("ordered sequence of (name, value)").
type QueryParam struct {
	Name, Value string
}

// Query is the ordered sequence of query parameters.
type Query []QueryParam

// Get returns the first value bound to name, or "" if absent.
func (q Query) Get(name string) string {
	for _, p := range q {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

// Version is the HTTP version from the request line.
type Version struct {
	Major, Minor int
}

func (v Version) String() string {
	return "HTTP/" + digit(v.Major) + "." + digit(v.Minor)
}

func digit(d int) string {
	if d < 0 || d > 9 {
		return "?"
	}
	return string(byte('0' + d))
}

// AtLeast11 reports whether v is HTTP/1.1 or newer, which governs the
// keep-alive default per §4.G.
func (v Version) AtLeast11() bool { return v.Major > 1 || (v.Major == 1 && v.Minor >= 1) }

// Body is the lazy byte sequence attached to a Request. Read pulls the
// next chunk of body bytes from the wire, suspending on I/O exactly like
// the async socket it is framed over; it returns (0, io.EOF) once the
// framed length (identity or chunked) is exhausted.
type Body interface {
	Read(ctx context.Context, buf []byte) (int, error)
	// Discard reads and throws away all remaining body bytes, per §4.G
	// point 3 (the driver must drain unread body before writing a
	// response so the next request on the same connection parses
	// cleanly).
	Discard(ctx context.Context) error
}

// Request is the immutable, parsed view of one HTTP/1.1 request per §3.
type Request struct {
	Method    Method
	RawMethod string // verbatim token when Method == Other
	Path      string // decoded path, no query
	RawQuery  string
	Query     Query
	Version   Version
	Headers   Header
	Params    Query // path parameters bound by the router, in pattern order
	Range     *ByteRange
	Body      Body
}

// ByteRange is a single parsed `Range: bytes=start-end` request per §4.E.
type ByteRange struct {
	Start, End int64 // inclusive
}

// Param returns the bound path parameter value for name, or "" if the
// route had no such parameter.
func (r *Request) Param(name string) string { return r.Params.Get(name) }
