package router

import (
	"context"
	"errors"
	"sync"

	"github.com/searchktools/corehttp/httpcore"
	"github.com/searchktools/corehttp/optimize"
)

var errWildcardNotLast = errors.New("router: wildcard must be the last path segment")

// Option configures a single route registration.
type Option func(*Route)

// WithHeader adds a header predicate per §3's value-pattern (literal or
// `*`-prefix/suffix wildcard).
func WithHeader(name, pattern string) Option {
	return func(r *Route) { r.headers = append(r.headers, compileHeaderPattern(name, pattern)) }
}

// WithCaseInsensitivePath makes literal segment comparison case-insensitive
// for this route, per §4.F ("case-sensitive by default; case-insensitive
// when so configured").
func WithCaseInsensitivePath() Option {
	return func(r *Route) { r.caseSensitive = false }
}

// WithMultipartBody wraps the route's handler with a body-sniffing hook
// (§4.E's SUPPLEMENTED multipart boundary peek): before the handler runs,
// it reads just enough of the body to check it actually starts with the
// boundary marker declared in Content-Type, then rewinds so the handler
// still sees the whole body. A request whose Content-Type isn't
// multipart/form-data, or whose body doesn't start with its own declared
// boundary, never reaches the handler — it gets a 400 instead.
func WithMultipartBody() Option {
	return func(r *Route) {
		inner := r.handler
		r.handler = HandlerFunc(func(ctx context.Context, req *httpcore.Request) (*httpcore.Response, error) {
			_, ok, matched, err := httpcore.SniffMultipartBoundary(ctx, req)
			if err != nil {
				return nil, err
			}
			if !ok || !matched {
				return httpcore.NewResponse(400), nil
			}
			return inner.HandleRequest(ctx, req)
		})
	}
}

// Router maintains an ordered list of (route, handler) pairs and matches
// first-match-wins, per §4.F. Register and Match are synchronized by the
// router's own lock, so routes may be added while requests are being
// matched; a Match sees the routes registered before it started (§4.H).
type Router struct {
	mu     sync.RWMutex
	routes []*Route
}

// New creates an empty router.
func New() *Router { return &Router{} }

// Register adds a route matching any of methods (nil/empty means any
// method) against pattern, dispatching to handler. Routes are matched in
// registration order: an earlier, less specific pattern shadows a later,
// more specific one (§8 scenario 6).
func (rt *Router) Register(methods []httpcore.Method, pattern string, handler Handler, opts ...Option) error {
	segs, trailingSlash, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	route := &Route{
		segments:      segs,
		trailingSlash: trailingSlash,
		handler:       handler,
		caseSensitive: true,
		pattern:       pattern,
	}
	if len(methods) > 0 {
		route.methods = make(map[httpcore.Method]bool, len(methods))
		for _, m := range methods {
			route.methods[m] = true
		}
	}
	for _, opt := range opts {
		opt(route)
	}
	rt.mu.Lock()
	rt.routes = append(rt.routes, route)
	rt.mu.Unlock()
	return nil
}

// Match runs the three-stage match of §4.F against req, returning the
// first route that matches along with path parameters bound in pattern
// order. ok is false if no route matched (the connection driver maps that
// to a 404 via HTTPUnhandledError).
func (rt *Router) Match(req *httpcore.Request) (Handler, httpcore.Query, bool) {
	reqSegs := splitRequestSegments(req.Path)
	rt.mu.RLock()
	routes := rt.routes
	rt.mu.RUnlock()
	for _, route := range routes {
		if !route.matchesMethod(req.Method) {
			continue
		}
		params, ok := route.matchSegments(reqSegs)
		if !ok {
			continue
		}
		if !route.matchesHeaders(req.Headers) {
			continue
		}
		return route.handler, params, true
	}
	return nil, nil, false
}

func (r *Route) matchesMethod(m httpcore.Method) bool {
	if len(r.methods) == 0 {
		return true
	}
	return r.methods[m]
}

func (r *Route) matchesHeaders(h httpcore.Header) bool {
	for _, hp := range r.headers {
		if !h.Has(hp.name) || !hp.matches(h.Get(hp.name)) {
			return false
		}
	}
	return true
}

// matchSegments walks reqSegs against r.segments positionally per §4.F:
// literals must equal, parameters bind, a wildcard consumes the rest and
// must be last. A trailing '/' in the pattern forces exact length; absent
// a wildcard, extra request segments are otherwise a mismatch.
func (r *Route) matchSegments(reqSegs []string) (httpcore.Query, bool) {
	var params httpcore.Query
	i := 0
	for ; i < len(r.segments); i++ {
		seg := r.segments[i]
		if seg.kind == segWildcard {
			var rest string
			if i < len(reqSegs) {
				rest = joinSegments(reqSegs[i:])
			}
			if seg.name != "" {
				params = append(params, httpcore.QueryParam{Name: seg.name, Value: rest})
			}
			return params, true
		}
		if i >= len(reqSegs) {
			return nil, false
		}
		switch seg.kind {
		case segLiteral:
			if !segmentEqual(seg.literal, reqSegs[i], r.caseSensitive) {
				return nil, false
			}
		case segParam:
			params = append(params, httpcore.QueryParam{Name: seg.name, Value: reqSegs[i]})
		}
	}
	if i < len(reqSegs) {
		return nil, false // extra segments, no wildcard to absorb them
	}
	if r.trailingSlash && len(reqSegs) != len(r.segments) {
		return nil, false
	}
	return params, true
}

func segmentEqual(pattern, actual string, caseSensitive bool) bool {
	if caseSensitive {
		return optimize.ComparePathSIMD(pattern, actual)
	}
	return len(pattern) == len(actual) && equalFold(pattern, actual)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func splitRequestSegments(path string) []string {
	trimmed := path
	for len(trimmed) > 0 && trimmed[0] == '/' {
		trimmed = trimmed[1:]
	}
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '/' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if trimmed == "" {
		return nil
	}
	var segs []string
	start := 0
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] == '/' {
			segs = append(segs, trimmed[start:i])
			start = i + 1
		}
	}
	segs = append(segs, trimmed[start:])
	return segs
}

func joinSegments(segs []string) string {
	out := segs[0]
	for _, s := range segs[1:] {
		out += "/" + s
	}
	return out
}
