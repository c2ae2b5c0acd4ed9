// Package middleware wraps router.Handler with cross-cutting behavior —
// panic recovery, request logging, request IDs, CORS — the way
// core/middleware/pipeline.go wraps its Context-based handlers, adapted to
// this port's (context.Context, *httpcore.Request) -> (*httpcore.Response,
// error) handler shape instead of an abort-flag Context.
package middleware

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/searchktools/corehttp/httpcore"
	"github.com/searchktools/corehttp/router"
)

// Middleware wraps a Handler to produce another Handler.
type Middleware func(router.Handler) router.Handler

// Chain applies mws to h in order, so the first Middleware given is the
// outermost: Chain(h, A, B) runs A, then B, then h.
func Chain(h router.Handler, mws ...Middleware) router.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Logger is the small interface server.go and config.Config already use for
// output, so the same Config.Logger can back this middleware.
type Logger interface {
	Printf(format string, args ...any)
}

// Recovery turns a panicking handler into a 500 instead of taking the
// whole connection down. Grounded on core/middleware/pipeline.go's
// Recovery(), generalized from its Context.Abort()+JSON(500, ...) call to
// this port's plain (*Response, error) return.
func Recovery(log Logger) Middleware {
	return func(next router.Handler) router.Handler {
		return router.HandlerFunc(func(ctx context.Context, req *httpcore.Request) (resp *httpcore.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					if log != nil {
						log.Printf("panic recovered handling %s %s: %v", req.RawMethod, req.Path, r)
					}
					resp = httpcore.NewResponse(500)
					err = nil
				}
			}()
			return next.HandleRequest(ctx, req)
		})
	}
}

// Logging records method, path and status once the handler returns.
// Grounded on core/middleware/pipeline.go's Logger(), made synchronous
// (the teacher's async variant fans out to a worker channel; a single log
// line per request doesn't need that here).
func Logging(log Logger) Middleware {
	return func(next router.Handler) router.Handler {
		return router.HandlerFunc(func(ctx context.Context, req *httpcore.Request) (*httpcore.Response, error) {
			start := time.Now()
			resp, err := next.HandleRequest(ctx, req)
			if log == nil {
				return resp, err
			}
			status := 0
			if resp != nil {
				status = resp.Status
			}
			method := req.Method.String()
			if req.Method == httpcore.Other {
				method = req.RawMethod
			}
			log.Printf("%s %s -> %d (%s)", method, req.Path, status, time.Since(start))
			return resp, err
		})
	}
}

// RequestID stamps every response with a monotonically increasing
// X-Request-Id, grounded on core/middleware/pipeline.go's RequestID().
func RequestID() Middleware {
	var counter atomic.Uint64
	return func(next router.Handler) router.Handler {
		return router.HandlerFunc(func(ctx context.Context, req *httpcore.Request) (*httpcore.Response, error) {
			id := counter.Add(1)
			resp, err := next.HandleRequest(ctx, req)
			if resp != nil {
				resp.Headers.Set("X-Request-Id", fmt.Sprintf("%d", id))
			}
			return resp, err
		})
	}
}

// CORS adds permissive CORS headers and short-circuits OPTIONS preflight
// requests with 204, grounded on core/middleware/pipeline.go's CORS().
func CORS(allowOrigin string) Middleware {
	return func(next router.Handler) router.Handler {
		return router.HandlerFunc(func(ctx context.Context, req *httpcore.Request) (*httpcore.Response, error) {
			if req.Method == httpcore.OPTIONS {
				resp := httpcore.NewResponse(204)
				setCORSHeaders(resp, allowOrigin)
				return resp, nil
			}
			resp, err := next.HandleRequest(ctx, req)
			if resp != nil {
				setCORSHeaders(resp, allowOrigin)
			}
			return resp, err
		})
	}
}

func setCORSHeaders(resp *httpcore.Response, allowOrigin string) {
	resp.Headers.Set("Access-Control-Allow-Origin", allowOrigin)
	resp.Headers.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	resp.Headers.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}
