package corehttp

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/searchktools/corehttp/config"
	"github.com/searchktools/corehttp/httpcore"
	"github.com/searchktools/corehttp/middleware"
	"github.com/searchktools/corehttp/router"
)

// errUnhandled marks a request for which no route matched, the
// dispatcher-internal HTTPUnhandledError of §7.
var errUnhandled = errors.New("corehttp: no route matched")

// errHandlerTimeout marks a handler that did not return within the
// configured request timeout (§4.G point 2).
var errHandlerTimeout = errors.New("corehttp: handler exceeded request timeout")

// connSocket is the slice of *asyncio.Socket the connection driver needs:
// a request source, a response sink, and ownership transfer on close or
// upgrade. Narrowing it to an interface (rather than depending on
// *asyncio.Socket directly) lets the driver's keep-alive/timeout/upgrade
// logic be exercised against an in-memory double.
type connSocket interface {
	httpcore.Source
	httpcore.Sink
	Close() error
}

// connection drives one accepted socket through its keep-alive lifetime,
// per §4.G. One connection serves requests strictly in arrival order; a
// fresh connection is created per accepted socket and discarded on close.
type connection struct {
	sock   connSocket
	parser *httpcore.Parser
	writer *httpcore.Writer
	router *router.Router
	cfg    *config.Config
	chain  []middleware.Middleware

	draining *atomic.Bool

	lastActive atomic.Int64 // unix nanos, read by the idle reaper
	busy       atomic.Bool  // true while a handler is dispatched
}

func newConnection(sock connSocket, rt *router.Router, cfg *config.Config, draining *atomic.Bool, chain []middleware.Middleware) *connection {
	c := &connection{
		sock: sock,
		parser: httpcore.NewParser(sock, httpcore.Config{
			BufferSize: cfg.SharedRequestBufferSize,
			HeaderCap:  cfg.SharedRequestBufferSize * 4,
			ReplayCap:  cfg.SharedRequestReplaySize,
		}),
		writer:   httpcore.NewWriter(sock, 0),
		router:   rt,
		cfg:      cfg,
		chain:    chain,
		draining: draining,
	}
	c.touch()
	return c
}

func (c *connection) touch() { c.lastActive.Store(time.Now().UnixNano()) }

// idleFor reports how long the connection has been inactive, ignoring
// time spent inside a dispatched handler (§4.G's "idle" excludes
// processing), grounded on core/engine.go's cleanupIdleConnections.
func (c *connection) idleFor(now time.Time) time.Duration {
	if c.busy.Load() {
		return 0
	}
	return now.Sub(time.Unix(0, c.lastActive.Load()))
}

// serve runs the §4.G loop until the peer closes the connection, a parse
// error or handler failure forces a close, or a handler takes ownership of
// the socket via protocol upgrade. It always closes sock before returning,
// except when ownership was transferred to an upgrade callback.
func (c *connection) serve(ctx context.Context) {
	transferred := false
	defer func() {
		if !transferred {
			c.sock.Close()
		}
	}()

	for {
		if c.draining.Load() {
			return
		}

		req, err := c.parser.ReadRequest(ctx)
		if err != nil {
			if err == io.EOF {
				return // peer closed cleanly between requests
			}
			c.writeFailure(ctx, statusForReadError(err))
			return
		}
		c.touch()

		resp, dispatchErr := c.dispatch(ctx, req)
		if dispatchErr == errHandlerTimeout {
			// The handler goroutine may still be running against req.Body;
			// don't touch it further. Closing sock (deferred above) unblocks
			// any I/O it's still attempting.
			c.writeFailure(ctx, 500)
			return
		}

		// §4.G point 3: drain unread body before writing any response, so
		// a pipelined next request (or the next keep-alive request) parses
		// from a clean boundary.
		if drainErr := req.Body.Discard(ctx); drainErr != nil {
			return
		}

		if dispatchErr != nil {
			c.writeFailure(ctx, statusForDispatchError(dispatchErr))
			return
		}

		if resp.IsUpgrade() {
			if err := c.upgrade(ctx, resp); err == nil {
				transferred = true
			}
			return
		}

		keepAlive := negotiateConnection(req, resp)
		if err := c.writer.WriteResponse(ctx, resp); err != nil {
			return
		}
		c.touch()
		if !keepAlive {
			return
		}
	}
}

// dispatch matches req against the router and runs its handler within the
// configured request timeout (§4.G point 2). The handler runs on its own
// goroutine so a timeout can be observed without the handler's cooperation.
func (c *connection) dispatch(ctx context.Context, req *httpcore.Request) (*httpcore.Response, error) {
	handler, params, ok := c.router.Match(req)
	if !ok {
		return nil, errUnhandled
	}
	req.Params = params
	handler = middleware.Chain(handler, c.chain...)

	dctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.RequestTimeoutSeconds)*time.Second)
	defer cancel()

	type result struct {
		resp *httpcore.Response
		err  error
	}
	done := make(chan result, 1)

	c.busy.Store(true)
	go func() {
		resp, err := handler.HandleRequest(dctx, req)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		c.busy.Store(false)
		return r.resp, r.err
	case <-dctx.Done():
		return nil, errHandlerTimeout
	}
}

// upgrade writes resp (expected to be a 101) and then hands the raw socket
// to its attached UpgradeFunc, bypassing further HTTP framing (§4.G point
// 5, the GLOSSARY's "Protocol upgrade").
func (c *connection) upgrade(ctx context.Context, resp *httpcore.Response) error {
	if err := c.writer.WriteResponse(ctx, resp); err != nil {
		return err
	}
	return resp.Upgrade()(ctx, c.sock)
}

// writeFailure emits a minimal error response and forces Connection: close.
// Any write error is ignored: the connection is closing regardless, and a
// half-dead peer simply won't see the response.
func (c *connection) writeFailure(ctx context.Context, status int) {
	resp := httpcore.NewBytesResponse(status, []byte(failureReasons[status]+"\n"))
	resp.Headers.Set("Content-Type", "text/plain; charset=utf-8")
	resp.Headers.Set("Connection", "close")
	c.writer.WriteResponse(ctx, resp)
}

var failureReasons = map[int]string{
	400: "Bad Request",
	404: "Not Found",
	413: "Payload Too Large",
	500: "Internal Server Error",
}

func statusForReadError(err error) int {
	var pe *httpcore.ParseError
	if errors.As(err, &pe) && pe.Oversized {
		return 413
	}
	return 400
}

func statusForDispatchError(err error) int {
	if errors.Is(err, errUnhandled) {
		return 404
	}
	return 500
}

// negotiateConnection implements §4.G point 4: echo the client's
// Connection header when keep-alive is negotiated, close otherwise.
// HTTP/1.1 defaults to keep-alive, HTTP/1.0 defaults to close unless the
// client explicitly opts in, and "Connection: close" always forces close.
func negotiateConnection(req *httpcore.Request, resp *httpcore.Response) bool {
	reqConn := strings.ToLower(req.Headers.Get("Connection"))
	var keepAlive bool
	switch {
	case reqConn == "close":
		keepAlive = false
	case req.Version.AtLeast11():
		keepAlive = true
	case reqConn == "keep-alive":
		keepAlive = true
	default:
		keepAlive = false
	}

	if keepAlive {
		resp.Headers.Set("Connection", "keep-alive")
	} else {
		resp.Headers.Set("Connection", "close")
	}
	return keepAlive
}
