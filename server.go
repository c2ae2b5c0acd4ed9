// Package corehttp is the embeddable HTTP/1.1 server library: an
// event-pool-driven listener (component H) that accepts connections and
// hands each one to the connection driver (component G), which parses
// requests through the incremental codec (component E) and dispatches them
// through the ordered router (component F).
package corehttp

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/searchktools/corehttp/config"
	"github.com/searchktools/corehttp/internal/asyncio"
	"github.com/searchktools/corehttp/internal/netpoll"
	"github.com/searchktools/corehttp/internal/sock"
	"github.com/searchktools/corehttp/internal/sysfd"
	"github.com/searchktools/corehttp/middleware"
	"github.com/searchktools/corehttp/pools"
	"github.com/searchktools/corehttp/router"
)

// ErrAlreadyStarted is returned by Run if the server is already running,
// per §4.H's fail-fast re-entrancy guard.
var ErrAlreadyStarted = errors.New("corehttp: server already started")

// Server owns a configuration record, the event pool, the listening
// socket, and the set of live connections (§4.H), grounded on
// core/engine.go's Engine and app/app.go's signal-driven shutdown.
type Server struct {
	cfg    *config.Config
	pool   netpoll.Pool
	router *router.Router

	mu       sync.Mutex
	started  bool
	listener *asyncio.Socket
	addr     sock.Addr
	conns    map[*connection]context.CancelFunc

	draining atomic.Bool
	wg       sync.WaitGroup

	reapPool   *pools.WorkerPool
	middleware []middleware.Middleware
}

// NewServer builds a Server bound to cfg and driven by pool. pool is
// supplied rather than created internally so a host application can share
// one pool across multiple servers or other I/O, per §6's "pool: the
// event pool instance".
func NewServer(cfg *config.Config, pool netpoll.Pool) *Server {
	return &Server{
		cfg:      cfg,
		pool:     pool,
		router:   router.New(),
		conns:    make(map[*connection]context.CancelFunc),
		reapPool: pools.NewWorkerPool(4),
	}
}

// Router exposes route registration. Registration is synchronized against
// the accept loop by the router's own internal state, not by quiescing it
// first — newly added routes take effect for subsequent requests only
// (§4.H).
func (s *Server) Router() *router.Router { return s.router }

// Use appends mws to the chain wrapped around every matched handler, in
// call order (the first Middleware given runs outermost). Unlike route
// registration, it must complete before Run is called — the chain isn't
// reapplied to requests already in flight.
func (s *Server) Use(mws ...middleware.Middleware) *Server {
	s.middleware = append(s.middleware, mws...)
	return s
}

// Addr returns the concrete listening address after Run has bound the
// socket (port resolved if 0 was requested), per §6's "listeningAddress"
// query. It returns the zero Addr before Run binds.
func (s *Server) Addr() sock.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run prepares the pool, creates the listening socket, and accepts
// connections until ctx is cancelled or Stop closes the listener. It
// fails fast with ErrAlreadyStarted if called while already running
// (§4.H).
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	pools.ApplyGCConfig(pools.DefaultGCConfig())

	addr, err := resolveListenAddr(s.cfg.Address())
	if err != nil {
		return err
	}

	raw, err := sock.New(addr.Kind)
	if err != nil {
		return err
	}
	if err := raw.Bind(addr); err != nil {
		raw.Close()
		return err
	}
	if err := raw.Listen(1024); err != nil {
		raw.Close()
		return err
	}
	if err := s.pool.Add(raw.FD()); err != nil {
		raw.Close()
		return err
	}

	ln := asyncio.New(s.pool, raw)
	defer ln.Close() // idempotent: Stop may already have closed it

	bound, err := raw.LocalAddr()
	if err != nil {
		bound = addr
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = bound
	s.mu.Unlock()

	s.logf("listening on %s", bound.String())

	go s.reapIdle(ctx)

	for {
		accepted, _, err := ln.Accept(ctx)
		if err != nil {
			if isLoopExit(err) {
				break
			}
			if isTransientAcceptError(err) {
				s.logf("accept: %v", err)
				continue
			}
			return err
		}
		s.handleAccepted(ctx, accepted)
	}

	s.wg.Wait()
	return nil
}

// Stop implements §4.H's `stop(timeout)`: it closes the listening socket to
// end the accept loop, signals every live connection to drain its
// in-flight request and exit at its next keep-alive boundary, then waits
// up to timeout for the supervising group. Connections still running past
// the deadline are cancelled outright.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
	s.draining.Store(true)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
	}

	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.conns))
	for _, cancel := range s.conns {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}

	<-done
	return nil
}

// handleAccepted spawns one task per accepted connection into the
// supervising group (§4.H), registering a per-connection cancel func so
// Stop can force it closed after its graceful drain window expires.
func (s *Server) handleAccepted(parent context.Context, raw *asyncio.Socket) {
	connCtx, cancel := context.WithCancel(parent)
	conn := newConnection(raw, s.router, s.cfg, &s.draining, s.middleware)

	s.mu.Lock()
	s.conns[conn] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
			cancel()
		}()
		conn.serve(connCtx)
	}()
}

// reapIdle force-closes connections idle past IdleTimeoutSeconds, skipping
// any currently dispatched to a handler. Grounded on core/engine.go's
// cleanupIdleConnections, generalized from its fd-keyed map to this
// port's cancel-func registry. Each expiry's cancel() is dispatched
// through a small bounded worker pool rather than called inline: with
// many thousands of idle connections, scanning and cancelling them
// one-by-one on the reaper's own goroutine would delay the next tick: a
// cancel() call is fast and independent, so it's exactly the kind of
// short, self-contained task the pool is for (unlike handler dispatch,
// where a stuck task could starve the pool — see pools.WorkerPool's
// doc comment).
func (s *Server) reapIdle(ctx context.Context) {
	idleTimeout := time.Duration(s.cfg.IdleTimeoutSeconds) * time.Second
	if idleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	defer s.reapPool.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			var expired []context.CancelFunc
			for conn, cancel := range s.conns {
				if conn.idleFor(now) > idleTimeout {
					expired = append(expired, cancel)
				}
			}
			s.mu.Unlock()
			for _, cancel := range expired {
				cancel := cancel
				s.reapPool.Submit(func() { cancel() })
			}
		}
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Printf(format, args...)
	}
}

// isLoopExit reports whether err signals the accept loop should end
// quietly: the listener was closed by Stop or ctx was cancelled.
func isLoopExit(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, netpoll.ErrDisconnected) || errors.Is(err, netpoll.ErrPoolClosed) {
		return true
	}
	var ce *netpoll.CancellationError
	return errors.As(err, &ce)
}

// isTransientAcceptError reports whether err is one of the per-accept
// failures §7 says to log and continue past (EMFILE, ECONNABORTED),
// grounded on core/engine.go's accept loop tolerance for "client closed
// before accept completed" races.
func isTransientAcceptError(err error) bool {
	var se *sysfd.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Errno {
	case unix.EMFILE, unix.ENFILE, unix.ECONNABORTED:
		return true
	default:
		return false
	}
}

// resolveListenAddr parses a "host:port" listening address into the
// tagged sock.Addr variant (§3), mirroring the teacher's own
// net.ResolveTCPAddr call (core/engine.go's Run) for the string-parsing
// step only — the actual socket is built through internal/sock, not
// net.ListenTCP.
func resolveListenAddr(address string) (sock.Addr, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return sock.Addr{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return sock.Addr{}, err
	}

	if host == "" {
		return sock.Addr{Kind: sock.KindIPv4, Port: port}, nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return sock.Addr{}, &net.AddrError{Err: "invalid listen address", Addr: address}
	}
	if v4 := ip.To4(); v4 != nil {
		a := sock.Addr{Kind: sock.KindIPv4, Port: port}
		copy(a.IP[:4], v4)
		return a, nil
	}
	a := sock.Addr{Kind: sock.KindIPv6, Port: port}
	copy(a.IP[:], ip.To16())
	return a, nil
}
