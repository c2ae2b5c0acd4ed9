// Package asyncio is the async socket layer (component D): it wraps a
// non-blocking sock.Socket and a netpoll.Pool so that every blocking-shaped
// call attempts its syscall once, suspends on EAGAIN/EWOULDBLOCK via the
// pool, retries immediately on EINTR, and returns a typed failure on any
// other error.
package asyncio

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/searchktools/corehttp/internal/netpoll"
	"github.com/searchktools/corehttp/internal/sock"
	"github.com/searchktools/corehttp/internal/sysfd"
)

// ErrClosed is returned once a Socket has had Close called on it.
var ErrClosed = errors.New("asyncio: socket closed")

// rawConn is the subset of *sock.Socket's method set this package drives.
// Narrowing it to an interface lets tests substitute a fake double for the
// underlying fd — exactly the connSocket move conn.go makes one layer up —
// instead of needing a real socket to exercise retry/suspend logic or the
// control-message slicing in datagram.go.
type rawConn interface {
	FD() int
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
	Accept() (*sock.Socket, sock.Addr, error)
	Connect(addr sock.Addr) error
	ReceiveFrom(buf []byte) (int, sock.Addr, error)
	SendTo(buf []byte, addr sock.Addr) error
	ReceiveMsg(buf, control []byte) (n, oobn int, addr sock.Addr, err error)
	SendMsg(buf, control []byte, addr sock.Addr) (int, error)
}

// Socket suspends the calling goroutine on EAGAIN instead of blocking the
// OS thread, so many connections share the pool's single wait loop.
type Socket struct {
	raw  rawConn
	pool netpoll.Pool
}

// New wraps raw for suspend-on-EAGAIN I/O through pool. raw must already be
// registered via pool.Add by the caller (the server does this once, at
// accept time, so repeated wraps of the same fd don't double-register).
func New(pool netpoll.Pool, raw *sock.Socket) *Socket {
	return &Socket{raw: raw, pool: pool}
}

// FD exposes the underlying descriptor, e.g. to hand off on protocol
// upgrade.
func (s *Socket) FD() int { return s.raw.FD() }

// Raw returns the underlying synchronous connection.
func (s *Socket) Raw() rawConn { return s.raw }

// retry runs op once; on EAGAIN/EWOULDBLOCK it suspends for the requested
// event and retries; on EINTR it retries immediately; any other error (or
// cancellation/timeout from the pool) is returned as-is.
func retry[T any](ctx context.Context, s *Socket, ev netpoll.Events, deadline time.Time, op func() (T, error)) (T, error) {
	for {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if sysfd.IsInterrupted(err) {
			continue
		}
		if sysfd.IsAgain(err) {
			if _, werr := s.pool.Suspend(ctx, s.raw.FD(), ev, deadline); werr != nil {
				var zero T
				return zero, translatePoolError(werr)
			}
			continue
		}
		return v, err
	}
}

func translatePoolError(err error) error {
	switch err.(type) {
	case *netpoll.CancellationError:
		return err
	case netpoll.TimeoutError:
		return err
	}
	if errors.Is(err, netpoll.ErrDisconnected) || errors.Is(err, netpoll.ErrPoolClosed) {
		return err
	}
	return err
}

// ReadByte reads exactly one byte.
func (s *Socket) ReadByte(ctx context.Context) (byte, error) {
	var buf [1]byte
	n, err := retry(ctx, s, netpoll.Readable, time.Time{}, func() (int, error) {
		return s.raw.Read(buf[:])
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrClosed
	}
	return buf[0], nil
}

// Read performs a single suspending read of up to len(buf) bytes — the
// primitive behind the "readable byte stream" of §4.D; a caller loops this
// to drain a stream of buffers as they arrive. n == 0, err == nil signals
// an orderly EOF.
func (s *Socket) Read(ctx context.Context, buf []byte) (int, error) {
	return retry(ctx, s, netpoll.Readable, time.Time{}, func() (int, error) {
		return s.raw.Read(buf)
	})
}

// ReadFull loops until len(buf) bytes have been read or EOF is hit.
func (s *Socket) ReadFull(ctx context.Context, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := s.Read(ctx, buf[total:])
		if n > 0 {
			total += n
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, ErrClosed
		}
	}
	return total, nil
}

// Write drains buf fully, satisfying httpcore.Sink so a Socket can be
// handed straight to a Writer.
func (s *Socket) Write(ctx context.Context, buf []byte) error {
	return s.WriteAll(ctx, buf)
}

// WriteAll loops until buf is fully drained.
func (s *Socket) WriteAll(ctx context.Context, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := retry(ctx, s, netpoll.Writable, time.Time{}, func() (int, error) {
			return s.raw.Write(buf[total:])
		})
		if n > 0 {
			total += n
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Accept accepts one connection, suspending until one is pending.
func (s *Socket) Accept(ctx context.Context) (*Socket, sock.Addr, error) {
	type acceptResult struct {
		sock *sock.Socket
		addr sock.Addr
	}
	r, err := retry(ctx, s, netpoll.Readable, time.Time{}, func() (acceptResult, error) {
		nsock, addr, err := s.raw.Accept()
		return acceptResult{nsock, addr}, err
	})
	if err != nil {
		return nil, sock.Addr{}, err
	}
	if err := s.pool.Add(r.sock.FD()); err != nil {
		r.sock.Close()
		return nil, sock.Addr{}, err
	}
	return New(s.pool, r.sock), r.addr, nil
}

// Connect initiates a connection, suspending on writability if the kernel
// returns EINPROGRESS.
func (s *Socket) Connect(ctx context.Context, addr sock.Addr) error {
	err := s.raw.Connect(addr)
	if err == nil {
		return nil
	}
	if se, ok := err.(*sysfd.Error); ok && se.Errno == unix.EINPROGRESS {
		if err := s.pool.Add(s.raw.FD()); err != nil {
			return err
		}
		_, werr := s.pool.Suspend(ctx, s.raw.FD(), netpoll.Writable, time.Time{})
		return werr
	}
	return err
}

// Close closes the underlying socket and deregisters it from the pool,
// waking any waiter with netpoll.ErrDisconnected.
func (s *Socket) Close() error {
	s.pool.Remove(s.raw.FD())
	return s.raw.Close()
}
