// Package netpoll is the event pool (component C): it multiplexes
// non-blocking file descriptors over the best available kernel primitive
// (kqueue on Darwin/BSD, epoll on Linux, poll elsewhere) and parks a
// suspended task until the kernel reports readiness, the fd is closed, the
// caller's context is cancelled, or a deadline passes.
package netpoll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Events is a bitmask of the readiness a caller is waiting for.
type Events uint8

const (
	Readable Events = 1 << iota
	Writable
)

func (e Events) String() string {
	switch e {
	case Readable:
		return "readable"
	case Writable:
		return "writable"
	case Readable | Writable:
		return "readable|writable"
	default:
		return "none"
	}
}

// ErrDisconnected is delivered to a waiter whose fd was closed while the
// suspension was pending.
var ErrDisconnected = errors.New("netpoll: fd disconnected")

// ErrPoolClosed is delivered to every pending waiter when the pool is
// dropped, per §4.C requirement (iii).
var ErrPoolClosed = errors.New("netpoll: pool closed")

// CancellationError is returned from Suspend when the caller's context is
// cancelled before readiness arrives. The pool registration for that one
// waiter is released before the error is returned.
type CancellationError struct{ Cause error }

func (e *CancellationError) Error() string { return fmt.Sprintf("netpoll: cancelled: %v", e.Cause) }
func (e *CancellationError) Unwrap() error { return e.Cause }

// TimeoutError is returned from Suspend when a deadline passes before
// readiness arrives.
type TimeoutError struct{}

func (TimeoutError) Error() string { return "netpoll: suspend timed out" }

// Pool is the shared contract every backend implements: register interest
// in an fd, suspend a goroutine until one of the requested events fires (or
// the fd is dropped, the context is cancelled, or the deadline passes), and
// tear everything down cleanly on Close.
type Pool interface {
	// Add registers fd with the pool. Must be called once per fd before the
	// first Suspend call for that fd.
	Add(fd int) error

	// Suspend blocks the calling goroutine until at least one of the
	// requested events is ready on fd, the fd is removed, ctx is done, or
	// deadline (if non-zero) elapses. It returns the events actually ready.
	Suspend(ctx context.Context, fd int, events Events, deadline time.Time) (Events, error)

	// Remove deregisters fd and wakes any pending waiter for it with
	// ErrDisconnected.
	Remove(fd int) error

	// Run drives the backend's blocking wait loop until ctx is done or
	// Close is called. Exactly one goroutine should call Run per Pool.
	Run(ctx context.Context) error

	// Close stops Run, completes every pending waiter with ErrPoolClosed,
	// and releases the backend's own descriptor.
	Close() error
}

type waiterKey struct {
	fd     int
	events Events
}

type waiter struct {
	ready    chan Events
	done     chan struct{} // closed once ready or errored has been delivered
	err      error
	deadline time.Time // zero means none; read by the poll backend's timeout calc
}

// registry holds the {fd, mask, waiter} bookkeeping shared by every
// backend (§3 "Pool registration"): at most one waiter per (fd, event)
// pair, removed on wakeup, cancellation, or fd close.
type registry struct {
	mu      sync.Mutex
	waiters map[waiterKey]*waiter
	closed  bool
}

func newRegistry() *registry {
	return &registry{waiters: make(map[waiterKey]*waiter)}
}

// register installs a fresh waiter for (fd, events), returning an error if
// one is already outstanding for any overlapping event on that fd.
func (r *registry) register(fd int, events Events, deadline time.Time) (*waiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrPoolClosed
	}
	for _, bit := range []Events{Readable, Writable} {
		if events&bit == 0 {
			continue
		}
		if _, exists := r.waiters[waiterKey{fd, bit}]; exists {
			return nil, fmt.Errorf("netpoll: fd %d already has a waiter for %s", fd, bit)
		}
	}
	w := &waiter{ready: make(chan Events, 1), done: make(chan struct{}), deadline: deadline}
	for _, bit := range []Events{Readable, Writable} {
		if events&bit != 0 {
			r.waiters[waiterKey{fd, bit}] = w
		}
	}
	return w, nil
}

// snapshot returns a copy of the current (fd, event) -> waiter map, used by
// the poll backend to rebuild its pollfd array each cycle.
func (r *registry) snapshot() map[waiterKey]*waiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[waiterKey]*waiter, len(r.waiters))
	for k, w := range r.waiters {
		out[k] = w
	}
	return out
}

// unregister removes the waiter entries installed by register, idempotent
// against a wakeup that already removed them.
func (r *registry) unregister(fd int, events Events, w *waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bit := range []Events{Readable, Writable} {
		if events&bit == 0 {
			continue
		}
		if cur, ok := r.waiters[waiterKey{fd, bit}]; ok && cur == w {
			delete(r.waiters, waiterKey{fd, bit})
		}
	}
}

// wake delivers ready to every waiter matching fd whose requested event
// intersects ready, removing each from the registry exactly once.
func (r *registry) wake(fd int, ready Events) {
	r.mu.Lock()
	woken := make(map[*waiter]Events, 2)
	for _, bit := range []Events{Readable, Writable} {
		if ready&bit == 0 {
			continue
		}
		key := waiterKey{fd, bit}
		if w, ok := r.waiters[key]; ok {
			woken[w] |= bit
			delete(r.waiters, key)
		}
	}
	r.mu.Unlock()

	for w, ev := range woken {
		select {
		case w.ready <- ev:
		default:
		}
		close(w.done)
	}
}

// dropFD wakes every waiter on fd (any event) with ErrDisconnected, used
// when the fd is removed or closed while a suspension is outstanding.
func (r *registry) dropFD(fd int) {
	r.mu.Lock()
	woken := make(map[*waiter]struct{}, 2)
	for _, bit := range []Events{Readable, Writable} {
		key := waiterKey{fd, bit}
		if w, ok := r.waiters[key]; ok {
			woken[w] = struct{}{}
			delete(r.waiters, key)
		}
	}
	r.mu.Unlock()

	for w := range woken {
		w.err = ErrDisconnected
		close(w.done)
	}
}

// closeAll marks the registry closed and completes every pending waiter
// with ErrPoolClosed.
func (r *registry) closeAll() {
	r.mu.Lock()
	r.closed = true
	all := r.waiters
	r.waiters = make(map[waiterKey]*waiter)
	r.mu.Unlock()

	seen := make(map[*waiter]struct{}, len(all))
	for _, w := range all {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		w.err = ErrPoolClosed
		close(w.done)
	}
}

// await blocks until w is woken, ctx is cancelled, or deadline passes,
// un-registering the waiter before returning in every case — the shared
// second half of every backend's Suspend.
func await(ctx context.Context, r *registry, fd int, events Events, deadline time.Time, w *waiter) (Events, error) {
	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			// Zero/past deadline still yields once before firing, per §5.
			d = 0
		}
		timer = time.NewTimer(d)
		timeoutCh = timer.C
		defer timer.Stop()
	}

	select {
	case ev := <-w.ready:
		return ev, nil
	case <-w.done:
		if w.err != nil {
			return 0, w.err
		}
		select {
		case ev := <-w.ready:
			return ev, nil
		default:
			return 0, ErrDisconnected
		}
	case <-ctx.Done():
		r.unregister(fd, events, w)
		return 0, &CancellationError{Cause: ctx.Err()}
	case <-timeoutCh:
		r.unregister(fd, events, w)
		return 0, TimeoutError{}
	}
}

// wakeupPipe lets Close interrupt a backend blocked in kevent/epoll_wait/
// poll with an infinite timeout, shared by all three backends.
type wakeupPipe struct {
	r, w int
}

func newWakeupPipe() (*wakeupPipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &wakeupPipe{r: fds[0], w: fds[1]}, nil
}

func (p *wakeupPipe) wake() {
	unix.Write(p.w, []byte{0})
}

func (p *wakeupPipe) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *wakeupPipe) close() {
	unix.Close(p.r)
	unix.Close(p.w)
}
