//go:build !linux && !darwin

package netpoll

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// defaultPollTimeout is used when no waiter carries a deadline, per §4.C.
const defaultPollTimeout = 100 * time.Millisecond

// pollPool is the portable fallback: it rebuilds a pollfd array from the
// current waiter set on every cycle and accepts O(N) per cycle for the
// portability gain, per §4.C.
type pollPool struct {
	reg  *registry
	wake *wakeupPipe
}

// NewPollPool creates the poll(2)-backed event pool.
func NewPollPool() (Pool, error) {
	wp, err := newWakeupPipe()
	if err != nil {
		return nil, err
	}
	return &pollPool{reg: newRegistry(), wake: wp}, nil
}

func (p *pollPool) Add(fd int) error {
	// Nothing to pre-arm: the pollfd array is rebuilt from the waiter set
	// on every Run cycle.
	return nil
}

func (p *pollPool) Suspend(ctx context.Context, fd int, events Events, deadline time.Time) (Events, error) {
	w, err := p.reg.register(fd, events, deadline)
	if err != nil {
		return 0, err
	}
	return await(ctx, p.reg, fd, events, deadline, w)
}

func (p *pollPool) Remove(fd int) error {
	p.reg.dropFD(fd)
	return nil
}

func (p *pollPool) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		snapshot := p.reg.snapshot()
		timeout := p.computeTimeout(snapshot)

		fds := make([]unix.PollFd, 0, len(snapshot)+1)
		fds = append(fds, unix.PollFd{Fd: int32(p.wake.r), Events: unix.POLLIN})
		byFD := make(map[int]int, len(snapshot)) // fd -> index into fds
		for key := range snapshot {
			idx, ok := byFD[key.fd]
			if !ok {
				idx = len(fds)
				fds = append(fds, unix.PollFd{Fd: int32(key.fd)})
				byFD[key.fd] = idx
			}
			if key.events == Readable {
				fds[idx].Events |= unix.POLLIN
			} else {
				fds[idx].Events |= unix.POLLOUT
			}
		}

		n, err := unix.Poll(fds, int(timeout.Milliseconds()))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n <= 0 {
			continue
		}

		for _, pfd := range fds {
			if pfd.Revents == 0 {
				continue
			}
			fd := int(pfd.Fd)
			if fd == p.wake.r {
				p.wake.drain()
				continue
			}
			var ready Events
			if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR|unix.POLLRDHUP) != 0 {
				ready |= Readable
			}
			if pfd.Revents&(unix.POLLOUT|unix.POLLERR|unix.POLLHUP) != 0 {
				ready |= Writable
			}
			p.reg.wake(fd, ready)
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// computeTimeout picks the earliest waiter deadline, or the 100ms default.
func (p *pollPool) computeTimeout(snapshot map[waiterKey]*waiter) time.Duration {
	best := defaultPollTimeout
	now := time.Now()
	have := false
	for _, w := range snapshot {
		if w.deadline.IsZero() {
			continue
		}
		d := w.deadline.Sub(now)
		if d < 0 {
			d = 0
		}
		if !have || d < best {
			best = d
			have = true
		}
	}
	return best
}

func (p *pollPool) Close() error {
	p.reg.closeAll()
	p.wake.wake()
	p.wake.close()
	return nil
}
