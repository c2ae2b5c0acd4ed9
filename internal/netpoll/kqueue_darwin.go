//go:build darwin

package netpoll

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// kqueuePool is the Darwin/BSD backend: one kqueue descriptor per pool,
// registering an EV_ADD|EV_ONESHOT kevent per requested filter and parking
// the waiter in the shared registry, per §4.C.
type kqueuePool struct {
	kqfd int
	reg  *registry
	wake *wakeupPipe
}

// NewKqueuePool creates the kqueue-backed event pool.
func NewKqueuePool() (Pool, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	wp, err := newWakeupPipe()
	if err != nil {
		unix.Close(kqfd)
		return nil, err
	}
	p := &kqueuePool{kqfd: kqfd, reg: newRegistry(), wake: wp}
	wakeEv := unix.Kevent_t{
		Ident:  uint64(wp.r),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}
	if _, err := unix.Kevent(kqfd, []unix.Kevent_t{wakeEv}, nil, nil); err != nil {
		unix.Close(kqfd)
		wp.close()
		return nil, err
	}
	return p, nil
}

func (p *kqueuePool) Add(fd int) error {
	// kqueue filters are registered lazily per Suspend call (EV_ONESHOT),
	// so there is nothing to arm up front; Add only needs to exist to
	// satisfy the shared Pool contract used by the connection driver.
	return nil
}

func (p *kqueuePool) Suspend(ctx context.Context, fd int, events Events, deadline time.Time) (Events, error) {
	w, err := p.reg.register(fd, events, deadline)
	if err != nil {
		return 0, err
	}

	var changes []unix.Kevent_t
	if events&Readable != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_READ,
			Flags: unix.EV_ADD | unix.EV_ONESHOT,
		})
	}
	if events&Writable != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident: uint64(fd), Filter: unix.EVFILT_WRITE,
			Flags: unix.EV_ADD | unix.EV_ONESHOT,
		})
	}
	if _, err := unix.Kevent(p.kqfd, changes, nil, nil); err != nil {
		p.reg.unregister(fd, events, w)
		return 0, err
	}

	return await(ctx, p.reg, fd, events, deadline, w)
}

func (p *kqueuePool) Remove(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	unix.Kevent(p.kqfd, changes, nil, nil) // ENOENT for a filter never armed is expected
	p.reg.dropFD(fd)
	return nil
}

func (p *kqueuePool) Run(ctx context.Context) error {
	events := make([]unix.Kevent_t, 256)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := unix.Kevent(p.kqfd, nil, events, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Ident)
			if fd == p.wake.r {
				p.wake.drain()
				continue
			}

			var ready Events
			switch ev.Filter {
			case unix.EVFILT_READ:
				ready |= Readable
				// EV_EOF on read-ready also wakes writers, per §4.C.
				if ev.Flags&unix.EV_EOF != 0 {
					ready |= Writable
				}
			case unix.EVFILT_WRITE:
				ready |= Writable
			}
			if ev.Flags&unix.EV_ERROR != 0 {
				ready |= Readable | Writable
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

func (p *kqueuePool) Close() error {
	p.reg.closeAll()
	p.wake.wake()
	p.wake.close()
	return unix.Close(p.kqfd)
}
