//go:build linux

package netpoll

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// epollPool is the Linux backend: one epoll descriptor per pool, each fd
// added once with EPOLLET|EPOLLONESHOT, re-armed via EPOLL_CTL_MOD with the
// union of current interests every time Suspend is called for it, per §4.C.
type epollPool struct {
	epfd int
	reg  *registry
	wake *wakeupPipe

	mu    sync.Mutex
	armed map[int]Events // current epoll interest per fd
}

// NewEpollPool creates the epoll-backed event pool.
func NewEpollPool() (Pool, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wp, err := newWakeupPipe()
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	p := &epollPool{
		epfd:  epfd,
		reg:   newRegistry(),
		wake:  wp,
		armed: make(map[int]Events),
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wp.r, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wp.r),
	}); err != nil {
		unix.Close(epfd)
		wp.close()
		return nil, err
	}
	return p, nil
}

func toEpollMask(ev Events) uint32 {
	var m uint32 = unix.EPOLLET | unix.EPOLLONESHOT | unix.EPOLLRDHUP
	if ev&Readable != 0 {
		m |= unix.EPOLLIN
	}
	if ev&Writable != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}

func (p *epollPool) Add(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.armed[fd]; ok {
		return nil
	}
	ev := unix.EpollEvent{Events: toEpollMask(0), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	p.armed[fd] = 0
	return nil
}

func (p *epollPool) Suspend(ctx context.Context, fd int, events Events, deadline time.Time) (Events, error) {
	w, err := p.reg.register(fd, events, deadline)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.armed[fd] |= events
	mask := p.armed[fd]
	p.mu.Unlock()

	ev := unix.EpollEvent{Events: toEpollMask(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		p.reg.unregister(fd, events, w)
		return 0, err
	}

	ready, err := await(ctx, p.reg, fd, events, deadline, w)
	if err == nil {
		p.mu.Lock()
		p.armed[fd] &^= ready
		p.mu.Unlock()
	}
	return ready, err
}

func (p *epollPool) Remove(fd int) error {
	p.mu.Lock()
	delete(p.armed, fd)
	p.mu.Unlock()
	unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	p.reg.dropFD(fd)
	return nil
}

func (p *epollPool) Run(ctx context.Context) error {
	events := make([]unix.EpollEvent, 256)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := unix.EpollWait(p.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == p.wake.r {
				p.wake.drain()
				continue
			}

			var ready Events
			if events[i].Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR|unix.EPOLLRDHUP) != 0 {
				ready |= Readable
			}
			if events[i].Events&(unix.EPOLLOUT|unix.EPOLLERR) != 0 {
				ready |= Writable
			}
			if events[i].Events&unix.EPOLLHUP != 0 {
				// Peer hangup also unblocks a pending writer, per the
				// kqueue backend's EV_EOF rule — keep the two backends
				// observably consistent.
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

func (p *epollPool) Close() error {
	p.reg.closeAll()
	p.wake.wake()
	p.wake.close()
	return unix.Close(p.epfd)
}
