// Package sock owns a single non-blocking file descriptor and the typed
// socket options and address encoding a server needs (component B).
package sock

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/searchktools/corehttp/internal/sysfd"
)

// Socket owns exactly one file descriptor; it is closed exactly once, on
// Close or never again.
type Socket struct {
	fd       int
	closeOne sync.Once
	closeErr error
}

// domainFor picks AF_INET/AF_INET6/AF_UNIX for the given Addr kind.
func domainFor(kind AddrKind) int {
	switch kind {
	case KindIPv6:
		return unix.AF_INET6
	case KindUnix:
		return unix.AF_UNIX
	default:
		return unix.AF_INET
	}
}

// New creates a non-blocking stream socket for the given address family.
func New(kind AddrKind) (*Socket, error) {
	fd, err := sysfd.Socket(domainFor(kind), unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	if err := sysfd.SetNonblock(fd, true); err != nil {
		sysfd.Close(fd)
		return nil, err
	}
	return &Socket{fd: fd}, nil
}

// NewDatagram creates a non-blocking datagram socket.
func NewDatagram(kind AddrKind) (*Socket, error) {
	fd, err := sysfd.Socket(domainFor(kind), unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, err
	}
	if err := sysfd.SetNonblock(fd, true); err != nil {
		sysfd.Close(fd)
		return nil, err
	}
	return &Socket{fd: fd}, nil
}

// FromFD adopts an already-open, already-non-blocking file descriptor.
// Accepted connections do not go through it; Socket.Accept builds those.
func FromFD(fd int) *Socket {
	return &Socket{fd: fd}
}

// FD returns the underlying file descriptor for registration with a Pool.
func (s *Socket) FD() int { return s.fd }

// Bind binds the socket to addr, applying SO_REUSEADDR (and, for Unix
// sockets, unlinking any stale path first).
func (s *Socket) Bind(addr Addr) error {
	if addr.Kind == KindUnix {
		sysfd.Unlink(addr.Path) // best effort; ENOENT is expected and ignored
	} else {
		if err := sysfd.SetReuseAddr(s.fd); err != nil {
			return err
		}
	}
	sa, err := addr.toSockaddr()
	if err != nil {
		return err
	}
	return sysfd.Bind(s.fd, sa)
}

// Listen marks the socket as passive with the given backlog.
func (s *Socket) Listen(backlog int) error {
	return sysfd.Listen(s.fd, backlog)
}

// Accept accepts one pending connection. Returns sysfd.IsAgain(err) == true
// when none is pending.
func (s *Socket) Accept() (*Socket, Addr, error) {
	nfd, sa, err := sysfd.Accept(s.fd)
	if err != nil {
		return nil, Addr{}, err
	}
	if err := sysfd.SetNonblock(nfd, true); err != nil {
		sysfd.Close(nfd)
		return nil, Addr{}, err
	}
	peer, _ := fromSockaddr(sa)
	return &Socket{fd: nfd}, peer, nil
}

// Connect initiates a connection to addr. A non-blocking connect typically
// returns EINPROGRESS, which the async layer treats as a writable-wait.
func (s *Socket) Connect(addr Addr) error {
	sa, err := addr.toSockaddr()
	if err != nil {
		return err
	}
	return sysfd.Connect(s.fd, sa)
}

// LocalAddr returns the concrete address bound to the socket (port resolved
// if port 0 was requested), per §6 "listeningAddress".
func (s *Socket) LocalAddr() (Addr, error) {
	sa, err := sysfd.GetsockName(s.fd)
	if err != nil {
		return Addr{}, err
	}
	return fromSockaddr(sa)
}

// PeerAddr returns the address of the connected peer.
func (s *Socket) PeerAddr() (Addr, error) {
	sa, err := sysfd.GetpeerName(s.fd)
	if err != nil {
		return Addr{}, err
	}
	return fromSockaddr(sa)
}

// SetTCPNoDelay disables Nagle's algorithm.
func (s *Socket) SetTCPNoDelay() error { return sysfd.SetNoDelay(s.fd) }

// SetKeepAlive enables TCP keepalive with the given idle time in seconds.
func (s *Socket) SetKeepAlive(idleSeconds int) error { return sysfd.SetKeepAlive(s.fd, idleSeconds) }

// SetNoSigpipe applies SO_NOSIGPIPE on Darwin (a no-op elsewhere).
func (s *Socket) SetNoSigpipe() error { return sysfd.SetNoSigpipe(s.fd) }

// Read reads directly into b.
func (s *Socket) Read(b []byte) (int, error) { return sysfd.Read(s.fd, b) }

// Write writes b.
func (s *Socket) Write(b []byte) (int, error) { return sysfd.Write(s.fd, b) }

// Close closes the socket exactly once.
func (s *Socket) Close() error {
	s.closeOne.Do(func() {
		s.closeErr = sysfd.Close(s.fd)
	})
	return s.closeErr
}
