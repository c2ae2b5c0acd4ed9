package sysfd

import (
	"net/netip"

	"golang.org/x/sys/unix"
)

// Socket creates a new socket of the given domain/type/protocol.
func Socket(domain, typ, proto int) (int, error) {
	fd, err := unix.Socket(domain, typ, proto)
	return fd, wrap("socket", err)
}

// SocketPair creates a connected pair of sockets. The event pool backends
// do not use it; their wakeups go through a pipe (netpoll's wakeupPipe).
func SocketPair(domain, typ, proto int) ([2]int, error) {
	fds, err := unix.Socketpair(domain, typ, proto)
	return fds, wrap("socketpair", err)
}

// Bind binds fd to sa.
func Bind(fd int, sa unix.Sockaddr) error {
	return wrap("bind", unix.Bind(fd, sa))
}

// Listen marks fd as a passive socket with the given backlog.
func Listen(fd, backlog int) error {
	return wrap("listen", unix.Listen(fd, backlog))
}

// Accept accepts a pending connection, returning the new fd and peer address.
func Accept(fd int) (int, unix.Sockaddr, error) {
	nfd, sa, err := unix.Accept(fd)
	return nfd, sa, wrap("accept", err)
}

// Connect initiates a connection on fd.
func Connect(fd int, sa unix.Sockaddr) error {
	return wrap("connect", unix.Connect(fd, sa))
}

// Read reads into b, returning the standard (0, io.EOF-like) semantics on
// orderly shutdown via n == 0, err == nil.
func Read(fd int, b []byte) (int, error) {
	n, err := unix.Read(fd, b)
	return n, wrap("read", err)
}

// Write writes b to fd.
func Write(fd int, b []byte) (int, error) {
	n, err := unix.Write(fd, b)
	return n, wrap("write", err)
}

// Close closes fd. Idempotent misuse is the caller's responsibility: each
// fd must be closed exactly once.
func Close(fd int) error {
	return wrap("close", unix.Close(fd))
}

// SetNonblock puts fd into (or out of) non-blocking mode.
func SetNonblock(fd int, nonblocking bool) error {
	return wrap("fcntl(O_NONBLOCK)", unix.SetNonblock(fd, nonblocking))
}

// SetsockoptInt sets an integer socket option.
func SetsockoptInt(fd, level, opt, value int) error {
	return wrap("setsockopt", unix.SetsockoptInt(fd, level, opt, value))
}

// GetsockoptInt reads an integer socket option.
func GetsockoptInt(fd, level, opt int) (int, error) {
	v, err := unix.GetsockoptInt(fd, level, opt)
	return v, wrap("getsockopt", err)
}

// GetpeerName returns the address of the peer connected to fd.
func GetpeerName(fd int) (unix.Sockaddr, error) {
	sa, err := unix.Getpeername(fd)
	return sa, wrap("getpeername", err)
}

// GetsockName returns the local address bound to fd.
func GetsockName(fd int) (unix.Sockaddr, error) {
	sa, err := unix.Getsockname(fd)
	return sa, wrap("getsockname", err)
}

// RecvFrom receives a datagram, returning the sender's address.
func RecvFrom(fd int, b []byte, flags int) (int, unix.Sockaddr, error) {
	n, _, _, sa, err := unix.Recvmsg(fd, b, nil, flags)
	return n, sa, wrap("recvfrom", err)
}

// SendTo sends a datagram to sa.
func SendTo(fd int, b []byte, flags int, sa unix.Sockaddr) error {
	return wrap("sendto", unix.Sendto(fd, b, flags, sa))
}

// RecvMsg receives a datagram along with ancillary control-message data,
// used to surface IP_PKTINFO / IPV6_PKTINFO per §4.D.
func RecvMsg(fd int, b, control []byte, flags int) (n, oobn int, sa unix.Sockaddr, err error) {
	n, oobn, _, sa, err = unix.Recvmsg(fd, b, control, flags)
	err = wrap("recvmsg", err)
	return
}

// SendMsg sends a datagram along with ancillary control-message data.
func SendMsg(fd int, b, control []byte, flags int, sa unix.Sockaddr) (int, error) {
	n, err := unix.SendmsgN(fd, b, control, sa, flags)
	return n, wrap("sendmsg", err)
}

// Sendfile performs a zero-copy transfer from src into dst, starting at
// *offset, advancing it as bytes are sent.
func Sendfile(dst, src int, offset *int64, count int) (int, error) {
	n, err := unix.Sendfile(dst, src, offset, count)
	return n, wrap("sendfile", err)
}

// Unlink removes a Unix-domain socket path left behind by a prior bind.
func Unlink(path string) error {
	return wrap("unlink", unix.Unlink(path))
}

// InetNtop renders a raw 4- or 16-byte address as text (inet_ntop).
func InetNtop(b []byte) string {
	switch len(b) {
	case 4:
		return netip.AddrFrom4([4]byte(b)).String()
	case 16:
		return netip.AddrFrom16([16]byte(b)).String()
	default:
		return ""
	}
}

// InetPton parses textual IPv4/IPv6 into raw bytes (inet_pton).
func InetPton(s string) ([]byte, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil, wrap("inet_pton", err)
	}
	if addr.Is4() {
		b := addr.As4()
		return b[:], nil
	}
	b := addr.As16()
	return b[:], nil
}
