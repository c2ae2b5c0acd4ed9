//go:build darwin

package sysfd

import "golang.org/x/sys/unix"

// darwinTCPKeepAlive is TCP_KEEPALIVE (0x10), absent from some older
// golang.org/x/sys/unix builds for darwin; the teacher's kqueue-era code
// (core/engine.go) spells this out as the raw constant for the same reason.
const darwinTCPKeepAlive = 0x10

// SetReuseAddr sets SO_REUSEADDR, required before bind on the listening
// socket so a restarted server can rebind a recently-closed port.
func SetReuseAddr(fd int) error {
	return SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

// SetNoDelay disables Nagle's algorithm on a TCP socket.
func SetNoDelay(fd int) error {
	return SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// SetKeepAlive enables TCP keepalive probing with the given idle time in
// seconds before the first probe.
func SetKeepAlive(fd int, idleSeconds int) error {
	if err := SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return err
	}
	return SetsockoptInt(fd, unix.IPPROTO_TCP, darwinTCPKeepAlive, idleSeconds)
}

// SetNoSigpipe sets SO_NOSIGPIPE so a write to a peer-closed socket returns
// EPIPE instead of raising SIGPIPE, per §3's "no-SIGPIPE (Darwin)" flag.
func SetNoSigpipe(fd int) error {
	return SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
}
