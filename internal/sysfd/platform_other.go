//go:build !linux && !darwin

package sysfd

import "golang.org/x/sys/unix"

// SetReuseAddr sets SO_REUSEADDR, required before bind on the listening
// socket so a restarted server can rebind a recently-closed port.
func SetReuseAddr(fd int) error {
	return SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

// SetNoDelay disables Nagle's algorithm on a TCP socket.
func SetNoDelay(fd int) error {
	return SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// SetKeepAlive enables TCP keepalive probing. The portable fallback has no
// uniform idle-time option across the remaining BSDs, so only the boolean
// toggle is set.
func SetKeepAlive(fd int, idleSeconds int) error {
	return SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
}

// SetNoSigpipe is a no-op outside Darwin.
func SetNoSigpipe(fd int) error { return nil }
