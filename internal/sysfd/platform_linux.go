//go:build linux

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

// SetKeepAlive enables TCP keepalive probing with the given idle time in
// seconds before the first probe.
func SetKeepAlive(fd int, idleSeconds int) error {
	if err := SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return err
	}
	return SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, idleSeconds)
}

// SetNoSigpipe is a no-op on Linux, which has no SO_NOSIGPIPE socket
// option. Write uses plain write(2) without MSG_NOSIGNAL; the Go runtime
// turns the SIGPIPE from a write to a peer-closed socket into an EPIPE error.
func SetNoSigpipe(fd int) error { return nil }
