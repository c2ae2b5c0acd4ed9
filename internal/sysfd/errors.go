// Package sysfd is the thin, platform-specific syscall shim (component A):
// raw wrappers around the POSIX/BSD socket API, returning the kernel's own
// error codes wrapped with a static context string.
package sysfd

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Error wraps a syscall failure with the operation that produced it and the
// raw errno, per the "typed error carrying the errno and a static context
// string" requirement.
type Error struct {
	Op    string
	Errno unix.Errno
}

func (e *Error) Error() string {
	return fmt.Sprintf("sysfd: %s: %s", e.Op, e.Errno.Error())
}

func (e *Error) Unwrap() error { return e.Errno }

// Temporary reports whether the failure is EAGAIN/EWOULDBLOCK/EINTR, the
// three codes the async socket layer retries transparently.
func (e *Error) Temporary() bool {
	return e.Errno == unix.EAGAIN || e.Errno == unix.EWOULDBLOCK || e.Errno == unix.EINTR
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errno, ok := err.(unix.Errno); ok {
		return &Error{Op: op, Errno: errno}
	}
	return fmt.Errorf("sysfd: %s: %w", op, err)
}

// IsAgain reports whether err is EAGAIN/EWOULDBLOCK at any wrapping depth.
func IsAgain(err error) bool {
	var se *Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Errno == unix.EAGAIN || se.Errno == unix.EWOULDBLOCK
}

// IsInterrupted reports whether err is EINTR.
func IsInterrupted(err error) bool {
	se, ok := err.(*Error)
	return ok && se.Errno == unix.EINTR
}
