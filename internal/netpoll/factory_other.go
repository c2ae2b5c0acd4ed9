//go:build !linux && !darwin

package netpoll

// NewPool creates the event pool backend appropriate for the host kernel.
func NewPool() (Pool, error) { return NewPollPool() }
