//go:build !windows

package proc

import (
	"errors"
	"syscall"
)

// IsAlive reports whether pid refers to a running process. A process owned by
// another user answers EPERM and still counts as alive.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
