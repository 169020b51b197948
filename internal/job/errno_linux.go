//go:build linux

package job

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// IsResourceExhaustion reports whether errno means the local host ran out of
// routes, ephemeral ports, buffers or descriptors.
func IsResourceExhaustion(errno syscall.Errno) bool {
	switch errno {
	case unix.ENETUNREACH, unix.EHOSTUNREACH, unix.EADDRNOTAVAIL,
		unix.EMFILE, unix.ENFILE, unix.ENOBUFS:
		return true
	}
	return false
}

func errnoName(errno syscall.Errno) string {
	if name := unix.ErrnoName(errno); name != "" {
		return name
	}
	return errno.Error()
}
