//go:build !linux

package job

import "syscall"

// IsResourceExhaustion reports whether errno means the local host ran out of
// routes, ephemeral ports, buffers or descriptors. Platforms whose dial
// errors do not surface these syscall constants need their own mapping here.
func IsResourceExhaustion(errno syscall.Errno) bool {
	switch errno {
	case syscall.ENETUNREACH, syscall.EHOSTUNREACH, syscall.EADDRNOTAVAIL,
		syscall.EMFILE, syscall.ENFILE, syscall.ENOBUFS:
		return true
	}
	return false
}

func errnoName(errno syscall.Errno) string {
	return errno.Error()
}
