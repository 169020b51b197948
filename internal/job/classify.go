package job

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// Classify maps the error of a network operation onto an Outcome. Every
// probe funnels its dial and handshake errors through here so they share
// one policy:
//
//	nil                              -> Return(Open)
//	ECONNREFUSED, ETIMEDOUT, timeout -> Return(Closed)
//	ECONNABORTED, ECONNRESET         -> Return(Filtered)
//	resource exhaustion errno        -> Error(Errno)
//	context canceled                 -> Error(IOKind(Canceled))
//	anything else                    -> Error(Other)
func Classify[R any](err error, resp R) Outcome[R] {
	if err == nil {
		return Return(Open, resp)
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch {
		case errno == syscall.ECONNREFUSED, errno == syscall.ETIMEDOUT:
			return Return(Closed, resp)
		case errno == syscall.ECONNABORTED, errno == syscall.ECONNRESET:
			return Return(Filtered, resp)
		case IsResourceExhaustion(errno):
			return Errno[R](errno)
		}
	}

	if errors.Is(err, context.Canceled) {
		return Fail[R](ErrorClass{Kind: ErrIOKind, IO: IOCanceled, Cause: err})
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Return(Closed, resp)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Return(Closed, resp)
	}

	return Fail[R](ErrorClass{Kind: ErrOther, Cause: err})
}
