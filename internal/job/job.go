// Package job defines the contract every probe implements and the outcome
// types the worker and pool schedule on.
package job

import (
	"context"
	"fmt"
	"syscall"
)

// Job is a stateless unit of work. Execute runs one attempt against state and
// must honor ctx cancellation. A non-nil error is an internal failure of the
// job itself, not a network result; network results belong in the Outcome.
type Job[S, R any] interface {
	Execute(ctx context.Context, state S) (Outcome[R], error)
}

// Func adapts a plain function to the Job interface.
type Func[S, R any] func(ctx context.Context, state S) (Outcome[R], error)

// Execute calls f(ctx, state).
func (f Func[S, R]) Execute(ctx context.Context, state S) (Outcome[R], error) {
	return f(ctx, state)
}

// NetState is the connectivity classification assigned by a job.
type NetState int

const (
	Open NetState = iota
	Closed
	Filtered
)

func (s NetState) String() string {
	switch s {
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Filtered:
		return "filtered"
	default:
		return fmt.Sprintf("netstate(%d)", int(s))
	}
}

// ErrorKind enumerates failure causes.
type ErrorKind int

const (
	// ErrIOKind is an OS-level I/O failure, including the worker deadline.
	ErrIOKind ErrorKind = iota + 1
	// ErrErrno carries a raw OS error number.
	ErrErrno
	// ErrTaskFailure is a panic or internal error inside Execute.
	ErrTaskFailure
	// ErrOther is any unrecognized failure.
	ErrOther
)

func (k ErrorKind) String() string {
	switch k {
	case ErrIOKind:
		return "io"
	case ErrErrno:
		return "errno"
	case ErrTaskFailure:
		return "task"
	case ErrOther:
		return "other"
	default:
		return "unknown"
	}
}

// IOKind narrows an ErrIOKind failure.
type IOKind int

const (
	IOTimedOut IOKind = iota + 1
	IOCanceled
)

func (k IOKind) String() string {
	switch k {
	case IOTimedOut:
		return "timeout"
	case IOCanceled:
		return "canceled"
	default:
		return "io"
	}
}

// ErrorClass describes why a job attempt produced no NetState.
type ErrorClass struct {
	Kind  ErrorKind
	IO    IOKind
	Errno syscall.Errno
	Cause error
}

// IsResourceExhaustion reports whether the failure means the host, not the
// target, ran out of something.
func (e ErrorClass) IsResourceExhaustion() bool {
	return e.Kind == ErrErrno && IsResourceExhaustion(e.Errno)
}

// Retryable reports whether the failure qualifies for immediate re-admission.
func (e ErrorClass) Retryable() bool {
	return e.Kind == ErrOther || e.Kind == ErrTaskFailure
}

func (e ErrorClass) String() string {
	switch e.Kind {
	case ErrIOKind:
		return e.IO.String()
	case ErrErrno:
		return errnoName(e.Errno)
	case ErrTaskFailure, ErrOther:
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
		}
		return e.Kind.String()
	default:
		return "unknown"
	}
}

// Kind tags an Outcome.
type Kind int

const (
	KindReturn Kind = iota + 1
	KindError
)

// Outcome is the result of one job attempt: either Return(State, Response)
// or Error(Err).
type Outcome[R any] struct {
	Kind     Kind
	State    NetState
	Response R
	Err      ErrorClass
}

// Return builds a completed outcome.
func Return[R any](state NetState, resp R) Outcome[R] {
	return Outcome[R]{Kind: KindReturn, State: state, Response: resp}
}

// Fail builds an error outcome.
func Fail[R any](class ErrorClass) Outcome[R] {
	return Outcome[R]{Kind: KindError, Err: class}
}

// TimedOut is the outcome recorded when the worker deadline elapses.
func TimedOut[R any]() Outcome[R] {
	return Fail[R](ErrorClass{Kind: ErrIOKind, IO: IOTimedOut})
}

// TaskFailure is the outcome recorded for a panic or internal error.
func TaskFailure[R any](cause error) Outcome[R] {
	return Fail[R](ErrorClass{Kind: ErrTaskFailure, Cause: cause})
}

// Errno builds an error outcome carrying a raw OS error number.
func Errno[R any](code syscall.Errno) Outcome[R] {
	return Fail[R](ErrorClass{Kind: ErrErrno, Errno: code, Cause: code})
}

// IsReturn reports whether the attempt completed with a NetState.
func (o Outcome[R]) IsReturn() bool {
	return o.Kind == KindReturn
}

// Label renders the outcome for logs, metrics and text output,
// e.g. "open" or "error:timeout".
func (o Outcome[R]) Label() string {
	if o.IsReturn() {
		return o.State.String()
	}
	switch o.Err.Kind {
	case ErrIOKind:
		return "error:" + o.Err.IO.String()
	case ErrErrno:
		return "error:errno"
	default:
		return "error:" + o.Err.Kind.String()
	}
}
