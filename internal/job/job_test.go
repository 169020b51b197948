package job

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialError(errno syscall.Errno) error {
	return &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: os.NewSyscallError("connect", errno),
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		state    NetState
		errKind  ErrorKind
		resource bool
	}{
		{"success", nil, KindReturn, Open, 0, false},
		{"refused", dialError(syscall.ECONNREFUSED), KindReturn, Closed, 0, false},
		{"errno timeout", dialError(syscall.ETIMEDOUT), KindReturn, Closed, 0, false},
		{"reset", dialError(syscall.ECONNRESET), KindReturn, Filtered, 0, false},
		{"aborted", dialError(syscall.ECONNABORTED), KindReturn, Filtered, 0, false},
		{"deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), KindReturn, Closed, 0, false},
		{"io deadline", &net.OpError{Op: "read", Err: os.ErrDeadlineExceeded}, KindReturn, Closed, 0, false},
		{"net unreachable", dialError(syscall.ENETUNREACH), KindError, 0, ErrErrno, true},
		{"host unreachable", dialError(syscall.EHOSTUNREACH), KindError, 0, ErrErrno, true},
		{"ephemeral ports", dialError(syscall.EADDRNOTAVAIL), KindError, 0, ErrErrno, true},
		{"descriptors", dialError(syscall.EMFILE), KindError, 0, ErrErrno, true},
		{"system descriptors", dialError(syscall.ENFILE), KindError, 0, ErrErrno, true},
		{"canceled", fmt.Errorf("dial: %w", context.Canceled), KindError, 0, ErrIOKind, false},
		{"unrecognized errno", dialError(syscall.EPERM), KindError, 0, ErrOther, false},
		{"plain error", errors.New("socks5: bad greeting"), KindError, 0, ErrOther, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(tt.err, "resp")

			require.Equal(t, tt.kind, out.Kind)
			if tt.kind == KindReturn {
				assert.Equal(t, tt.state, out.State)
				assert.Equal(t, "resp", out.Response)
				return
			}
			assert.Equal(t, tt.errKind, out.Err.Kind)
			assert.Equal(t, tt.resource, out.Err.IsResourceExhaustion())
		})
	}
}

func TestClassify_ErrnoPreserved(t *testing.T) {
	out := Classify(dialError(syscall.EMFILE), struct{}{})

	require.Equal(t, ErrErrno, out.Err.Kind)
	assert.Equal(t, syscall.EMFILE, out.Err.Errno)
	assert.ErrorIs(t, out.Err.Cause, syscall.EMFILE)
}

func TestIsResourceExhaustion(t *testing.T) {
	for _, errno := range []syscall.Errno{
		syscall.ENETUNREACH, syscall.EHOSTUNREACH, syscall.EADDRNOTAVAIL,
		syscall.EMFILE, syscall.ENFILE, syscall.ENOBUFS,
	} {
		assert.True(t, IsResourceExhaustion(errno), errno.Error())
	}
	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.EPERM, syscall.EINVAL} {
		assert.False(t, IsResourceExhaustion(errno), errno.Error())
	}
}

func TestErrorClass_Retryable(t *testing.T) {
	assert.True(t, ErrorClass{Kind: ErrOther}.Retryable())
	assert.True(t, ErrorClass{Kind: ErrTaskFailure}.Retryable())
	assert.False(t, ErrorClass{Kind: ErrIOKind, IO: IOTimedOut}.Retryable())
	assert.False(t, ErrorClass{Kind: ErrErrno, Errno: syscall.EMFILE}.Retryable())
}

func TestOutcome_Label(t *testing.T) {
	tests := []struct {
		outcome  Outcome[int]
		expected string
	}{
		{Return(Open, 1), "open"},
		{Return(Closed, 1), "closed"},
		{Return(Filtered, 1), "filtered"},
		{TimedOut[int](), "error:timeout"},
		{TaskFailure[int](errors.New("panic")), "error:task"},
		{Errno[int](syscall.ENETUNREACH), "error:errno"},
		{Fail[int](ErrorClass{Kind: ErrOther}), "error:other"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.outcome.Label())
		})
	}
}

func TestFunc(t *testing.T) {
	var j Job[string, int] = Func[string, int](func(_ context.Context, s string) (Outcome[int], error) {
		return Return(Open, len(s)), nil
	})

	out, err := j.Execute(context.Background(), "abcd")
	require.NoError(t, err)
	assert.True(t, out.IsReturn())
	assert.Equal(t, 4, out.Response)
}

func TestTimedOut(t *testing.T) {
	out := TimedOut[string]()

	assert.False(t, out.IsReturn())
	assert.Equal(t, ErrIOKind, out.Err.Kind)
	assert.Equal(t, IOTimedOut, out.Err.IO)
	assert.Equal(t, "timeout", out.Err.String())
}
