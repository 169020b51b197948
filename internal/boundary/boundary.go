// Package boundary derives the admission ceiling for concurrently in-flight
// jobs from the host's open file descriptor limit.
package boundary

import (
	"fmt"
	"math"

	"github.com/anstrom/recon/internal/errors"
)

// DefaultMargin is the number of descriptors reserved for the process's own
// files and non-probe sockets.
const DefaultMargin = 100

// Boundary is either Limited(n) or Unlimited. The zero value is Unlimited.
type Boundary struct {
	limited bool
	n       int
}

// Limited returns a ceiling of n concurrent jobs, clamped to at least 1.
func Limited(n int) Boundary {
	if n < 1 {
		n = 1
	}
	return Boundary{limited: true, n: n}
}

// Unlimited returns a boundary that never refuses admission.
func Unlimited() Boundary {
	return Boundary{}
}

// IsLimited reports whether the boundary carries a ceiling.
func (b Boundary) IsLimited() bool {
	return b.limited
}

// Limit returns the ceiling. It is meaningless for an unlimited boundary.
func (b Boundary) Limit() int {
	return b.n
}

// Allows returns how many more jobs may be admitted while active are in
// flight. An unlimited boundary allows want unchanged.
func (b Boundary) Allows(active, want int) int {
	if want <= 0 {
		return 0
	}
	if !b.limited {
		return want
	}
	return max(0, min(want, b.n-active))
}

// Cap lowers the ceiling to max when max is positive and tighter than the
// current boundary.
func (b Boundary) Cap(max int) Boundary {
	if max <= 0 {
		return b
	}
	if !b.limited || max < b.n {
		return Limited(max)
	}
	return b
}

func (b Boundary) String() string {
	if !b.limited {
		return "unlimited"
	}
	return fmt.Sprintf("limited(%d)", b.n)
}

// limitReader returns the soft descriptor limit, or unlimited=true when the
// OS reports none.
type limitReader func() (soft uint64, unlimited bool, err error)

// Resolve reads RLIMIT_NOFILE and subtracts margin. A negative margin selects
// DefaultMargin. Failure to read the limit is a fatal configuration error.
func Resolve(margin int) (Boundary, error) {
	return resolve(margin, readNoFile)
}

func resolve(margin int, read limitReader) (Boundary, error) {
	if margin < 0 {
		margin = DefaultMargin
	}

	soft, unlimited, err := read()
	if err != nil {
		return Boundary{}, errors.ErrResourceLimit(err)
	}
	if unlimited {
		return Unlimited(), nil
	}

	if soft > math.MaxInt {
		soft = math.MaxInt
	}
	return Limited(int(soft) - margin), nil
}
