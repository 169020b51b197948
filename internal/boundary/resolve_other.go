//go:build !linux

package boundary

import (
	"runtime"

	"github.com/anstrom/recon/internal/errors"
)

// Other platforms need their own descriptor limit lookup; until one exists
// startup fails rather than guessing.
func readNoFile() (uint64, bool, error) {
	return 0, false, errors.NewScanError(errors.CodeUnsupported,
		"descriptor limit lookup not implemented on "+runtime.GOOS)
}
