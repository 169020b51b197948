//go:build linux

package boundary

import "golang.org/x/sys/unix"

// RLIM_INFINITY as seen through the uint64 Rlimit fields.
const rlimInfinity = ^uint64(0)

func readNoFile() (uint64, bool, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, false, err
	}
	if rl.Cur == rlimInfinity {
		return 0, true, nil
	}
	return rl.Cur, false, nil
}
