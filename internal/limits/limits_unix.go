//go:build unix

package limits

import "golang.org/x/sys/unix"

// FileLimit returns the soft RLIMIT_NOFILE of the process.
func FileLimit() (uint64, bool) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, false
	}
	return uint64(rl.Cur), true
}
