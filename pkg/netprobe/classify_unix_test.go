//go:build unix

package netprobe

import "golang.org/x/sys/unix"

var (
	errRefused   error = unix.ECONNREFUSED
	errExhausted error = unix.EMFILE
)
