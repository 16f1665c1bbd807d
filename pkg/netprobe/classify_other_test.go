//go:build !unix && !windows

package netprobe

import "syscall"

var (
	errRefused   error = syscall.ECONNREFUSED
	errExhausted error = syscall.EMFILE
)
