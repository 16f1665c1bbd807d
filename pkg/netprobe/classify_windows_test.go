//go:build windows

package netprobe

import "golang.org/x/sys/windows"

var (
	errRefused   error = windows.WSAECONNREFUSED
	errExhausted error = windows.WSAEMFILE
)
