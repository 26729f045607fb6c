//go:build windows

package push

import "golang.org/x/sys/windows"

// Winsock reports a closed loopback port as WSAECONNREFUSED, which
// syscall.ECONNREFUSED does not match on Windows.
var errRefused error = windows.WSAECONNREFUSED
