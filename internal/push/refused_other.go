//go:build !windows

package push

import "syscall"

var errRefused error = syscall.ECONNREFUSED
