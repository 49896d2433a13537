//go:build linux

package platform

import "syscall"

// RuntimeTrapsSignal reports whether the Go runtime turns sig into a
// crash report or swallows it even after signal.Reset. Raising such a
// signal from Go never ends the process the way the default action does.
func RuntimeTrapsSignal(sig syscall.Signal) bool {
	switch sig {
	case syscall.SIGABRT, syscall.SIGBUS, syscall.SIGFPE, syscall.SIGILL,
		syscall.SIGQUIT, syscall.SIGSEGV, syscall.SIGSYS, syscall.SIGTRAP,
		syscall.SIGPIPE:
		return true
	}
	return false
}
