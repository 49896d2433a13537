//go:build linux && !cgo

package platform

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

func raiseDefault(sig syscall.Signal) error {
	if RuntimeTrapsSignal(sig) {
		return NewPlatformError("linux", "raise", syscall.ENOTSUP)
	}
	signal.Reset(sig)
	return unix.Kill(os.Getpid(), sig)
}
