//go:build !linux

package platform

import "syscall"

// Default syscall constants for non-Linux platforms
// These mirror the Linux values so that flag masks stay comparable
const (
	// Clone flags
	CloneNewUser   = 0x10000000
	CloneNewCgroup = 0x02000000
	CloneNewIPC    = 0x08000000
	CloneNewUTS    = 0x04000000
	CloneNewNet    = 0x40000000
	CloneNewPID    = 0x20000000
	CloneNewNS     = 0x00020000
	CloneNewTime   = 0x00000080
	CloneFS        = 0x00000200

	// Process signals
	SignalStop = syscall.SIGSTOP
	SignalCont = syscall.SIGCONT

	// Filesystem magic numbers
	Cgroup2SuperMagic = 0x63677270
	ProcSuperMagic    = 0x9fa0
)
