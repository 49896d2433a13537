//go:build linux

package platform

import "golang.org/x/sys/unix"

// Linux-specific syscall constants
const (
	// Clone flags for namespaces
	CloneNewUser   = unix.CLONE_NEWUSER
	CloneNewCgroup = unix.CLONE_NEWCGROUP
	CloneNewIPC    = unix.CLONE_NEWIPC
	CloneNewUTS    = unix.CLONE_NEWUTS
	CloneNewNet    = unix.CLONE_NEWNET
	CloneNewPID    = unix.CLONE_NEWPID
	CloneNewNS     = unix.CLONE_NEWNS
	CloneNewTime   = unix.CLONE_NEWTIME
	CloneFS        = unix.CLONE_FS

	// Process signals
	SignalStop = unix.SIGSTOP
	SignalCont = unix.SIGCONT

	// Filesystem magic numbers
	Cgroup2SuperMagic = unix.CGROUP2_SUPER_MAGIC
	ProcSuperMagic    = unix.PROC_SUPER_MAGIC
)
