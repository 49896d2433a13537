package platform

import "syscall"

// LinuxPlatform provides Linux-specific implementations
type LinuxPlatform struct {
	*BasePlatform
}

// Ensure the platforms implement Platform interface
var _ Platform = (*LinuxPlatform)(nil)
var _ Platform = (*MockPlatform)(nil)

// FileStat is the subset of struct stat the engine looks at
type FileStat struct {
	Dev  uint64
	Ino  uint64
	Mode uint32
	Uid  uint32
	Gid  uint32
}

func (s FileStat) IsSocket() bool {
	return s.Mode&syscall.S_IFMT == syscall.S_IFSOCK
}

// SameFile reports whether both stats name the same inode
func (s FileStat) SameFile(o FileStat) bool {
	return s.Dev == o.Dev && s.Ino == o.Ino
}

// CapSet holds the three capability masks of the calling thread
type CapSet struct {
	Effective   uint64
	Permitted   uint64
	Inheritable uint64
}

// Has reports whether capability is set in mask
func Has(mask uint64, capability int) bool {
	return capability >= 0 && capability < 64 && mask&(1<<uint(capability)) != 0
}

// Credential is applied to a child between fork and exec
type Credential struct {
	Uid uint32
	Gid uint32
}

// ChildSpec describes a supervised child process
type ChildSpec struct {
	Path        string
	Args        []string
	Env         []string
	Credential  *Credential
	AmbientCaps []uintptr
}

// WaitStatus is a decoded wait4 status
type WaitStatus struct {
	Exited   bool
	ExitCode int
	Signaled bool
	Signal   syscall.Signal
	Stopped  bool
}
