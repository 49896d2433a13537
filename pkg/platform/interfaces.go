package platform

import (
	"syscall"
	"time"
)

// Platform is the set of kernel primitives the namespace-entry engine is
// built on. Descriptors are raw integers because most of them end up in
// setns, ioctl or across an exec; the engine owns and closes them.
type Platform interface {
	DescriptorOps
	NamespaceOps
	FilesystemOps
	CredentialOps
	ProcessOps
}

type DescriptorOps interface {
	// OpenRead opens path read-only with close-on-exec set
	OpenRead(path string) (int, error)
	// OpenAppend opens path write-only for appending with close-on-exec set
	OpenAppend(path string) (int, error)
	Close(fd int) error
	Read(fd int, p []byte) (int, error)
	Write(fd int, p []byte) (int, error)
	ReadFile(path string) ([]byte, error)
	Fstat(fd int) (FileStat, error)
	Stat(path string) (FileStat, error)
	// Statfs and Fstatfs return the filesystem magic number
	Statfs(path string) (int64, error)
	Fstatfs(fd int) (int64, error)
	SetCloexec(fd int, on bool) error
}

type NamespaceOps interface {
	Setns(fd int, nstype int) error
	Unshare(flags int) error
	// JoinNeedsHandoff reports namespace types the kernel refuses to let a
	// multithreaded process join. Those joins happen in a fresh image.
	JoinNeedsHandoff(nstype int) bool
	PidfdOpen(pid int) (int, error)
	PidfdGetfd(pidfd int, targetfd int) (int, error)
	// NsGetUserns returns the owning user namespace of a namespace descriptor
	NsGetUserns(fd int) (int, error)
	// PidfdGetUserns returns the user namespace of the process behind pidfd
	PidfdGetUserns(pidfd int) (int, error)
	// SocketNetns returns the network namespace a socket belongs to
	SocketNetns(sockfd int) (int, error)
}

type FilesystemOps interface {
	Fchdir(fd int) error
	Chdir(path string) error
	Chroot(path string) error
}

type CredentialOps interface {
	Setgroups(gids []int) error
	Setgid(gid int) error
	Setuid(uid int) error
	Capget() (CapSet, error)
	Capset(caps CapSet) error
	AmbientRaise(capability int) error
	// CapbsetRead reports whether capability is in the bounding set. An
	// invalid capability number yields an error.
	CapbsetRead(capability int) (bool, error)
}

type ProcessOps interface {
	Getpid() int
	Getuid() int
	Getgid() int
	Environ() []string
	Clearenv()
	Setenv(key, value string) error
	Unsetenv(key string) error
	LookPath(file string) (string, error)
	// Exec replaces the process image from the calling thread
	Exec(argv0 string, argv []string, envv []string) error
	// OpenSelfExe opens the running binary for a later Execveat
	OpenSelfExe() (int, error)
	Execveat(fd int, argv []string, envv []string) error
	StartChild(spec ChildSpec) (int, error)
	Wait4(pid int) (WaitStatus, error)
	Kill(pid int, sig syscall.Signal) error
	// Raise delivers sig to the calling process with its default disposition
	Raise(sig syscall.Signal) error
	Sleep(d time.Duration)
}
