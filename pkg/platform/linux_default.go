//go:build !linux

package platform

import (
	"runtime"
	"syscall"
)

// Default implementations for LinuxPlatform when NOT compiled on Linux.
// Every kernel primitive reports an unsupported operation.

func unsupported(op string) error {
	return NewUnsupportedOperationError(runtime.GOOS, op)
}

func (lp *LinuxPlatform) OpenRead(path string) (int, error) { return -1, unsupported("open") }

func (lp *LinuxPlatform) OpenAppend(path string) (int, error) { return -1, unsupported("open") }

func (lp *LinuxPlatform) Close(fd int) error { return syscall.Close(fd) }

func (lp *LinuxPlatform) Read(fd int, p []byte) (int, error) { return syscall.Read(fd, p) }

func (lp *LinuxPlatform) Write(fd int, p []byte) (int, error) { return syscall.Write(fd, p) }

func (lp *LinuxPlatform) Fstat(fd int) (FileStat, error) { return FileStat{}, unsupported("fstat") }

func (lp *LinuxPlatform) Stat(path string) (FileStat, error) { return FileStat{}, unsupported("stat") }

func (lp *LinuxPlatform) Statfs(path string) (int64, error) { return 0, unsupported("statfs") }

func (lp *LinuxPlatform) Fstatfs(fd int) (int64, error) { return 0, unsupported("fstatfs") }

func (lp *LinuxPlatform) SetCloexec(fd int, on bool) error { return unsupported("fcntl") }

func (lp *LinuxPlatform) Setns(fd int, nstype int) error { return unsupported("setns") }

func (lp *LinuxPlatform) Unshare(flags int) error { return unsupported("unshare") }

func (lp *LinuxPlatform) JoinNeedsHandoff(nstype int) bool { return false }

func (lp *LinuxPlatform) PidfdOpen(pid int) (int, error) { return -1, unsupported("pidfd_open") }

func (lp *LinuxPlatform) PidfdGetfd(pidfd int, targetfd int) (int, error) {
	return -1, unsupported("pidfd_getfd")
}

func (lp *LinuxPlatform) NsGetUserns(fd int) (int, error) { return -1, unsupported("ioctl") }

func (lp *LinuxPlatform) PidfdGetUserns(pidfd int) (int, error) { return -1, unsupported("ioctl") }

func (lp *LinuxPlatform) SocketNetns(sockfd int) (int, error) { return -1, unsupported("ioctl") }

func (lp *LinuxPlatform) Fchdir(fd int) error { return syscall.Fchdir(fd) }

func (lp *LinuxPlatform) Chdir(path string) error { return syscall.Chdir(path) }

func (lp *LinuxPlatform) Chroot(path string) error { return syscall.Chroot(path) }

func (lp *LinuxPlatform) Setgroups(gids []int) error { return syscall.Setgroups(gids) }

func (lp *LinuxPlatform) Setgid(gid int) error { return syscall.Setgid(gid) }

func (lp *LinuxPlatform) Setuid(uid int) error { return syscall.Setuid(uid) }

func (lp *LinuxPlatform) Capget() (CapSet, error) { return CapSet{}, unsupported("capget") }

func (lp *LinuxPlatform) Capset(caps CapSet) error { return unsupported("capset") }

func (lp *LinuxPlatform) AmbientRaise(capability int) error { return unsupported("prctl") }

func (lp *LinuxPlatform) CapbsetRead(capability int) (bool, error) {
	return false, unsupported("prctl")
}

func (lp *LinuxPlatform) Exec(argv0 string, argv []string, envv []string) error {
	return syscall.Exec(argv0, argv, envv)
}

func (lp *LinuxPlatform) OpenSelfExe() (int, error) { return -1, unsupported("open") }

func (lp *LinuxPlatform) Execveat(fd int, argv []string, envv []string) error {
	return unsupported("execveat")
}

func (lp *LinuxPlatform) StartChild(spec ChildSpec) (int, error) {
	lp.logger.Warn("supervised child requested on non-Linux platform", "path", spec.Path)
	return -1, unsupported("fork")
}

func (lp *LinuxPlatform) Wait4(pid int) (WaitStatus, error) { return WaitStatus{}, unsupported("wait4") }

func (lp *LinuxPlatform) Kill(pid int, sig syscall.Signal) error { return syscall.Kill(pid, sig) }

func (lp *LinuxPlatform) Raise(sig syscall.Signal) error {
	return syscall.Kill(syscall.Getpid(), sig)
}
