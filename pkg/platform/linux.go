//go:build linux

package platform

import (
	"os"
	"os/exec"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PIDFD_GET_USER_NAMESPACE is _IO(PIDFS_IOCTL_MAGIC, 9); not exported by x/sys yet
const pidfdGetUserNamespace = 0xff09

func (lp *LinuxPlatform) OpenRead(path string) (int, error) {
	return unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
}

func (lp *LinuxPlatform) OpenAppend(path string) (int, error) {
	return unix.Open(path, unix.O_WRONLY|unix.O_APPEND|unix.O_CLOEXEC, 0)
}

func (lp *LinuxPlatform) Close(fd int) error {
	return unix.Close(fd)
}

func (lp *LinuxPlatform) Read(fd int, p []byte) (int, error) {
	return unix.Read(fd, p)
}

func (lp *LinuxPlatform) Write(fd int, p []byte) (int, error) {
	return unix.Write(fd, p)
}

func (lp *LinuxPlatform) Fstat(fd int) (FileStat, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return FileStat{}, err
	}
	return toFileStat(&st), nil
}

func (lp *LinuxPlatform) Stat(path string) (FileStat, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return FileStat{}, err
	}
	return toFileStat(&st), nil
}

func toFileStat(st *unix.Stat_t) FileStat {
	return FileStat{
		Dev:  uint64(st.Dev),
		Ino:  uint64(st.Ino),
		Mode: uint32(st.Mode),
		Uid:  st.Uid,
		Gid:  st.Gid,
	}
}

func (lp *LinuxPlatform) Statfs(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return int64(st.Type), nil
}

func (lp *LinuxPlatform) Fstatfs(fd int) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Fstatfs(fd, &st); err != nil {
		return 0, err
	}
	return int64(st.Type), nil
}

func (lp *LinuxPlatform) SetCloexec(fd int, on bool) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return err
	}
	if on {
		flags |= unix.FD_CLOEXEC
	} else {
		flags &^= unix.FD_CLOEXEC
	}
	_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags)
	return err
}

// Setns joins on the calling thread only. Callers are expected to hold
// the thread with runtime.LockOSThread.
func (lp *LinuxPlatform) Setns(fd int, nstype int) error {
	return unix.Setns(fd, nstype)
}

func (lp *LinuxPlatform) Unshare(flags int) error {
	return unix.Unshare(flags)
}

// The kernel requires a single-threaded caller for user (thread_group_empty)
// and time (EUSERS) namespaces, which a Go process never is.
func (lp *LinuxPlatform) JoinNeedsHandoff(nstype int) bool {
	return nstype&(unix.CLONE_NEWUSER|unix.CLONE_NEWTIME) != 0
}

func (lp *LinuxPlatform) PidfdOpen(pid int) (int, error) {
	return unix.PidfdOpen(pid, 0)
}

func (lp *LinuxPlatform) PidfdGetfd(pidfd int, targetfd int) (int, error) {
	return unix.PidfdGetfd(pidfd, targetfd, 0)
}

func (lp *LinuxPlatform) NsGetUserns(fd int) (int, error) {
	return unix.IoctlRetInt(fd, unix.NS_GET_USERNS)
}

func (lp *LinuxPlatform) PidfdGetUserns(pidfd int) (int, error) {
	return unix.IoctlRetInt(pidfd, pidfdGetUserNamespace)
}

func (lp *LinuxPlatform) SocketNetns(sockfd int) (int, error) {
	return unix.IoctlRetInt(sockfd, unix.SIOCGSKNS)
}

func (lp *LinuxPlatform) Fchdir(fd int) error {
	return unix.Fchdir(fd)
}

func (lp *LinuxPlatform) Chdir(path string) error {
	return unix.Chdir(path)
}

func (lp *LinuxPlatform) Chroot(path string) error {
	return unix.Chroot(path)
}

// Setgroups, Setgid and Setuid go through package syscall, which applies
// them to every thread of the process.
func (lp *LinuxPlatform) Setgroups(gids []int) error {
	return syscall.Setgroups(gids)
}

func (lp *LinuxPlatform) Setgid(gid int) error {
	return syscall.Setgid(gid)
}

func (lp *LinuxPlatform) Setuid(uid int) error {
	return syscall.Setuid(uid)
}

func (lp *LinuxPlatform) Capget() (CapSet, error) {
	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}
	var data [2]unix.CapUserData
	if err := unix.Capget(&hdr, &data[0]); err != nil {
		return CapSet{}, err
	}
	return CapSet{
		Effective:   uint64(data[0].Effective) | uint64(data[1].Effective)<<32,
		Permitted:   uint64(data[0].Permitted) | uint64(data[1].Permitted)<<32,
		Inheritable: uint64(data[0].Inheritable) | uint64(data[1].Inheritable)<<32,
	}, nil
}

func (lp *LinuxPlatform) Capset(caps CapSet) error {
	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}
	data := [2]unix.CapUserData{
		{
			Effective:   uint32(caps.Effective),
			Permitted:   uint32(caps.Permitted),
			Inheritable: uint32(caps.Inheritable),
		},
		{
			Effective:   uint32(caps.Effective >> 32),
			Permitted:   uint32(caps.Permitted >> 32),
			Inheritable: uint32(caps.Inheritable >> 32),
		},
	}
	return unix.Capset(&hdr, &data[0])
}

func (lp *LinuxPlatform) AmbientRaise(capability int) error {
	return unix.Prctl(unix.PR_CAP_AMBIENT, unix.PR_CAP_AMBIENT_RAISE, uintptr(capability), 0, 0)
}

func (lp *LinuxPlatform) CapbsetRead(capability int) (bool, error) {
	ret, _, errno := unix.Syscall6(unix.SYS_PRCTL, unix.PR_CAPBSET_READ, uintptr(capability), 0, 0, 0, 0)
	if errno != 0 {
		return false, errno
	}
	return ret == 1, nil
}

func (lp *LinuxPlatform) Exec(argv0 string, argv []string, envv []string) error {
	return syscall.Exec(argv0, argv, envv)
}

func (lp *LinuxPlatform) OpenSelfExe() (int, error) {
	return unix.Open("/proc/self/exe", unix.O_RDONLY|unix.O_CLOEXEC, 0)
}

// Execveat runs the file behind fd with AT_EMPTY_PATH; x/sys only has
// the syscall number, so the call is made directly
func (lp *LinuxPlatform) Execveat(fd int, argv []string, envv []string) error {
	path, err := unix.BytePtrFromString("")
	if err != nil {
		return err
	}
	argvp, err := syscall.SlicePtrFromStrings(argv)
	if err != nil {
		return err
	}
	envvp, err := syscall.SlicePtrFromStrings(envv)
	if err != nil {
		return err
	}

	_, _, errno := unix.Syscall6(unix.SYS_EXECVEAT,
		uintptr(fd),
		uintptr(unsafe.Pointer(path)),
		uintptr(unsafe.Pointer(&argvp[0])),
		uintptr(unsafe.Pointer(&envvp[0])),
		uintptr(unix.AT_EMPTY_PATH),
		0)
	if errno != 0 {
		return errno
	}
	return nil
}

// StartChild forks from the calling thread, so the child inherits that
// thread's namespaces, root and working directory.
func (lp *LinuxPlatform) StartChild(spec ChildSpec) (int, error) {
	cmd := &exec.Cmd{
		Path:   spec.Path,
		Args:   spec.Args,
		Env:    spec.Env,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	attr := &syscall.SysProcAttr{
		AmbientCaps: spec.AmbientCaps,
	}
	if spec.Credential != nil {
		attr.Credential = &syscall.Credential{
			Uid:         spec.Credential.Uid,
			Gid:         spec.Credential.Gid,
			NoSetGroups: true,
		}
	}
	cmd.SysProcAttr = attr

	if err := cmd.Start(); err != nil {
		return -1, err
	}

	lp.logger.Debug("started child", "pid", cmd.Process.Pid, "path", spec.Path)
	return cmd.Process.Pid, nil
}

func (lp *LinuxPlatform) Wait4(pid int) (WaitStatus, error) {
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, unix.WUNTRACED, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return WaitStatus{}, err
		}
		break
	}

	status := WaitStatus{
		Exited:   ws.Exited(),
		Signaled: ws.Signaled(),
		Stopped:  ws.Stopped(),
	}
	if status.Exited {
		status.ExitCode = ws.ExitStatus()
	}
	if status.Signaled {
		status.Signal = ws.Signal()
	}
	return status, nil
}

func (lp *LinuxPlatform) Kill(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}

// Raise delivers sig with its default disposition. Returning at all means
// the process survived, e.g. because sig is ignored by default.
func (lp *LinuxPlatform) Raise(sig syscall.Signal) error {
	return raiseDefault(sig)
}
