//go:build linux

package platform

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestLinuxDescriptorRoundTrip(t *testing.T) {
	lp := &LinuxPlatform{BasePlatform: NewBasePlatform()}

	path := filepath.Join(t.TempDir(), "environ")
	require.NoError(t, os.WriteFile(path, []byte("A=1\x00B=2\x00"), 0o644))

	fd, err := lp.OpenRead(path)
	require.NoError(t, err)
	defer lp.Close(fd)

	buf := make([]byte, 64)
	n, err := lp.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "A=1\x00B=2\x00", string(buf[:n]))

	byFD, err := lp.Fstat(fd)
	require.NoError(t, err)
	byPath, err := lp.Stat(path)
	require.NoError(t, err)
	assert.True(t, byFD.SameFile(byPath))
	assert.False(t, byFD.IsSocket())

	require.NoError(t, lp.SetCloexec(fd, false))
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	require.NoError(t, err)
	assert.Zero(t, flags&unix.FD_CLOEXEC)

	require.NoError(t, lp.SetCloexec(fd, true))
	flags, err = unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	require.NoError(t, err)
	assert.NotZero(t, flags&unix.FD_CLOEXEC)
}

func TestLinuxJoinNeedsHandoff(t *testing.T) {
	lp := &LinuxPlatform{BasePlatform: NewBasePlatform()}

	assert.True(t, lp.JoinNeedsHandoff(CloneNewUser))
	assert.True(t, lp.JoinNeedsHandoff(CloneNewTime))
	assert.False(t, lp.JoinNeedsHandoff(CloneNewNS))
	assert.False(t, lp.JoinNeedsHandoff(CloneNewNet|CloneNewPID))
}

func TestLinuxProcFilesystemMagic(t *testing.T) {
	lp := &LinuxPlatform{BasePlatform: NewBasePlatform()}

	magic, err := lp.Statfs("/proc/self")
	if err != nil {
		t.Skipf("procfs not available: %v", err)
	}
	assert.Equal(t, int64(ProcSuperMagic), magic)
}

func TestLinuxCapbsetRead(t *testing.T) {
	lp := &LinuxPlatform{BasePlatform: NewBasePlatform()}

	_, err := lp.CapbsetRead(0)
	assert.NoError(t, err)

	_, err = lp.CapbsetRead(1 << 20)
	assert.Error(t, err)
}

func TestLinuxExecveatBadDescriptor(t *testing.T) {
	lp := &LinuxPlatform{BasePlatform: NewBasePlatform()}

	err := lp.Execveat(-1, []string{"true"}, nil)
	assert.ErrorIs(t, err, unix.EBADF)
}

func TestRuntimeTrapsSignal(t *testing.T) {
	for _, sig := range []syscall.Signal{syscall.SIGABRT, syscall.SIGSEGV, syscall.SIGQUIT, syscall.SIGPIPE} {
		assert.True(t, RuntimeTrapsSignal(sig), sig.String())
	}
	for _, sig := range []syscall.Signal{syscall.SIGTERM, syscall.SIGKILL, syscall.SIGINT, syscall.SIGHUP} {
		assert.False(t, RuntimeTrapsSignal(sig), sig.String())
	}
}
