package errors

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "enoent", err: syscall.ENOENT, want: ErrNotFound},
		{name: "eacces", err: syscall.EACCES, want: ErrPermissionDenied},
		{name: "eperm wrapped", err: fmt.Errorf("setns: %w", syscall.EPERM), want: ErrPermissionDenied},
		{name: "einval", err: syscall.EINVAL, want: ErrInvalidArgument},
		{name: "enosys", err: syscall.ENOSYS, want: ErrUnsupported},
		{name: "eio", err: syscall.EIO, want: ErrIO},
		{name: "plain error", err: errors.New("short write"), want: ErrIO},
		{name: "already classified", err: Invalid("bad uid"), want: ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("open", "/proc/1/ns/mnt", nil))

	err := Wrap("cannot open", "/proc/1/ns/mnt", syscall.ENOENT)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, syscall.ENOENT)
	assert.Equal(t, "cannot open /proc/1/ns/mnt: no such file or directory", err.Error())

	outer := fmt.Errorf("resolve: %w", err)
	assert.ErrorIs(t, outer, ErrNotFound)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 42, ExitCode(fmt.Errorf("child: %w", &ExitStatus{Code: 42})))
	assert.Equal(t, int(syscall.EPERM), ExitCode(Wrap("setns", "ns/user", syscall.EPERM)))
	assert.Equal(t, 1, ExitCode(Invalid("no program specified")))
}
