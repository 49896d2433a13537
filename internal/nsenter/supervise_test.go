package nsenter

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_errors "yawl/pkg/errors"
	"yawl/pkg/platform"
)

func TestSuperviseExitCode(t *testing.T) {
	mp := newTestPlatform()
	mp.WaitStatuses = []platform.WaitStatus{{Exited: true, ExitCode: 42}}

	err := Supervise(mp, mp.ChildPid, testLogger())
	assert.Equal(t, 42, _errors.ExitCode(err))
	assert.Empty(t, mp.RaiseCalls)
}

func TestSuperviseStopAndContinue(t *testing.T) {
	mp := newTestPlatform()
	mp.WaitStatuses = []platform.WaitStatus{
		{Stopped: true},
		{Stopped: true},
		{Exited: true},
	}

	err := Supervise(mp, mp.ChildPid, testLogger())
	assert.Equal(t, 0, _errors.ExitCode(err))
	assert.Equal(t, []syscall.Signal{platform.SignalStop, platform.SignalStop}, mp.RaiseCalls)
	assert.Equal(t, []platform.KillCall{
		{PID: mp.ChildPid, Signal: platform.SignalCont},
		{PID: mp.ChildPid, Signal: platform.SignalCont},
	}, mp.KillCalls)
	assert.Less(t,
		callIndex(t, mp, fmt.Sprintf("raise %d", int(platform.SignalStop))),
		callIndex(t, mp, fmt.Sprintf("kill %d %d", mp.ChildPid, int(platform.SignalCont))))
}

func TestSuperviseSignalled(t *testing.T) {
	mp := newTestPlatform()
	mp.WaitStatuses = []platform.WaitStatus{{Signaled: true, Signal: syscall.SIGTERM}}

	err := Supervise(mp, mp.ChildPid, testLogger())
	assert.Equal(t, 128+int(syscall.SIGTERM), _errors.ExitCode(err))
	assert.Equal(t, []syscall.Signal{syscall.SIGTERM}, mp.RaiseCalls)
}

func TestSuperviseSignalTrappedByRuntime(t *testing.T) {
	mp := newTestPlatform()
	mp.Failures["raise"] = syscall.ENOTSUP
	mp.WaitStatuses = []platform.WaitStatus{{Signaled: true, Signal: syscall.SIGABRT}}

	err := Supervise(mp, mp.ChildPid, testLogger())
	assert.Equal(t, 134, _errors.ExitCode(err))
	assert.Equal(t, []syscall.Signal{syscall.SIGABRT}, mp.RaiseCalls)
}

func TestSuperviseWaitFailure(t *testing.T) {
	mp := newTestPlatform()

	err := Supervise(mp, mp.ChildPid, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.ECHILD)
}

func TestSuperviseUnknownStatus(t *testing.T) {
	mp := newTestPlatform()
	mp.WaitStatuses = []platform.WaitStatus{{}}

	assert.Equal(t, 1, _errors.ExitCode(Supervise(mp, mp.ChildPid, testLogger())))
}
