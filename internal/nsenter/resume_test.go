package nsenter

import (
	"fmt"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yawl/internal/nsenter/bootstrap"
	_errors "yawl/pkg/errors"
	"yawl/pkg/platform"
)

func envValue(env []string, key string) (string, bool) {
	for _, kv := range env {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// handOff runs an engine whose user namespace join needs a fresh image
// and returns the recorded execveat
func handOff(t *testing.T, mp *platform.MockPlatform, opts Options) platform.ExecCall {
	t.Helper()
	mp.HandoffMask = platform.CloneNewUser
	e := newTestEngine(mp)
	e.handoffEnabled = true
	e.selfArgs = []string{"yawl-nsenter", "--target", "123", "--user", "--mount", "sh"}

	require.NoError(t, e.Run(opts))
	require.Len(t, mp.ExecCalls, 1)
	return mp.ExecCalls[0]
}

// resumedPlatform is the mock as the handed-off image sees it
func resumedPlatform(call platform.ExecCall) *platform.MockPlatform {
	mp := newTestPlatform()
	for fd, name := range call.Inherited {
		mp.Inherit(fd, name)
	}
	mp.Env = append([]string{}, call.Envv...)
	return mp
}

func TestHandoffCarriesState(t *testing.T) {
	mp := newTestPlatform()
	mp.Env = []string{"PATH=/usr/bin", StateEnv + "=stale"}

	call := handOff(t, mp, testOptions(KindUser, KindMount))

	assert.Equal(t, "exe", call.Argv0)
	assert.Equal(t, "yawl-nsenter", call.Argv[0])
	assert.Empty(t, mp.SetnsCalls)

	userFD := inheritedFD(t, call, targetPath("ns/user"))
	mntFD := inheritedFD(t, call, targetPath("ns/mnt"))
	assert.ElementsMatch(t, []string{targetPath("ns/user"), targetPath("ns/mnt"), "exe"}, mapValues(call.Inherited))

	join, ok := envValue(call.Envv, bootstrap.JoinEnv)
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("%d:%d,%d:%d", userFD, platform.CloneNewUser, mntFD, platform.CloneNewNS), join)

	encoded, ok := envValue(call.Envv, StateEnv)
	require.True(t, ok)
	assert.NotEqual(t, "stale", encoded)

	st, err := DecodeState(encoded)
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindUser, KindMount}, st.Joining)
	assert.Equal(t, userFD, st.Slots[KindUser].FD)
	assert.True(t, st.Slots[KindMount].Enabled)
	assert.True(t, st.Creds.UID.Set)
	assert.Equal(t, []string{"sh"}, st.Options.Args)
	assert.Equal(t, "/proc", st.Config.Paths.ProcRoot)
}

func inheritedFD(t *testing.T, call platform.ExecCall, name string) int {
	t.Helper()
	for fd, n := range call.Inherited {
		if n == name {
			return fd
		}
	}
	t.Fatalf("%s not inherited: %v", name, call.Inherited)
	return -1
}

func mapValues(m map[int]string) []string {
	var out []string
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func TestResumeFinishesEntry(t *testing.T) {
	call := handOff(t, newTestPlatform(), testOptions(KindUser, KindMount))
	encoded, _ := envValue(call.Envv, StateEnv)
	st, err := DecodeState(encoded)
	require.NoError(t, err)

	mp := resumedPlatform(call)
	require.NoError(t, Resume(mp, st, bootstrap.Outcome{Requested: true}, testLogger()))

	require.Len(t, mp.ExecCalls, 1)
	assert.Equal(t, "/usr/bin/sh", mp.ExecCalls[0].Argv0)
	_, ok := envValue(mp.ExecCalls[0].Envv, StateEnv)
	assert.False(t, ok)
	_, ok = envValue(mp.ExecCalls[0].Envv, bootstrap.JoinEnv)
	assert.False(t, ok)

	assert.Empty(t, mp.SetnsCalls)
	assert.Less(t, callIndex(t, mp, "setgid 0"), callIndex(t, mp, "setuid 0"))
	assert.Empty(t, mp.OpenDescriptors())
}

func TestHandoffTakesMountAlong(t *testing.T) {
	mp := newTestPlatform()
	mp.HandoffMask = platform.CloneNewTime
	e := newTestEngine(mp)
	e.handoffEnabled = true

	require.NoError(t, e.Run(testOptions(KindNet, KindMount, KindTime)))

	for _, c := range mp.SetnsCalls {
		assert.Zero(t, c.NsType&platform.CloneNewNS, "mount joined before the re-exec: %+v", c)
	}
	require.Len(t, mp.ExecCalls, 1)
	call := mp.ExecCalls[0]
	assert.Equal(t, "exe", call.Argv0)

	mntFD := inheritedFD(t, call, targetPath("ns/mnt"))
	timeFD := inheritedFD(t, call, targetPath("ns/time"))
	join, ok := envValue(call.Envv, bootstrap.JoinEnv)
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("%d:%d,%d:%d", mntFD, platform.CloneNewNS, timeFD, platform.CloneNewTime), join)

	encoded, _ := envValue(call.Envv, StateEnv)
	st, err := DecodeState(encoded)
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindMount, KindTime}, st.Joining)

	resumed := resumedPlatform(call)
	require.NoError(t, Resume(resumed, st, bootstrap.Outcome{Requested: true}, testLogger()))
	assert.Empty(t, resumed.SetnsCalls)
	require.Len(t, resumed.ExecCalls, 1)
	assert.Equal(t, "/usr/bin/sh", resumed.ExecCalls[0].Argv0)
	assert.Empty(t, resumed.OpenDescriptors())
}

func TestResumeReportsLaterJoinFailure(t *testing.T) {
	call := handOff(t, newTestPlatform(), testOptions(KindUser, KindMount))
	encoded, _ := envValue(call.Envv, StateEnv)
	st, err := DecodeState(encoded)
	require.NoError(t, err)

	mp := resumedPlatform(call)
	err = Resume(mp, st, bootstrap.Outcome{Requested: true, Failed: platform.CloneNewNS, Err: syscall.EINVAL}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reassociate to namespace 'ns/mnt' failed")
	assert.ErrorIs(t, err, _errors.ErrInvalidArgument)
	assert.Empty(t, mp.ExecCalls)
}

func TestResumeRejectedRequest(t *testing.T) {
	call := handOff(t, newTestPlatform(), testOptions(KindUser))
	encoded, _ := envValue(call.Envv, StateEnv)
	st, err := DecodeState(encoded)
	require.NoError(t, err)

	err = Resume(resumedPlatform(call), st, bootstrap.Outcome{Requested: true, Err: syscall.EINVAL}, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, _errors.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "join request rejected")
}

func TestResumeReportsJoinFailure(t *testing.T) {
	call := handOff(t, newTestPlatform(), testOptions(KindUser, KindMount))
	encoded, _ := envValue(call.Envv, StateEnv)
	st, err := DecodeState(encoded)
	require.NoError(t, err)

	mp := resumedPlatform(call)
	err = Resume(mp, st, bootstrap.Outcome{Requested: true, Failed: platform.CloneNewUser, Err: syscall.EPERM}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reassociate to namespace 'ns/user' failed")
	assert.ErrorIs(t, err, _errors.ErrPermissionDenied)
	assert.Empty(t, mp.ExecCalls)
	assert.Empty(t, mp.OpenDescriptors())
}

func TestResumeWithoutBootstrapJoin(t *testing.T) {
	call := handOff(t, newTestPlatform(), testOptions(KindUser))
	encoded, _ := envValue(call.Envv, StateEnv)
	st, err := DecodeState(encoded)
	require.NoError(t, err)

	err = Resume(resumedPlatform(call), st, bootstrap.Outcome{}, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, _errors.ErrUnsupported)
}

func TestHandoffExecFailure(t *testing.T) {
	mp := newTestPlatform()
	mp.Failures["execveat"] = syscall.EACCES
	mp.HandoffMask = platform.CloneNewUser
	e := newTestEngine(mp)
	e.handoffEnabled = true

	err := e.Run(testOptions(KindUser, KindMount))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reassociate to namespace 'ns/user' failed")
	assert.ErrorIs(t, err, _errors.ErrPermissionDenied)
	assert.Empty(t, mp.OpenDescriptors())
}

func TestDecodeStateRejectsGarbage(t *testing.T) {
	_, err := DecodeState("%%%")
	assert.ErrorIs(t, err, _errors.ErrInvalidArgument)

	_, err = DecodeState("oA")
	assert.ErrorIs(t, err, _errors.ErrInvalidArgument)

	encoded, err := EncodeState(&State{Version: stateVersion + 1})
	require.NoError(t, err)
	_, err = DecodeState(encoded)
	assert.ErrorIs(t, err, _errors.ErrInvalidArgument)
}

func TestEncodeStateDeterministic(t *testing.T) {
	st := &State{Version: stateVersion, Joining: []Kind{KindMount, KindTime}, Options: testOptions(KindTime), ExeFD: 12}
	a, err := EncodeState(st)
	require.NoError(t, err)
	b, err := EncodeState(st)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	decoded, err := DecodeState(a)
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindMount, KindTime}, decoded.Joining)
	assert.Equal(t, 12, decoded.ExeFD)
}
