package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yawl/internal/nsenter"
	"yawl/pkg/config"
	_errors "yawl/pkg/errors"
	"yawl/pkg/logger"
)

type invocation struct {
	cfg  *config.Config
	opts nsenter.Options
}

func execute(t *testing.T, args ...string) (invocation, error) {
	t.Helper()
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv(config.EnvLogLevel, "")

	var got invocation
	cmd := NewRootCmd(func(cfg *config.Config, _ *logger.Logger, opts nsenter.Options) error {
		got = invocation{cfg: cfg, opts: opts}
		return nil
	})
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	return got, cmd.Execute()
}

func TestTargetNamespaces(t *testing.T) {
	got, err := execute(t, "--target", "1234", "--mount", "--user", "--preserve-credentials", "/bin/true")
	require.NoError(t, err)

	assert.Equal(t, 1234, got.opts.Target)
	assert.Equal(t, []nsenter.NamespaceRequest{
		{Kind: nsenter.KindUser},
		{Kind: nsenter.KindMount},
	}, got.opts.Namespaces)
	assert.True(t, got.opts.PreserveCredentials)
	assert.Equal(t, []string{"/bin/true"}, got.opts.Args)
	assert.Equal(t, -1, got.opts.NetSocket)
}

func TestNamespaceFile(t *testing.T) {
	got, err := execute(t, "--net=/run/netns/blue", "-u", "ip", "addr")
	require.NoError(t, err)

	assert.Equal(t, []nsenter.NamespaceRequest{
		{Kind: nsenter.KindUTS},
		{Kind: nsenter.KindNet, Path: "/run/netns/blue"},
	}, got.opts.Namespaces)
	assert.Equal(t, []string{"ip", "addr"}, got.opts.Args)
}

func TestParsingStopsAtProgram(t *testing.T) {
	got, err := execute(t, "-t", "1", "-p", "sh", "-c", "echo $$")
	require.NoError(t, err)

	assert.Equal(t, []string{"sh", "-c", "echo $$"}, got.opts.Args)
	assert.False(t, got.opts.JoinCgroup)
}

func TestShortFlags(t *testing.T) {
	got, err := execute(t, "-a", "-t", "7", "-N", "3", "-S", "follow", "-G", "100",
		"-r", "-w=/srv", "-e", "-F", "-c", "prog")
	require.NoError(t, err)

	o := got.opts
	assert.True(t, o.All)
	assert.Equal(t, 3, o.NetSocket)
	assert.Equal(t, nsenter.IDRequest{Set: true, Follow: true}, o.UID)
	assert.Equal(t, nsenter.IDRequest{Set: true, ID: 100}, o.GID)
	assert.Equal(t, nsenter.PathRequest{Set: true}, o.Root)
	assert.Equal(t, nsenter.PathRequest{Set: true, Path: "/srv"}, o.WorkDir)
	assert.True(t, o.Env)
	assert.True(t, o.NoFork)
	assert.True(t, o.JoinCgroup)
}

func TestEnterPreset(t *testing.T) {
	got, err := execute(t, "--enter", "4321", "wine", "game.exe")
	require.NoError(t, err)

	assert.Equal(t, 4321, got.opts.Target)
	assert.True(t, got.opts.PreserveCredentials)
	assert.Equal(t, []nsenter.NamespaceRequest{
		{Kind: nsenter.KindUser},
		{Kind: nsenter.KindMount},
	}, got.opts.Namespaces)
}

func TestEnterPresetOverrides(t *testing.T) {
	got, err := execute(t, "--enter", "4321", "-t", "99", "--mount=/proc/99/ns/mnt", "--net", "prog")
	require.NoError(t, err)

	assert.Equal(t, 99, got.opts.Target)
	assert.Equal(t, []nsenter.NamespaceRequest{
		{Kind: nsenter.KindUser},
		{Kind: nsenter.KindNet},
		{Kind: nsenter.KindMount, Path: "/proc/99/ns/mnt"},
	}, got.opts.Namespaces)
}

func TestInvalidInvocations(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no program", []string{"-t", "1", "-m"}},
		{"bad pid", []string{"-t", "abc", "-m", "sh"}},
		{"bad uid", []string{"-U", "-S", "nobody", "sh"}},
		{"bad socket", []string{"-t", "1", "-N", "x", "sh"}},
		{"socket without target", []string{"-N", "5", "sh"}},
		{"wd with wdns", []string{"-t", "1", "-m", "--wd=/a", "--wdns", "/b", "sh"}},
		{"unknown flag", []string{"--bogus", "sh"}},
		{"bad log level", []string{"--log-level", "LOUD", "-m", "sh"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, _errors.ErrInvalidArgument)
			assert.Equal(t, 1, _errors.ExitCode(err))
		})
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nsenter.yaml")
	content := "logging:\n  level: DEBUG\n  format: json\npaths:\n  procRoot: /host/proc\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := execute(t, "--config", path, "-m", "sh")
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", got.cfg.Logging.Level)
	assert.Equal(t, "json", got.cfg.Logging.Format)
	assert.Equal(t, "/host/proc", got.cfg.Paths.ProcRoot)
	assert.Equal(t, "/sys/fs/cgroup", got.cfg.Paths.CgroupRoot)
}

func TestLogLevelFlag(t *testing.T) {
	got, err := execute(t, "--log-level", "warn", "-m", "sh")
	require.NoError(t, err)
	assert.Equal(t, "warn", got.cfg.Logging.Level)
}

func TestErrorMessage(t *testing.T) {
	assert.Empty(t, ErrorMessage(nil))
	assert.Empty(t, ErrorMessage(&_errors.ExitStatus{Code: 3}))
	assert.Equal(t, "yawl-nsenter: no program specified", ErrorMessage(_errors.Invalid("no program specified")))
}

func TestResumeRejectsMalformedState(t *testing.T) {
	err := Resume("not-a-state!")
	assert.ErrorIs(t, err, _errors.ErrInvalidArgument)
}
