package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"yawl/internal/nsenter"
	"yawl/internal/nsenter/bootstrap"
	"yawl/pkg/config"
	_errors "yawl/pkg/errors"
	"yawl/pkg/logger"
	"yawl/pkg/platform"
)

// RunFunc performs the entry once flags, configuration and logger are set up
type RunFunc func(cfg *config.Config, log *logger.Logger, opts nsenter.Options) error

// NewRootCmd builds the yawl-nsenter command. Flag parsing stops at the
// first positional argument, which names the program.
func NewRootCmd(run RunFunc) *cobra.Command {
	flags := &entryFlags{}

	cmd := &cobra.Command{
		Use:   "yawl-nsenter [options] <program> [<argument>...]",
		Short: "Run a program with namespaces of other processes",
		Long: `Run a program with namespaces of other processes.

Namespace flags take an optional file; without one the namespace of the
--target process is used.

Examples:
  yawl-nsenter --target 1234 --mount --user --preserve-credentials /bin/true
  yawl-nsenter -t 1234 -p sh -c 'echo $$'
  yawl-nsenter --net=/run/netns/blue ip addr
  yawl-nsenter --enter $(pgrep game.exe) cheatengine.exe`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configPath, flags.logLevel)
			if err != nil {
				return err
			}

			log := newLogger(cfg)
			logger.SetDefault(log)

			opts, err := flags.options(cmd.Flags(), args)
			if err != nil {
				return err
			}

			log.Debug("parsed invocation", "target", opts.Target, "program", opts.Args[0])
			return run(cfg, log, opts)
		},
	}

	cmd.Flags().SetInterspersed(false)
	flags.register(cmd.Flags())

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &_errors.Error{Kind: _errors.ErrInvalidArgument, Op: "invalid arguments", Err: err}
	})

	cmd.Args = func(_ *cobra.Command, args []string) error {
		if len(args) == 0 {
			return _errors.Invalid("no program specified")
		}
		return nil
	}

	return cmd
}

// Execute runs the command line against the real kernel
func Execute() error {
	return NewRootCmd(enter).Execute()
}

func enter(cfg *config.Config, log *logger.Logger, opts nsenter.Options) error {
	return nsenter.New(platform.NewPlatform(), cfg, log).Run(opts)
}

// Resume continues an entry in an image started by a handoff. Logging
// follows the configuration carried in the state.
func Resume(encoded string) error {
	st, err := nsenter.DecodeState(encoded)
	if err != nil {
		return err
	}

	log := newLogger(&st.Config)
	logger.SetDefault(log)

	return nsenter.Resume(platform.NewPlatform(), st, bootstrap.Result(), log)
}

func loadConfig(path, level string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, _, err = config.LoadConfig()
	}
	if err != nil {
		return nil, &_errors.Error{Kind: _errors.ErrInvalidArgument, Op: "configuration", Err: err}
	}

	if level != "" {
		if _, err := logger.ParseLevel(level); err != nil {
			return nil, _errors.Invalid("invalid --log-level %q", level)
		}
		cfg.Logging.Level = level
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logger.Logger {
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logger.INFO
	}
	return logger.NewWithConfig(logger.Config{
		Level:  level,
		Format: cfg.Logging.Format,
	})
}

// ErrorMessage formats err the way the command reports it on stderr;
// an empty string means nothing should be printed
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var status *_errors.ExitStatus
	if errors.As(err, &status) {
		return ""
	}
	return fmt.Sprintf("yawl-nsenter: %v", err)
}
