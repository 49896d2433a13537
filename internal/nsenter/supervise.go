package nsenter

import (
	_errors "yawl/pkg/errors"
	"yawl/pkg/logger"
	"yawl/pkg/platform"
)

// Supervise waits for the child started in the joined PID namespace and
// mirrors its fate. A stopped child stops the supervisor as well and is
// continued once the supervisor itself is continued. The returned error
// always carries the exit status the supervisor should end with.
func Supervise(p platform.Platform, child int, log *logger.Logger) error {
	log = log.WithFields("component", "supervisor", "child", child)

	for {
		ws, err := p.Wait4(child)
		if err != nil {
			log.Error("wait for child failed", "error", err)
			return _errors.Wrap("waitpid", "", err)
		}

		switch {
		case ws.Stopped:
			log.Debug("child stopped, stopping supervisor")
			_ = p.Raise(platform.SignalStop)
			_ = p.Kill(child, platform.SignalCont)

		case ws.Exited:
			log.Debug("child exited", "code", ws.ExitCode)
			return &_errors.ExitStatus{Code: ws.ExitCode}

		case ws.Signaled:
			log.Debug("child killed by signal", "signal", ws.Signal.String())
			if err := p.Raise(ws.Signal); err != nil {
				log.Debug("cannot die by child's signal", "signal", ws.Signal.String(), "error", err)
			}
			// Still alive: the signal is ignored here or could not be raised
			return &_errors.ExitStatus{Code: 128 + int(ws.Signal)}

		default:
			return &_errors.ExitStatus{Code: 1}
		}
	}
}
