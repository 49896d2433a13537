package platform

import (
	"os"
	"os/exec"
	"time"

	"yawl/pkg/logger"
)

// BasePlatform provides common functionality shared across platforms
type BasePlatform struct {
	logger *logger.Logger
}

// NewBasePlatform creates a new base platform
func NewBasePlatform() *BasePlatform {
	return &BasePlatform{
		logger: logger.WithField("component", "platform"),
	}
}

// Common OS operations that work the same across platforms
func (bp *BasePlatform) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (bp *BasePlatform) Getpid() int {
	return os.Getpid()
}

func (bp *BasePlatform) Getuid() int {
	return os.Getuid()
}

func (bp *BasePlatform) Getgid() int {
	return os.Getgid()
}

func (bp *BasePlatform) Environ() []string {
	return os.Environ()
}

func (bp *BasePlatform) Clearenv() {
	os.Clearenv()
}

func (bp *BasePlatform) Setenv(key, value string) error {
	return os.Setenv(key, value)
}

func (bp *BasePlatform) Unsetenv(key string) error {
	return os.Unsetenv(key)
}

func (bp *BasePlatform) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (bp *BasePlatform) Sleep(d time.Duration) {
	time.Sleep(d)
}
