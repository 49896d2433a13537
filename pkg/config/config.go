package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables of the namespace-entry engine. None of them
// change what gets joined; that comes from the command line.
type Config struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	IO      IOConfig      `yaml:"io" json:"io"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// PathsConfig locates the kernel interfaces the engine reads
type PathsConfig struct {
	ProcRoot   string `yaml:"procRoot" json:"procRoot"`
	CgroupRoot string `yaml:"cgroupRoot" json:"cgroupRoot"`
	CapLastCap string `yaml:"capLastCap" json:"capLastCap"`
}

// IOConfig bounds the retry loops used for /proc reads and cgroup.procs writes
type IOConfig struct {
	RetryAttempts int           `yaml:"retryAttempts" json:"retryAttempts"`
	RetryBackoff  time.Duration `yaml:"retryBackoff" json:"retryBackoff"`
}

// DefaultConfig Default configuration values
var DefaultConfig = Config{
	Logging: LoggingConfig{
		Level:  "INFO",
		Format: "text",
	},
	Paths: PathsConfig{
		ProcRoot:   "/proc",
		CgroupRoot: "/sys/fs/cgroup",
		CapLastCap: "/proc/sys/kernel/cap_last_cap",
	},
	IO: IOConfig{
		RetryAttempts: 5,
		RetryBackoff:  250 * time.Millisecond,
	},
}

const (
	EnvConfigPath = "YAWL_NSENTER_CONFIG"
	EnvLogLevel   = "YAWL_LOG_LEVEL"
	EnvLogFormat  = "YAWL_LOG_FORMAT"
	EnvProcRoot   = "YAWL_NSENTER_PROC_ROOT"
	EnvCgroupRoot = "YAWL_NSENTER_CGROUP_ROOT"
	EnvRetries    = "YAWL_NSENTER_IO_RETRIES"
	EnvBackoff    = "YAWL_NSENTER_IO_BACKOFF"
)

// LoadConfig loads configuration from multiple sources in order of precedence:
// 1. Environment variables (highest precedence)
// 2. Configuration file
// 3. Default values (lowest precedence)
func LoadConfig() (*Config, string, error) {
	config := DefaultConfig

	path, err := loadFromFile(&config)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config file: %w", err)
	}

	if e := loadFromEnv(&config); e != nil {
		return nil, "", fmt.Errorf("failed to load environment variables: %w", e)
	}

	if e := config.Validate(); e != nil {
		return nil, "", fmt.Errorf("configuration validation failed: %w", e)
	}

	return &config, path, nil
}

// LoadFromFile loads an explicit configuration file, still applying
// environment overrides on top of it.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig

	if err := readYAML(path, &config); err != nil {
		return nil, err
	}

	if err := loadFromEnv(&config); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func loadFromFile(config *Config) (string, error) {
	configPaths := []string{
		os.Getenv(EnvConfigPath), // Custom path from environment
		"./nsenter.yaml",         // Current directory
		"/etc/yawl/nsenter.yaml", // System-wide
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		if err := readYAML(path, config); err != nil {
			return "", err
		}

		return path, nil
	}

	return "built-in defaults (no config file found)", nil
}

func readYAML(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func loadFromEnv(config *Config) error {
	if val := os.Getenv(EnvLogLevel); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv(EnvLogFormat); val != "" {
		config.Logging.Format = val
	}

	if val := os.Getenv(EnvProcRoot); val != "" {
		config.Paths.ProcRoot = val
	}
	if val := os.Getenv(EnvCgroupRoot); val != "" {
		config.Paths.CgroupRoot = val
	}

	if val := os.Getenv(EnvRetries); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRetries, err)
		}
		config.IO.RetryAttempts = n
	}
	if val := os.Getenv(EnvBackoff); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvBackoff, err)
		}
		config.IO.RetryBackoff = d
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"DEBUG": true, "INFO": true, "WARN": true, "WARNING": true, "ERROR": true,
	}
	if !validLevels[strings.ToUpper(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	for name, p := range map[string]string{
		"procRoot":   c.Paths.ProcRoot,
		"cgroupRoot": c.Paths.CgroupRoot,
		"capLastCap": c.Paths.CapLastCap,
	} {
		if p == "" || !filepath.IsAbs(p) {
			return fmt.Errorf("paths.%s must be an absolute path, got %q", name, p)
		}
	}

	if c.IO.RetryAttempts < 1 {
		return fmt.Errorf("io.retryAttempts must be at least 1, got %d", c.IO.RetryAttempts)
	}
	if c.IO.RetryBackoff < 0 {
		return fmt.Errorf("io.retryBackoff must not be negative, got %s", c.IO.RetryBackoff)
	}

	return nil
}

func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}
