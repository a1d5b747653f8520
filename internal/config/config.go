// Package config loads settings and prepares the application directory.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AppName names the per-user application directory.
const AppName = "serendip-sisu-whitelister"

// Config holds all configuration values.
type Config struct {
	// Storage
	Root      string `yaml:"root" validate:"required"`
	Extension string `yaml:"extension" validate:"required,startswith=."`

	// Ingestion
	IDColumn   string `yaml:"id_column" validate:"required"`
	DateColumn string `yaml:"date_column" validate:"required,nefield=IDColumn"`
	DateLayout string `yaml:"date_layout" validate:"required"`

	// Display
	PollInterval time.Duration `yaml:"poll_interval" validate:"min=1ms"`
	LogLines     int           `yaml:"log_lines" validate:"gte=0"`

	// Logging
	LogLevelName string     `yaml:"log_level" validate:"omitempty,oneof=DEBUG INFO WARN WARNING ERROR debug info warn warning error"`
	LogLevel     slog.Level `yaml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Root:         defaultRoot(),
		Extension:    ".csv",
		IDColumn:     "STUDENT NUMBER",
		DateColumn:   "ENROLMENT DATE",
		DateLayout:   "2.1.2006 15.4.5",
		PollInterval: 16 * time.Millisecond,
		LogLines:     500,
		LogLevelName: "INFO",
		LogLevel:     slog.LevelInfo,
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by WHITELISTER_CONFIG, and environment variables, in that order.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("WHITELISTER_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.Root = getEnv("WHITELISTER_ROOT", cfg.Root)
	cfg.Extension = getEnv("WHITELISTER_EXTENSION", cfg.Extension)
	cfg.IDColumn = getEnv("WHITELISTER_ID_COLUMN", cfg.IDColumn)
	cfg.DateColumn = getEnv("WHITELISTER_DATE_COLUMN", cfg.DateColumn)
	cfg.DateLayout = getEnv("WHITELISTER_DATE_LAYOUT", cfg.DateLayout)
	cfg.LogLevelName = getEnv("WHITELISTER_LOG_LEVEL", cfg.LogLevelName)

	if v := os.Getenv("WHITELISTER_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse WHITELISTER_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if v := os.Getenv("WHITELISTER_LOG_LINES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse WHITELISTER_LOG_LINES: %w", err)
		}
		cfg.LogLines = n
	}

	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile overlays values present in a YAML file onto cfg.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DataDir is where input files are deposited.
func (c Config) DataDir() string {
	return filepath.Join(c.Root, "data")
}

// LogsDir holds the per-run log files.
func (c Config) LogsDir() string {
	return filepath.Join(c.Root, "logs")
}

// Bootstrap creates the root directory and its data and logs subdirectories.
func Bootstrap(c Config) error {
	for _, dir := range []string{c.Root, c.DataDir(), c.LogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func defaultRoot() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(base, AppName)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
