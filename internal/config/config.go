// ABOUTME: Configuration loading and parsing for ovid-master and ovid-tools
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable consulted when no -config flag is given.
const EnvConfigPath = "OVID_MASTER_CONFIG"

// Crash policies accepted in agents.crash_policy.
const (
	CrashPolicyAuto    = "auto"
	CrashPolicySignal  = "signal"
	CrashPolicyMessage = "message"
)

// Config represents the complete ovid-master configuration
type Config struct {
	Agents   AgentsConfig   `yaml:"agents" toml:"agents"`
	Timing   TimingConfig   `yaml:"timing" toml:"timing"`
	Cleanup  CleanupConfig  `yaml:"cleanup" toml:"cleanup"`
	Shutdown ShutdownConfig `yaml:"shutdown" toml:"shutdown"`
	Lock     LockConfig     `yaml:"lock" toml:"lock"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Grading  GradingConfig  `yaml:"grading" toml:"grading"`
}

// AgentsConfig describes how agent processes are spawned and reached
type AgentsConfig struct {
	Binary      string `yaml:"binary" toml:"binary"`             // spawned as <binary> <id> <host> <port>
	ConnectHost string `yaml:"connect_host" toml:"connect_host"` // empty means use the host from the start command
	CrashPolicy string `yaml:"crash_policy" toml:"crash_policy"` // auto, signal, message

	WriteTimeout    time.Duration `yaml:"-" toml:"-"`
	WriteTimeoutRaw string        `yaml:"write_timeout" toml:"write_timeout"`
}

// TimingConfig holds the fixed pauses and deadlines of a run
type TimingConfig struct {
	Settle       time.Duration `yaml:"-" toml:"-"`
	Watchdog     time.Duration `yaml:"-" toml:"-"`
	CrashPause   time.Duration `yaml:"-" toml:"-"`
	CleanupPause time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	SettleRaw       string `yaml:"settle" toml:"settle"`
	WatchdogRaw     string `yaml:"watchdog" toml:"watchdog"`
	CrashPauseRaw   string `yaml:"crash_pause" toml:"crash_pause"`
	CleanupPauseRaw string `yaml:"cleanup_pause" toml:"cleanup_pause"`
}

// CleanupConfig holds the best-effort command run at shutdown
type CleanupConfig struct {
	Command []string `yaml:"command" toml:"command"`
}

// ShutdownConfig holds exit behaviour
type ShutdownConfig struct {
	// ForcedExitCode is returned when the run ends through forced shutdown
	// (watchdog, fatal command, signal). Zero keeps forced and clean exits
	// indistinguishable to callers.
	ForcedExitCode int `yaml:"forced_exit_code" toml:"forced_exit_code"`
}

// LockConfig holds the run lock location
type LockConfig struct {
	Path string `yaml:"path" toml:"path"` // empty disables locking
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// GradingConfig holds settings for ovid-tools grade
type GradingConfig struct {
	Master    []string `yaml:"master" toml:"master"`
	Build     []string `yaml:"build" toml:"build"`
	TestsDir  string   `yaml:"tests_dir" toml:"tests_dir"`
	OutputDir string   `yaml:"output_dir" toml:"output_dir"`
	Database  string   `yaml:"database" toml:"database"`

	Pause    time.Duration `yaml:"-" toml:"-"`
	PauseRaw string        `yaml:"pause" toml:"pause"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Agents: AgentsConfig{
			Binary:       "./process",
			ConnectHost:  "localhost",
			CrashPolicy:  CrashPolicyAuto,
			WriteTimeout: 5 * time.Second,
		},
		Timing: TimingConfig{
			Settle:       3 * time.Second,
			Watchdog:     120 * time.Second,
			CrashPause:   time.Second,
			CleanupPause: 100 * time.Millisecond,
		},
		Cleanup: CleanupConfig{
			Command: []string{"./stopall"},
		},
		Lock: LockConfig{
			Path: ".ovid-master.lock",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Grading: GradingConfig{
			Master:    []string{"./ovid-master"},
			Build:     []string{"./build"},
			TestsDir:  "tests",
			OutputDir: "test_output",
			Database:  filepath.Join(".ovid", "history.db"),
			Pause:     2 * time.Second,
		},
	}
}

// ResolvePath picks the config file to load.
// Priority: explicit flag value > OVID_MASTER_CONFIG > none (defaults).
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvConfigPath)
}

// LoadOrDefault loads path, or returns Default() when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Fields absent from the file keep their Default() values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Agents.Binary == "" {
		return fmt.Errorf("agents.binary is required")
	}

	switch c.Agents.CrashPolicy {
	case CrashPolicyAuto, CrashPolicySignal, CrashPolicyMessage:
	default:
		return fmt.Errorf("agents.crash_policy must be one of auto, signal, message (got %q)", c.Agents.CrashPolicy)
	}

	if c.Timing.Watchdog <= 0 {
		return fmt.Errorf("timing.watchdog must be positive")
	}

	durations := map[string]time.Duration{
		"agents.write_timeout": c.Agents.WriteTimeout,
		"timing.settle":        c.Timing.Settle,
		"timing.crash_pause":   c.Timing.CrashPause,
		"timing.cleanup_pause": c.Timing.CleanupPause,
		"grading.pause":        c.Grading.Pause,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	if c.Shutdown.ForcedExitCode < 0 || c.Shutdown.ForcedExitCode > 255 {
		return fmt.Errorf("shutdown.forced_exit_code must be in [0, 255]")
	}

	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"agents.write_timeout", cfg.Agents.WriteTimeoutRaw, &cfg.Agents.WriteTimeout},
		{"timing.settle", cfg.Timing.SettleRaw, &cfg.Timing.Settle},
		{"timing.watchdog", cfg.Timing.WatchdogRaw, &cfg.Timing.Watchdog},
		{"timing.crash_pause", cfg.Timing.CrashPauseRaw, &cfg.Timing.CrashPause},
		{"timing.cleanup_pause", cfg.Timing.CleanupPauseRaw, &cfg.Timing.CleanupPause},
		{"grading.pause", cfg.Grading.PauseRaw, &cfg.Grading.Pause},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
