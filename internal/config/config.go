package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// warnf reports configuration problems that fall back to defaults. It is a
// variable so tests can capture the warning.
var warnf = func(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// Config represents the complete artbatch configuration
type Config struct {
	Paths   PathsConfig   `mapstructure:"paths"`
	Browser BrowserConfig `mapstructure:"browser"`
	Run     RunConfig     `mapstructure:"run"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PathsConfig controls where artbatch stages and stores files
type PathsConfig struct {
	// StagingDir is the transient directory where backends deposit raw
	// downloads before organization. Cleared before each task.
	StagingDir string `mapstructure:"staging_dir"`
	// ArtifactsDir is the final store, keyed by (output name, extension).
	ArtifactsDir string `mapstructure:"artifacts_dir"`
}

// BrowserConfig controls the browser sessions backends run in
type BrowserConfig struct {
	// Headless runs browser sessions without a visible window
	Headless bool `mapstructure:"headless"`
	// WebDriverURL is the WebDriver endpoint sessions are opened against
	// (default: a local chromedriver)
	WebDriverURL string `mapstructure:"webdriver_url"`
	// Profiles holds per-backend session settings keyed by backend name
	Profiles map[string]BackendProfile `mapstructure:"profiles"`
}

// BackendProfile holds per-backend browser session settings
type BackendProfile struct {
	// URL overrides the backend's default chat URL
	URL string `mapstructure:"url"`
	// ProfileDir is the browser profile directory to reuse an existing login
	ProfileDir string `mapstructure:"profile_dir"`
	// Args are extra arguments passed to the browser session
	Args []string `mapstructure:"args"`
}

// RunConfig controls batch execution behavior
type RunConfig struct {
	// TimeoutSeconds is the per-task generation timeout (default: 300)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// RetryAttempts is the number of attempts per task (default: 3)
	RetryAttempts int `mapstructure:"retry_attempts"`
	// RetryBackoffSeconds is the pause between failed attempts (default: 10)
	RetryBackoffSeconds int `mapstructure:"retry_backoff_seconds"`
	// TaskDelaySeconds is the pause between tasks (default: 5)
	TaskDelaySeconds int `mapstructure:"task_delay_seconds"`
	// SkipExisting skips tasks whose output already exists in the store (default: true)
	SkipExisting bool `mapstructure:"skip_existing"`
	// DefaultBackend is the backend assumed for minimal task entries (default: "gemini")
	DefaultBackend string `mapstructure:"default_backend"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// File is an optional log file path; empty logs to stderr
	File string `mapstructure:"file"`
}

// Timeout returns the per-task generation timeout as a time.Duration
func (r *RunConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// RetryBackoff returns the pause between failed attempts as a time.Duration
func (r *RunConfig) RetryBackoff() time.Duration {
	return time.Duration(r.RetryBackoffSeconds) * time.Second
}

// TaskDelay returns the pause between tasks as a time.Duration
func (r *RunConfig) TaskDelay() time.Duration {
	return time.Duration(r.TaskDelaySeconds) * time.Second
}

// Profile returns the browser profile for a backend, or a zero profile if
// none is configured.
func (b *BrowserConfig) Profile(backend string) BackendProfile {
	if b.Profiles == nil {
		return BackendProfile{}
	}
	return b.Profiles[strings.ToLower(backend)]
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			StagingDir:   "./staging",
			ArtifactsDir: "./artifacts",
		},
		Browser: BrowserConfig{
			Headless:     false,
			WebDriverURL: "http://127.0.0.1:9515",
			Profiles:     map[string]BackendProfile{},
		},
		Run: RunConfig{
			TimeoutSeconds:      300,
			RetryAttempts:       3,
			RetryBackoffSeconds: 10,
			TaskDelaySeconds:    5,
			SkipExisting:        true,
			DefaultBackend:      "gemini",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			File:    "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Paths defaults
	viper.SetDefault("paths.staging_dir", defaults.Paths.StagingDir)
	viper.SetDefault("paths.artifacts_dir", defaults.Paths.ArtifactsDir)

	// Browser defaults
	viper.SetDefault("browser.headless", defaults.Browser.Headless)
	viper.SetDefault("browser.webdriver_url", defaults.Browser.WebDriverURL)
	viper.SetDefault("browser.profiles", defaults.Browser.Profiles)

	// Run defaults
	viper.SetDefault("run.timeout_seconds", defaults.Run.TimeoutSeconds)
	viper.SetDefault("run.retry_attempts", defaults.Run.RetryAttempts)
	viper.SetDefault("run.retry_backoff_seconds", defaults.Run.RetryBackoffSeconds)
	viper.SetDefault("run.task_delay_seconds", defaults.Run.TaskDelaySeconds)
	viper.SetDefault("run.skip_existing", defaults.Run.SkipExisting)
	viper.SetDefault("run.default_backend", defaults.Run.DefaultBackend)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function).
// A malformed config is non-fatal: it warns and falls back to defaults.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		warnf("Warning: invalid configuration, using defaults: %v\n", err)
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "artbatch")
	}
	// Fall back to ~/.config/artbatch
	home, err := os.UserHomeDir()
	if err != nil {
		return ".artbatch"
	}
	return filepath.Join(home, ".config", "artbatch")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
