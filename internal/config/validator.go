package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "run.retry_attempts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validateRun()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validatePaths validates the PathsConfig
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	if c.Paths.StagingDir == "" {
		errors = append(errors, ValidationError{
			Field:   "paths.staging_dir",
			Value:   c.Paths.StagingDir,
			Message: "must not be empty",
		})
	}
	if c.Paths.ArtifactsDir == "" {
		errors = append(errors, ValidationError{
			Field:   "paths.artifacts_dir",
			Value:   c.Paths.ArtifactsDir,
			Message: "must not be empty",
		})
	}
	if c.Paths.StagingDir != "" && c.Paths.StagingDir == c.Paths.ArtifactsDir {
		errors = append(errors, ValidationError{
			Field:   "paths.staging_dir",
			Value:   c.Paths.StagingDir,
			Message: "must differ from paths.artifacts_dir (staging is cleared before each task)",
		})
	}

	return errors
}

// validateRun validates the RunConfig
func (c *Config) validateRun() []ValidationError {
	var errors []ValidationError

	if c.Run.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "run.timeout_seconds",
			Value:   c.Run.TimeoutSeconds,
			Message: "must be positive",
		})
	}
	if c.Run.RetryAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "run.retry_attempts",
			Value:   c.Run.RetryAttempts,
			Message: "must be at least 1",
		})
	}
	if c.Run.RetryBackoffSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "run.retry_backoff_seconds",
			Value:   c.Run.RetryBackoffSeconds,
			Message: "must be non-negative",
		})
	}
	if c.Run.TaskDelaySeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "run.task_delay_seconds",
			Value:   c.Run.TaskDelaySeconds,
			Message: "must be non-negative",
		})
	}
	if c.Run.DefaultBackend == "" {
		errors = append(errors, ValidationError{
			Field:   "run.default_backend",
			Value:   c.Run.DefaultBackend,
			Message: "must not be empty",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
