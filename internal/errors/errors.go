// Package errors provides centralized error definitions and error handling
// utilities for the artbatch codebase. It defines sentinel errors for each
// failure class in the task pipeline, typed errors that carry context, and
// classification helpers used by the retry engine.
//
// # Error Types
//
// Typed errors carry context from specific subsystems:
//   - ParseError: the task document could not be read or parsed (fatal to a run)
//   - ProviderError: a backend failed during the task lifecycle (per-task)
//   - OrganizerError: the output store rejected an operation (per-task)
//   - TimeoutError: a bounded wait expired (per-task, retryable)
//
// # Usage
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrUnsupportedMode) { ... }
//
//	var provErr *errors.ProviderError
//	if errors.As(err, &provErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Provider-related sentinel errors
var (
	// ErrUnknownBackend indicates the requested backend has no registered provider.
	ErrUnknownBackend = New("unknown backend")
	// ErrUnsupportedMode indicates the backend cannot produce the requested artifact kind.
	ErrUnsupportedMode = New("unsupported generation mode")
	// ErrSubmissionFailed indicates the prompt could not be delivered to the backend.
	ErrSubmissionFailed = New("prompt submission failed")
	// ErrCompletionTimeout indicates generation did not complete within the configured timeout.
	ErrCompletionTimeout = New("generation did not complete in time")
	// ErrRetrievalFailed indicates the generated artifact could not be retrieved.
	ErrRetrievalFailed = New("artifact retrieval failed")
	// ErrProviderClosed indicates an operation was attempted on a closed provider session.
	ErrProviderClosed = New("provider session closed")
)

// Store-related sentinel errors
var (
	// ErrSourceNotFound indicates the staged source file vanished before organization.
	ErrSourceNotFound = New("source file not found")
	// ErrNoDownload indicates no completed download appeared in staging.
	ErrNoDownload = New("no completed download found")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// ParseError indicates the task document could not be read or parsed.
// It is fatal to the whole run: no partial task list is returned.
type ParseError struct {
	Path  string
	cause error
}

// NewParseError creates a ParseError for the given document path.
func NewParseError(path string, cause error) *ParseError {
	return &ParseError{Path: path, cause: cause}
}

func (e *ParseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("parse error [doc=%s]: %v", e.Path, e.cause)
	}
	return fmt.Sprintf("parse error [doc=%s]", e.Path)
}

func (e *ParseError) Unwrap() error { return e.cause }

// ProviderError represents a failure while driving a backend through the
// task lifecycle. Stage records how far the lifecycle progressed before the
// failure.
type ProviderError struct {
	Backend string
	Stage   string
	message string
	cause   error
}

// NewProviderError creates a ProviderError for the given backend.
func NewProviderError(backend, message string, cause error) *ProviderError {
	return &ProviderError{Backend: backend, message: message, cause: cause}
}

// WithStage records the lifecycle stage at which the failure occurred.
func (e *ProviderError) WithStage(stage string) *ProviderError {
	e.Stage = stage
	return e
}

func (e *ProviderError) Error() string {
	var parts []string
	if e.Backend != "" {
		parts = append(parts, fmt.Sprintf("backend=%s", e.Backend))
	}
	if e.Stage != "" {
		parts = append(parts, fmt.Sprintf("stage=%s", e.Stage))
	}

	prefix := "provider error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("provider error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

func (e *ProviderError) Unwrap() error { return e.cause }

// Is reports whether this error matches the target.
func (e *ProviderError) Is(target error) bool {
	if _, ok := target.(*ProviderError); ok {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// OrganizerError represents a failure placing an artifact into the store.
type OrganizerError struct {
	Key     string
	message string
	cause   error
}

// NewOrganizerError creates an OrganizerError for the given artifact key.
func NewOrganizerError(key, message string, cause error) *OrganizerError {
	return &OrganizerError{Key: key, message: message, cause: cause}
}

func (e *OrganizerError) Error() string {
	prefix := "organizer error"
	if e.Key != "" {
		prefix = fmt.Sprintf("organizer error [artifact=%s]", e.Key)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

func (e *OrganizerError) Unwrap() error { return e.cause }

// Is reports whether this error matches the target.
func (e *OrganizerError) Is(target error) bool {
	if _, ok := target.(*OrganizerError); ok {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// TimeoutError represents a bounded wait that expired.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for generation", 5*time.Minute)
//	fmt.Println(err) // "timeout error: waiting for generation (timeout: 5m0s)"
type TimeoutError struct {
	Operation string
	Duration  time.Duration
	cause     error
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration}
}

// WithCause attaches the last underlying error observed before the timeout.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

func (e *TimeoutError) Unwrap() error { return e.cause }

// Is reports whether this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// IsRetryable returns true if the error represents a transient condition that
// may succeed on a fresh attempt. All per-task lifecycle failures are
// retryable; document parse failures and unknown backends are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var parseErr *ParseError
	if As(err, &parseErr) {
		return false
	}
	if Is(err, ErrUnknownBackend) || Is(err, ErrUnsupportedMode) {
		// A backend will not grow a capability between attempts.
		return false
	}
	if Is(err, ErrProviderClosed) || Is(err, ErrInvalidInput) {
		return false
	}

	return true
}

// IsFatal returns true if the error must abort the whole run rather than a
// single task: unreadable documents and setup failures.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var parseErr *ParseError
	return As(err, &parseErr)
}

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to process task")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
