// Package provider defines the capability interface every remote-automation
// backend implements, and the backend profiles for the supported AI chat
// services. The orchestrator drives backends exclusively through this
// interface; all browser/DOM mechanics live behind the Driver boundary.
package provider

import (
	"context"
	"strings"
	"time"

	"artbatch/internal/config"
	"artbatch/internal/errors"
	"artbatch/internal/logging"
	"artbatch/internal/store"
	"artbatch/internal/task"
)

// Backend names with built-in profiles.
const (
	BackendGemini  = "gemini"
	BackendChatGPT = "chatgpt"
	BackendClaude  = "claude"
)

// Provider is a live, stateful session bound to one backend identity. A
// single task drives it through SelectMode, Submit, AwaitCompletion and
// RetrieveOutput in order; a retry restarts the sequence from SelectMode.
type Provider interface {
	// Name returns the backend identity this session is bound to.
	Name() string

	// SelectMode prepares the backend for the requested artifact kind.
	// It fails with ErrUnsupportedMode before any prompt is spent if the
	// backend cannot produce that kind.
	SelectMode(ctx context.Context, kind task.Kind) error

	// Submit delivers the prompt. It fails with ErrSubmissionFailed when no
	// input surface can be located or interaction is rejected.
	Submit(ctx context.Context, prompt string) error

	// AwaitCompletion blocks via bounded polling until generation is
	// detected complete, failing with a retryable timeout error after the
	// given duration. Transient detection errors are tolerated by retrying
	// the poll.
	AwaitCompletion(ctx context.Context, timeout time.Duration) error

	// RetrieveOutput downloads or extracts the generated artifact and
	// returns the staged file path. On failure it captures best-effort
	// diagnostic state without masking the original error.
	RetrieveOutput(ctx context.Context, outputName string) (string, error)

	// Close tears down the underlying browser session. It is safe to call
	// once per handle; further lifecycle calls fail with ErrProviderClosed.
	Close() error
}

// Options carries everything a backend needs to open a session.
type Options struct {
	Headless  bool
	Profile   config.BackendProfile
	Store     *store.Store
	Logger    *logging.Logger
	NewDriver DriverFactory
}

// Factory opens a connected provider session for a backend identity.
type Factory func(ctx context.Context, backend string, opts Options) (Provider, error)

// New opens a provider session for the named backend. Backend lookup is
// case-insensitive; unknown backends fail with ErrUnknownBackend.
func New(ctx context.Context, backend string, opts Options) (Provider, error) {
	var prof profile
	switch strings.ToLower(backend) {
	case BackendGemini:
		prof = geminiProfile()
	case BackendChatGPT:
		prof = chatgptProfile()
	case BackendClaude:
		prof = claudeProfile()
	default:
		return nil, errors.Wrapf(errors.ErrUnknownBackend, "backend %q", backend)
	}

	return open(ctx, prof, opts)
}
