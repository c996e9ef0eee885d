package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"artbatch/internal/errors"
	"artbatch/internal/logging"
	"artbatch/internal/store"
	"artbatch/internal/task"
	"artbatch/internal/util"
)

// profile is the per-backend description of one chat surface: where it
// lives, what it can produce, and which DOM selectors drive it. All three
// built-in backends share the session logic below and differ only in their
// profiles.
type profile struct {
	name           string
	url            string
	kinds          map[task.Kind]bool
	imageExtension string

	// Fallback selector lists, tried in order. Chat UIs rename their DOM
	// often enough that a single selector is a liability.
	inputSelectors    []string
	sendSelectors     []string
	busySelectors     []string
	responseSelectors []string
	imageSelectors    []string
	downloadSelectors []string

	// activateMode performs backend-specific UI preparation for a kind,
	// like opening a tools menu. Nil when typing the prompt is enough.
	activateMode func(ctx context.Context, d Driver, kind task.Kind) error

	pollInterval    time.Duration
	retrieveTimeout time.Duration
}

// session drives one backend through the task lifecycle. It is not safe for
// concurrent use; the orchestrator runs tasks one at a time.
type session struct {
	prof   profile
	driver Driver
	store  *store.Store
	log    *logging.Logger

	life   lifecycle
	kind   task.Kind
	closed bool
}

// open connects a browser session for the profile and navigates to the
// backend's chat surface.
func open(ctx context.Context, prof profile, opts Options) (Provider, error) {
	if opts.NewDriver == nil {
		return nil, errors.NewProviderError(prof.name, "no browser driver factory configured", nil)
	}
	if opts.Store == nil {
		return nil, errors.NewProviderError(prof.name, "no staging store configured", nil)
	}

	log := opts.Logger
	if log == nil {
		log = logging.NopLogger()
	}
	log = log.WithBackend(prof.name)

	driver, err := opts.NewDriver(ctx, DriverOptions{
		DownloadDir: opts.Store.StagingDir(),
		Headless:    opts.Headless,
		ProfileDir:  opts.Profile.ProfileDir,
		Args:        opts.Profile.Args,
	})
	if err != nil {
		return nil, errors.NewProviderError(prof.name, "opening browser session", err).WithStage("connect")
	}

	url := opts.Profile.URL
	if url == "" {
		url = prof.url
	}
	if err := driver.Navigate(ctx, url); err != nil {
		driver.Close()
		return nil, errors.NewProviderError(prof.name, fmt.Sprintf("navigating to %s", url), err).WithStage("connect")
	}

	log.Info("provider session opened", "url", url, "headless", opts.Headless)
	return &session{prof: prof, driver: driver, store: opts.Store, log: log}, nil
}

func (s *session) Name() string { return s.prof.name }

// SelectMode begins a fresh task lifecycle. The capability check happens
// here, before any prompt is spent on a backend that cannot deliver.
func (s *session) SelectMode(ctx context.Context, kind task.Kind) error {
	if s.closed {
		return errors.ErrProviderClosed
	}

	s.life.reset()

	if !s.prof.kinds[kind] {
		s.life.advance(StageFailed)
		return errors.NewProviderError(s.prof.name,
			fmt.Sprintf("cannot produce %s artifacts", kind),
			errors.ErrUnsupportedMode).WithStage(string(StageModeSelected))
	}

	if s.prof.activateMode != nil {
		if err := s.prof.activateMode(ctx, s.driver, kind); err != nil {
			return s.fail(StageModeSelected, "activating generation mode", err)
		}
	}

	s.kind = kind
	if err := s.life.advance(StageModeSelected); err != nil {
		return err
	}
	s.log.Debug("mode selected", "kind", string(kind))
	return nil
}

// Submit types the prompt into the chat input and sends it.
func (s *session) Submit(ctx context.Context, prompt string) error {
	if s.closed {
		return errors.ErrProviderClosed
	}
	if err := s.life.check(StageSubmitted); err != nil {
		return err
	}

	input, selector, err := firstMatch(ctx, s.driver, s.prof.inputSelectors)
	if err != nil {
		return s.fail(StageSubmitted, "locating prompt input", errors.Join(errors.ErrSubmissionFailed, err))
	}

	if err := input.Click(ctx); err != nil {
		return s.fail(StageSubmitted, "focusing prompt input", errors.Join(errors.ErrSubmissionFailed, err))
	}
	if err := input.Type(ctx, prompt); err != nil {
		return s.fail(StageSubmitted, "typing prompt", errors.Join(errors.ErrSubmissionFailed, err))
	}

	if send, _, err := firstMatch(ctx, s.driver, s.prof.sendSelectors); err == nil {
		if err := send.Click(ctx); err != nil {
			return s.fail(StageSubmitted, "clicking send", errors.Join(errors.ErrSubmissionFailed, err))
		}
	} else if err := input.PressEnter(ctx); err != nil {
		return s.fail(StageSubmitted, "sending prompt", errors.Join(errors.ErrSubmissionFailed, err))
	}

	if err := s.life.advance(StageSubmitted); err != nil {
		return err
	}
	s.log.Info("prompt submitted", "input", selector, "prompt", util.Truncate(prompt, 80))
	return nil
}

// AwaitCompletion polls until the backend stops reporting generation
// activity and the expected output is present.
func (s *session) AwaitCompletion(ctx context.Context, timeout time.Duration) error {
	if s.closed {
		return errors.ErrProviderClosed
	}
	if err := s.life.check(StageCompleted); err != nil {
		return err
	}

	var prevText string
	err := pollUntil(ctx, fmt.Sprintf("%s generation", s.prof.name), timeout, s.prof.pollInterval,
		func(ctx context.Context) (bool, error) {
			if s.isBusy(ctx) {
				return false, nil
			}
			if s.kind == task.KindImage {
				return s.hasGeneratedImage(ctx)
			}

			// Text output counts as complete once it is non-empty and has
			// stopped changing between polls.
			text, err := s.lastResponseText(ctx)
			if err != nil {
				return false, err
			}
			done := text != "" && text == prevText
			prevText = text
			return done, nil
		})
	if err != nil {
		return s.fail(StageCompleted, "waiting for generation", errors.Join(errors.ErrCompletionTimeout, err))
	}

	if err := s.life.advance(StageCompleted); err != nil {
		return err
	}
	s.log.Info("generation complete")
	return nil
}

// RetrieveOutput collects the generated artifact into the staging area and
// returns the staged path. On failure it captures a page screenshot for
// diagnosis without masking the retrieval error.
func (s *session) RetrieveOutput(ctx context.Context, outputName string) (string, error) {
	if s.closed {
		return "", errors.ErrProviderClosed
	}
	if err := s.life.check(StageRetrieved); err != nil {
		return "", err
	}

	var path string
	var err error
	if s.kind == task.KindImage {
		path, err = s.retrieveImage(ctx)
	} else {
		path, err = s.retrieveText(ctx, outputName)
	}
	if err != nil {
		s.snapshot(ctx, outputName)
		return "", s.fail(StageRetrieved, "retrieving output", errors.Join(errors.ErrRetrievalFailed, err))
	}

	if err := s.life.advance(StageRetrieved); err != nil {
		return "", err
	}
	s.log.Info("output retrieved", "path", path)
	return path, nil
}

// Close tears down the browser session. Calling Close again is a no-op.
func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Info("provider session closed")
	if err := s.driver.Close(); err != nil {
		return errors.NewProviderError(s.prof.name, "closing browser session", err)
	}
	return nil
}

// retrieveImage clicks through the backend's download affordance and waits
// for the file to land in staging.
func (s *session) retrieveImage(ctx context.Context) (string, error) {
	timeout := s.prof.retrieveTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	// Some surfaces only expose the download button after the image is
	// focused, so click the newest generated image first.
	if img, err := s.newestImage(ctx); err == nil && img != nil {
		img.Click(ctx)
	}

	download, _, err := firstMatch(ctx, s.driver, s.prof.downloadSelectors)
	if err != nil {
		return "", fmt.Errorf("locating download control: %w", err)
	}
	if err := download.Click(ctx); err != nil {
		return "", fmt.Errorf("clicking download control: %w", err)
	}

	return s.store.WaitForDownload(ctx, s.prof.imageExtension, timeout)
}

// retrieveText extracts the final response text and writes it to staging.
func (s *session) retrieveText(ctx context.Context, outputName string) (string, error) {
	text, err := s.lastResponseText(ctx)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if text == "" {
		return "", errors.New("response is empty")
	}

	path := filepath.Join(s.store.StagingDir(), outputName+".txt")
	if err := os.WriteFile(path, []byte(text+"\n"), 0644); err != nil {
		return "", fmt.Errorf("staging response text: %w", err)
	}
	return path, nil
}

// isBusy reports whether any busy indicator is currently visible.
func (s *session) isBusy(ctx context.Context) bool {
	for _, sel := range s.prof.busySelectors {
		elements, err := s.driver.FindAll(ctx, sel)
		if err != nil {
			continue
		}
		for _, el := range elements {
			if el.Visible(ctx) {
				return true
			}
		}
	}
	return false
}

// hasGeneratedImage reports whether a generated image is visible on the
// page. Thumbnails and avatars carry relative or icon URLs; generated
// content arrives as blob, data or absolute URLs.
func (s *session) hasGeneratedImage(ctx context.Context) (bool, error) {
	img, err := s.newestImage(ctx)
	if err != nil {
		return false, err
	}
	return img != nil, nil
}

func (s *session) newestImage(ctx context.Context) (Element, error) {
	var newest Element
	var lastErr error
	for _, sel := range s.prof.imageSelectors {
		elements, err := s.driver.FindAll(ctx, sel)
		if err != nil {
			lastErr = err
			continue
		}
		for _, el := range elements {
			if !el.Visible(ctx) {
				continue
			}
			src, err := el.Attr(ctx, "src")
			if err != nil || !isGeneratedSrc(src) {
				continue
			}
			newest = el
		}
	}
	if newest == nil {
		return nil, lastErr
	}
	return newest, nil
}

func isGeneratedSrc(src string) bool {
	return strings.HasPrefix(src, "blob:") ||
		strings.HasPrefix(src, "data:image") ||
		strings.HasPrefix(src, "https://")
}

// lastResponseText returns the text of the most recent response element.
func (s *session) lastResponseText(ctx context.Context) (string, error) {
	var lastErr error
	for _, sel := range s.prof.responseSelectors {
		elements, err := s.driver.FindAll(ctx, sel)
		if err != nil {
			lastErr = err
			continue
		}
		if len(elements) == 0 {
			continue
		}
		text, err := elements[len(elements)-1].Text(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		return strings.TrimSpace(text), nil
	}
	return "", lastErr
}

// snapshot captures a page screenshot into staging for post-mortem
// inspection. Failures are logged and swallowed so they never mask the
// error that triggered the capture.
func (s *session) snapshot(ctx context.Context, outputName string) {
	path := filepath.Join(s.store.StagingDir(), fmt.Sprintf("error_%s_%s.png", s.prof.name, outputName))
	if err := s.driver.Screenshot(ctx, path); err != nil {
		s.log.Warn("diagnostic screenshot failed", "error", err)
		return
	}
	s.log.Info("diagnostic screenshot captured", "path", path)
}

// fail marks the lifecycle failed and wraps the error with backend and
// stage context.
func (s *session) fail(stage Stage, message string, cause error) error {
	s.life.advance(StageFailed)
	return errors.NewProviderError(s.prof.name, message, cause).WithStage(string(stage))
}
