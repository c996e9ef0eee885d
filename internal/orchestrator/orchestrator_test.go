package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"artbatch/internal/config"
	"artbatch/internal/errors"
	"artbatch/internal/provider"
	"artbatch/internal/store"
	"artbatch/internal/task"
)

type fakeProvider struct {
	backend string
	st      *store.Store

	// Scripted errors, consumed one per call; nil means success.
	selectErrs   []error
	submitErrs   []error
	awaitErrs    []error
	retrieveErrs []error
	closeErr     error

	selectCalls   int
	submitCalls   int
	awaitCalls    int
	retrieveCalls int
	closeCalls    int
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (p *fakeProvider) Name() string { return p.backend }

func (p *fakeProvider) SelectMode(ctx context.Context, kind task.Kind) error {
	p.selectCalls++
	return popErr(&p.selectErrs)
}

func (p *fakeProvider) Submit(ctx context.Context, prompt string) error {
	p.submitCalls++
	return popErr(&p.submitErrs)
}

func (p *fakeProvider) AwaitCompletion(ctx context.Context, timeout time.Duration) error {
	p.awaitCalls++
	return popErr(&p.awaitErrs)
}

func (p *fakeProvider) RetrieveOutput(ctx context.Context, outputName string) (string, error) {
	p.retrieveCalls++
	if err := popErr(&p.retrieveErrs); err != nil {
		return "", err
	}
	path := filepath.Join(p.st.StagingDir(), outputName+".out")
	if err := os.WriteFile(path, []byte("artifact"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (p *fakeProvider) Close() error {
	p.closeCalls++
	return p.closeErr
}

type fixture struct {
	orch      *Orchestrator
	store     *store.Store
	providers map[string]*fakeProvider
	opened    []string
	sleeps    []time.Duration
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()

	base := t.TempDir()
	st, err := store.New(filepath.Join(base, "staging"), filepath.Join(base, "artifacts"), nil)
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{store: st, providers: make(map[string]*fakeProvider)}
	f.orch = New(cfg, nil, st, nil)
	f.orch.newProvider = func(ctx context.Context, backend string, opts provider.Options) (provider.Provider, error) {
		f.opened = append(f.opened, backend)
		p, ok := f.providers[backend]
		if !ok {
			p = &fakeProvider{backend: backend, st: st}
			f.providers[backend] = p
		}
		return p, nil
	}
	f.orch.sleep = func(ctx context.Context, d time.Duration) {
		f.sleeps = append(f.sleeps, d)
	}
	return f
}

func testTask(name, outputName string) task.Task {
	return task.Task{
		Name:       name,
		Kind:       task.KindImage,
		Backend:    "gemini",
		OutputName: outputName,
		Extension:  "png",
		Prompt:     "a prompt",
	}
}

func TestRunHappyPath(t *testing.T) {
	f := newFixture(t, config.Default())

	summary, err := f.orch.Run(context.Background(), []task.Task{testTask("Cover Art", "cover_art")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(summary.Outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(summary.Outcomes))
	}
	out := summary.Outcomes[0]
	if out.Status != StatusSucceeded || out.Attempts != 1 {
		t.Errorf("outcome = %+v, want succeeded on attempt 1", out)
	}
	if !f.store.Exists("cover_art", "png") {
		t.Error("artifact should be in the store")
	}
	if out.FinalPath != f.store.ArtifactPath("cover_art", "png") {
		t.Errorf("FinalPath = %q", out.FinalPath)
	}
}

func TestSkipExistingNeverTouchesProvider(t *testing.T) {
	f := newFixture(t, config.Default())

	// Pre-populate the store with the task's output.
	staged := filepath.Join(f.store.StagingDir(), "seed.png")
	if err := os.WriteFile(staged, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.Organize(staged, "cover_art", "png"); err != nil {
		t.Fatal(err)
	}

	summary, err := f.orch.Run(context.Background(), []task.Task{testTask("Cover Art", "cover_art")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Outcomes[0].Status != StatusSkipped {
		t.Errorf("status = %s, want skipped", summary.Outcomes[0].Status)
	}
	if len(f.opened) != 0 {
		t.Errorf("provider sessions opened = %v, want none for a skipped task", f.opened)
	}
}

func TestRetryAccountingAndBackoff(t *testing.T) {
	cfg := config.Default()
	cfg.Run.RetryAttempts = 3
	f := newFixture(t, cfg)

	boom := errors.Wrap(errors.ErrSubmissionFailed, "input field missing")
	f.providers["gemini"] = &fakeProvider{
		backend:    "gemini",
		st:         f.store,
		submitErrs: []error{boom, boom, nil},
	}

	summary, err := f.orch.Run(context.Background(), []task.Task{testTask("Cover Art", "cover_art")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := summary.Outcomes[0]
	if out.Status != StatusSucceeded {
		t.Fatalf("status = %s (err %v), want succeeded after retries", out.Status, out.Err)
	}
	if out.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", out.Attempts)
	}

	// Two failed attempts means exactly two backoff pauses and, with a
	// single task, no inter-task delay.
	if len(f.sleeps) != 2 {
		t.Fatalf("sleeps = %v, want exactly 2 backoff pauses", f.sleeps)
	}
	for _, d := range f.sleeps {
		if d != cfg.Run.RetryBackoff() {
			t.Errorf("backoff = %v, want %v", d, cfg.Run.RetryBackoff())
		}
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	cfg := config.Default()
	cfg.Run.RetryAttempts = 2
	f := newFixture(t, cfg)

	boom := errors.Wrap(errors.ErrCompletionTimeout, "still generating")
	f.providers["gemini"] = &fakeProvider{
		backend:   "gemini",
		st:        f.store,
		awaitErrs: []error{boom, boom, boom},
	}

	summary, err := f.orch.Run(context.Background(), []task.Task{testTask("Cover Art", "cover_art")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := summary.Outcomes[0]
	if out.Status != StatusFailed || out.Attempts != 2 {
		t.Errorf("outcome = %+v, want failed after 2 attempts", out)
	}
	if !errors.Is(out.Err, errors.ErrCompletionTimeout) {
		t.Errorf("Err = %v, want completion timeout", out.Err)
	}
}

func TestRetryBudgetPerTaskInstance(t *testing.T) {
	cfg := config.Default()
	cfg.Run.RetryAttempts = 3
	f := newFixture(t, cfg)

	// Two distinct tasks that collide on the same output key. Each must get
	// its own full attempt budget rather than sharing one.
	boom := errors.Wrap(errors.ErrCompletionTimeout, "still generating")
	f.providers["gemini"] = &fakeProvider{
		backend:   "gemini",
		st:        f.store,
		awaitErrs: []error{boom, boom, boom, boom, boom, boom},
	}

	tasks := []task.Task{testTask("First", "shared"), testTask("Second", "shared")}
	summary, err := f.orch.Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for i, out := range summary.Outcomes {
		if out.Status != StatusFailed {
			t.Errorf("outcome %d status = %s, want failed", i, out.Status)
		}
		if out.Attempts != 3 {
			t.Errorf("outcome %d attempts = %d, want the full budget of 3", i, out.Attempts)
		}
	}
	if got := f.providers["gemini"].awaitCalls; got != 6 {
		t.Errorf("awaitCalls = %d, want 6 (3 attempts per task)", got)
	}
}

func TestNonRetryableFailsWithoutRetry(t *testing.T) {
	cfg := config.Default()
	cfg.Run.RetryAttempts = 3
	f := newFixture(t, cfg)

	f.providers["gemini"] = &fakeProvider{
		backend:    "gemini",
		st:         f.store,
		selectErrs: []error{errors.Wrap(errors.ErrUnsupportedMode, "no image mode")},
	}

	summary, err := f.orch.Run(context.Background(), []task.Task{testTask("Cover Art", "cover_art")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := summary.Outcomes[0]
	if out.Status != StatusFailed || out.Attempts != 1 {
		t.Errorf("outcome = %+v, want failed on first attempt with no retry", out)
	}
	if len(f.sleeps) != 0 {
		t.Errorf("sleeps = %v, want none for a non-retryable failure", f.sleeps)
	}
}

func TestSessionReusePerBackend(t *testing.T) {
	f := newFixture(t, config.Default())

	tasks := []task.Task{
		testTask("One", "one"),
		testTask("Two", "two"),
		{Name: "Three", Kind: task.KindText, Backend: "claude", OutputName: "three", Extension: "txt", Prompt: "p"},
	}

	if _, err := f.orch.Run(context.Background(), tasks); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.opened) != 2 {
		t.Errorf("sessions opened = %v, want one per distinct backend", f.opened)
	}
	if f.providers["gemini"].submitCalls != 2 {
		t.Errorf("gemini submits = %d, want 2 through the same session", f.providers["gemini"].submitCalls)
	}
}

func TestInterTaskDelaySkippedAfterLast(t *testing.T) {
	cfg := config.Default()
	f := newFixture(t, cfg)

	tasks := []task.Task{testTask("One", "one"), testTask("Two", "two")}
	if _, err := f.orch.Run(context.Background(), tasks); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.sleeps) != 1 || f.sleeps[0] != cfg.Run.TaskDelay() {
		t.Errorf("sleeps = %v, want exactly one inter-task delay of %v", f.sleeps, cfg.Run.TaskDelay())
	}
}

func TestRunCanceledReturnsPartialSummary(t *testing.T) {
	f := newFixture(t, config.Default())
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel during the first task's backend work.
	f.providers["gemini"] = &fakeProvider{backend: "gemini", st: f.store}
	f.orch.newProvider = func(c context.Context, backend string, opts provider.Options) (provider.Provider, error) {
		cancel()
		return f.providers[backend], nil
	}

	tasks := []task.Task{testTask("One", "one"), testTask("Two", "two")}
	summary, err := f.orch.Run(ctx, tasks)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(summary.Outcomes) != 1 {
		t.Errorf("partial summary has %d outcomes, want 1", len(summary.Outcomes))
	}
}

func TestCloseClosesEverySessionOnce(t *testing.T) {
	f := newFixture(t, config.Default())

	tasks := []task.Task{
		testTask("One", "one"),
		{Name: "Two", Kind: task.KindText, Backend: "claude", OutputName: "two", Extension: "txt", Prompt: "p"},
	}
	if _, err := f.orch.Run(context.Background(), tasks); err != nil {
		t.Fatal(err)
	}

	f.providers["gemini"].closeErr = errors.New("browser hung")

	err := f.orch.Close()
	if err == nil {
		t.Fatal("Close() should surface the failing session's error")
	}
	if f.providers["gemini"].closeCalls != 1 || f.providers["claude"].closeCalls != 1 {
		t.Errorf("close calls = gemini:%d claude:%d, want 1 each even when one fails",
			f.providers["gemini"].closeCalls, f.providers["claude"].closeCalls)
	}

	// A second Close finds no cached sessions.
	if err := f.orch.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if f.providers["gemini"].closeCalls != 1 {
		t.Error("session closed more than once")
	}
}

func TestSummaryCounts(t *testing.T) {
	s := &Summary{Outcomes: []Outcome{
		{Status: StatusSucceeded},
		{Status: StatusFailed},
		{Status: StatusFailed},
		{Status: StatusSkipped},
	}}

	succeeded, failed, skipped := s.Counts()
	if succeeded != 1 || failed != 2 || skipped != 1 {
		t.Errorf("Counts() = %d/%d/%d, want 1/2/1", succeeded, failed, skipped)
	}
	if len(s.Failed()) != 2 {
		t.Errorf("Failed() = %d outcomes, want 2", len(s.Failed()))
	}
}
