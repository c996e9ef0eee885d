// Package orchestrator executes a parsed task list against provider
// sessions: one task at a time, with per-task retries, session reuse per
// backend, and a summary of every outcome.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"artbatch/internal/config"
	"artbatch/internal/errors"
	"artbatch/internal/logging"
	"artbatch/internal/orchestrator/retry"
	"artbatch/internal/provider"
	"artbatch/internal/store"
	"artbatch/internal/task"
)

// Orchestrator drives a batch run. It is single-threaded: tasks run
// strictly in order and share one browser session per backend.
type Orchestrator struct {
	cfg   *config.Config
	log   *logging.Logger
	store *store.Store

	runID    string
	sessions map[string]provider.Provider
	retries  *retry.Manager

	// Injection points for tests.
	newProvider provider.Factory
	newDriver   provider.DriverFactory
	sleep       func(ctx context.Context, d time.Duration)
}

// New creates an Orchestrator. The driver factory opens the browser
// sessions that providers run in.
func New(cfg *config.Config, log *logging.Logger, st *store.Store, drivers provider.DriverFactory) *Orchestrator {
	if log == nil {
		log = logging.NopLogger()
	}

	runID := uuid.NewString()[:8]
	return &Orchestrator{
		cfg:         cfg,
		log:         log.WithRun(runID),
		store:       st,
		runID:       runID,
		sessions:    make(map[string]provider.Provider),
		retries:     retry.New(cfg.Run.RetryAttempts, cfg.Run.RetryBackoff()),
		newProvider: provider.New,
		newDriver:   drivers,
		sleep:       wait,
	}
}

// RunID returns the identifier attached to every log line of this run.
func (o *Orchestrator) RunID() string { return o.runID }

// Run executes the tasks in order and returns a summary of every outcome.
// Cancellation aborts between attempts and returns the partial summary
// together with the context error; per-task failures never abort the run.
func (o *Orchestrator) Run(ctx context.Context, tasks []task.Task) (*Summary, error) {
	summary := &Summary{RunID: o.runID, Started: time.Now()}
	o.log.Info("run started", "tasks", len(tasks))

	for i, t := range tasks {
		if err := ctx.Err(); err != nil {
			summary.Finished = time.Now()
			return summary, err
		}

		outcome := o.runTask(ctx, i, t)
		summary.Outcomes = append(summary.Outcomes, outcome)

		if err := ctx.Err(); err != nil {
			summary.Finished = time.Now()
			return summary, err
		}

		// Pacing between tasks keeps the backends from rate-limiting the
		// run. Skipped tasks did no backend work, and the last task has
		// nothing after it to pace.
		if outcome.Status != StatusSkipped && i < len(tasks)-1 {
			o.sleep(ctx, o.cfg.Run.TaskDelay())
		}
	}

	summary.Finished = time.Now()
	succeeded, failed, skipped := summary.Counts()
	o.log.Info("run finished",
		"succeeded", succeeded, "failed", failed, "skipped", skipped,
		"elapsed", summary.Finished.Sub(summary.Started).Round(time.Second).String())
	return summary, nil
}

// runTask executes one task under the retry budget and returns its outcome.
func (o *Orchestrator) runTask(ctx context.Context, index int, t task.Task) Outcome {
	log := o.log.WithTask(t.Name).WithBackend(t.Backend)
	started := time.Now()

	// The skip check consults only the store; no provider session is
	// opened or touched for a skipped task.
	if o.cfg.Run.SkipExisting && o.store.Exists(t.OutputName, t.Extension) {
		log.Info("output exists, skipping", "artifact", t.OutputName+"."+t.Extension)
		return Outcome{
			Task:      t,
			Status:    StatusSkipped,
			FinalPath: o.store.ArtifactPath(t.OutputName, t.Extension),
		}
	}

	// Retry state is tracked per task instance, not per output key: tasks
	// that collide on an output name (the organizer resolves those with _N
	// suffixes) each get the full attempt budget.
	key := fmt.Sprintf("%d:%s", index, t.Key())
	for {
		attempt := o.retries.Begin(key)
		attemptLog := log.WithAttempt(attempt)
		attemptLog.Info("attempt started")

		finalPath, err := o.processTask(ctx, t, attemptLog)
		if err == nil {
			o.retries.RecordSuccess(key)
			attemptLog.Info("task succeeded", "path", finalPath)
			return Outcome{
				Task:      t,
				Status:    StatusSucceeded,
				Attempts:  attempt,
				FinalPath: finalPath,
				Elapsed:   time.Since(started),
			}
		}

		o.retries.RecordFailure(key, err)
		attemptLog.Error("attempt failed", "error", err)

		if ctx.Err() != nil || !errors.IsRetryable(err) || !o.retries.CanRetry(key) {
			return Outcome{
				Task:     t,
				Status:   StatusFailed,
				Attempts: attempt,
				Err:      err,
				Elapsed:  time.Since(started),
			}
		}

		attemptLog.Info("backing off before retry", "backoff", o.retries.Backoff().String())
		o.sleep(ctx, o.retries.Backoff())
	}
}

// processTask drives one attempt through the full lifecycle: session,
// clean staging, mode, prompt, wait, retrieve, organize.
func (o *Orchestrator) processTask(ctx context.Context, t task.Task, log *logging.Logger) (string, error) {
	p, err := o.session(ctx, t.Backend)
	if err != nil {
		return "", err
	}

	if err := o.store.ClearStaging(); err != nil {
		return "", err
	}

	if err := p.SelectMode(ctx, t.Kind); err != nil {
		return "", err
	}
	if err := p.Submit(ctx, t.Prompt); err != nil {
		return "", err
	}
	if err := p.AwaitCompletion(ctx, o.cfg.Run.Timeout()); err != nil {
		return "", err
	}

	staged, err := p.RetrieveOutput(ctx, t.OutputName)
	if err != nil {
		return "", err
	}

	return o.store.Organize(staged, t.OutputName, t.Extension)
}

// session returns the cached provider session for a backend, opening one on
// first use. Sessions persist across tasks and retries until Close.
func (o *Orchestrator) session(ctx context.Context, backend string) (provider.Provider, error) {
	key := strings.ToLower(backend)
	if p, ok := o.sessions[key]; ok {
		return p, nil
	}

	p, err := o.newProvider(ctx, key, provider.Options{
		Headless:  o.cfg.Browser.Headless,
		Profile:   o.cfg.Browser.Profile(key),
		Store:     o.store,
		Logger:    o.log,
		NewDriver: o.newDriver,
	})
	if err != nil {
		return nil, err
	}

	o.sessions[key] = p
	o.log.Info("provider session cached", "backend", key)
	return p, nil
}

// Close tears down every cached provider session exactly once. A failing
// close does not keep the remaining sessions from being closed; the errors
// are joined and returned together.
func (o *Orchestrator) Close() error {
	var errs []error
	for backend, p := range o.sessions {
		if err := p.Close(); err != nil {
			o.log.Error("closing provider session", "backend", backend, "error", err)
			errs = append(errs, err)
		}
	}
	o.sessions = make(map[string]provider.Provider)
	return errors.Join(errs...)
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
