package orchestrator

import (
	"time"

	"artbatch/internal/task"
)

// Status classifies how a task ended.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome records how one task ended.
type Outcome struct {
	Task      task.Task
	Status    Status
	Attempts  int
	FinalPath string
	Err       error
	Elapsed   time.Duration
}

// Summary aggregates the outcomes of a run. A canceled run still carries
// the outcomes recorded up to the abort.
type Summary struct {
	RunID    string
	Outcomes []Outcome
	Started  time.Time
	Finished time.Time
}

// Counts returns how many tasks succeeded, failed and were skipped.
func (s *Summary) Counts() (succeeded, failed, skipped int) {
	for _, o := range s.Outcomes {
		switch o.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return
}

// Failed returns the outcomes of tasks that ended in failure.
func (s *Summary) Failed() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Elapsed returns the wall-clock duration of the run.
func (s *Summary) Elapsed() time.Duration {
	return s.Finished.Sub(s.Started)
}
