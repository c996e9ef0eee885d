package provider

import (
	"fmt"

	"artbatch/internal/errors"
)

// Stage identifies where a provider session is in the per-task lifecycle.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageModeSelected Stage = "mode_selected"
	StageSubmitted    Stage = "submitted"
	StageCompleted    Stage = "completed"
	StageRetrieved    Stage = "retrieved"
	StageFailed       Stage = "failed"
)

// lifecycle enforces the linear per-task progression Idle, ModeSelected,
// Submitted, Completed, Retrieved. Any stage may move to Failed; a retry
// resets to Idle and starts over. No stage is ever re-entered mid-task.
type lifecycle struct {
	stage Stage
}

var stageOrder = map[Stage]Stage{
	StageIdle:         StageModeSelected,
	StageModeSelected: StageSubmitted,
	StageSubmitted:    StageCompleted,
	StageCompleted:    StageRetrieved,
}

func (l *lifecycle) current() Stage {
	if l.stage == "" {
		return StageIdle
	}
	return l.stage
}

// check reports whether moving to the given stage would be legal now.
func (l *lifecycle) check(to Stage) error {
	if to != StageFailed && stageOrder[l.current()] != to {
		return errors.Wrap(errors.ErrInvalidInput,
			fmt.Sprintf("lifecycle violation: %s -> %s", l.current(), to))
	}
	return nil
}

// advance moves to the given stage, failing when the move would skip or
// repeat a step.
func (l *lifecycle) advance(to Stage) error {
	if to == StageFailed {
		l.stage = StageFailed
		return nil
	}
	if stageOrder[l.current()] != to {
		return errors.Wrap(errors.ErrInvalidInput,
			fmt.Sprintf("lifecycle violation: %s -> %s", l.current(), to))
	}
	l.stage = to
	return nil
}

// reset returns the lifecycle to Idle so the next task (or retry) starts the
// full progression again.
func (l *lifecycle) reset() {
	l.stage = StageIdle
}
