// Package retry tracks per-task attempt state for the orchestrator: how
// many attempts each task has consumed, whether it eventually succeeded,
// and the last error observed when it did not.
package retry

import (
	"sync"
	"time"
)

// State records the attempt history of a single task key.
type State struct {
	Key       string
	Attempts  int
	Succeeded bool
	LastErr   error
}

// Manager hands out retry decisions under a fixed attempt budget.
type Manager struct {
	mu          sync.Mutex
	maxAttempts int
	backoff     time.Duration
	states      map[string]*State
	order       []string
}

// New creates a Manager allowing maxAttempts attempts per task with the
// given pause between failed attempts. Attempt budgets below 1 are clamped
// to 1.
func New(maxAttempts int, backoff time.Duration) *Manager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Manager{
		maxAttempts: maxAttempts,
		backoff:     backoff,
		states:      make(map[string]*State),
	}
}

// MaxAttempts returns the per-task attempt budget.
func (m *Manager) MaxAttempts() int { return m.maxAttempts }

// Backoff returns the pause to observe between failed attempts.
func (m *Manager) Backoff() time.Duration { return m.backoff }

// Begin records the start of an attempt and returns the attempt number,
// counting from 1.
func (m *Manager) Begin(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(key)
	s.Attempts++
	return s.Attempts
}

// RecordFailure notes a failed attempt and the error that caused it.
func (m *Manager) RecordFailure(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(key)
	s.Succeeded = false
	s.LastErr = err
}

// RecordSuccess marks the task as done; it will not be retried.
func (m *Manager) RecordSuccess(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(key)
	s.Succeeded = true
	s.LastErr = nil
}

// CanRetry reports whether the task has attempt budget left and has not
// already succeeded.
func (m *Manager) CanRetry(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(key)
	return !s.Succeeded && s.Attempts < m.maxAttempts
}

// State returns a copy of the attempt state for a task key.
func (m *Manager) State(key string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return *m.state(key)
}

// Exhausted returns the states of all tasks that consumed their full budget
// without succeeding, in first-seen order.
func (m *Manager) Exhausted() []State {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []State
	for _, key := range m.order {
		s := m.states[key]
		if !s.Succeeded && s.Attempts >= m.maxAttempts {
			out = append(out, *s)
		}
	}
	return out
}

// state returns the tracked state for key, creating it on first use. The
// caller must hold mu.
func (m *Manager) state(key string) *State {
	s, ok := m.states[key]
	if !ok {
		s = &State{Key: key}
		m.states[key] = s
		m.order = append(m.order, key)
	}
	return s
}
