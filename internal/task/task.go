// Package task defines the task model and the parser that extracts task
// definitions from markdown documents.
package task

import (
	"fmt"
	"strings"

	"artbatch/internal/errors"
)

// Kind identifies the artifact kind a task produces. It selects the
// generation mode on the backend.
type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
	KindCode  Kind = "code"
	KindOther Kind = "other"
)

// ParseKind normalizes a raw kind string. Unrecognized kinds map to
// KindOther rather than failing the block.
func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindImage:
		return KindImage
	case KindText:
		return KindText
	case KindCode:
		return KindCode
	default:
		return KindOther
	}
}

// DefaultBackend is the backend assumed when a minimal task entry does not
// name one.
const DefaultBackend = "gemini"

// DefaultExtension is the extension assumed for minimal task entries.
const DefaultExtension = "png"

// Task is one declared unit of work: a prompt plus output metadata.
// Tasks are immutable once parsed; the orchestrator consumes them read-only.
type Task struct {
	// Name is the display identifier from the document heading.
	Name string
	// Kind selects the generation mode on the backend.
	Kind Kind
	// Backend is the lowercased logical identifier of the automation backend.
	Backend string
	// OutputName is the base filename stem, without extension.
	OutputName string
	// Extension is the target file extension, without leading dot.
	Extension string
	// Prompt is the free-text instruction body.
	Prompt string
}

// Key returns the store key for the task's output.
func (t Task) Key() string {
	return t.OutputName + "." + t.Extension
}

func (t Task) String() string {
	return fmt.Sprintf("Task(%s kind=%s backend=%s output=%s)", t.Name, t.Kind, t.Backend, t.Key())
}

// validate reports whether every field is populated. A task failing
// validation is a malformed block: it is dropped without failing the
// document.
func (t Task) validate() error {
	switch {
	case t.Name == "":
		return errors.Wrap(errors.ErrInvalidInput, "task name is empty")
	case t.Kind == "":
		return errors.Wrap(errors.ErrInvalidInput, "task kind is empty")
	case t.Backend == "":
		return errors.Wrap(errors.ErrInvalidInput, "task backend is empty")
	case t.OutputName == "":
		return errors.Wrap(errors.ErrInvalidInput, "task output name is empty")
	case t.Extension == "":
		return errors.Wrap(errors.ErrInvalidInput, "task extension is empty")
	case t.Prompt == "":
		return errors.Wrap(errors.ErrInvalidInput, "task prompt is empty")
	}
	return nil
}

// FilterByKind returns the tasks matching the given kind.
func FilterByKind(tasks []Task, kind Kind) []Task {
	var out []Task
	for _, t := range tasks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// FilterByBackend returns the tasks targeting the given backend.
func FilterByBackend(tasks []Task, backend string) []Task {
	backend = strings.ToLower(backend)
	var out []Task
	for _, t := range tasks {
		if t.Backend == backend {
			out = append(out, t)
		}
	}
	return out
}
