package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"artbatch/internal/orchestrator"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// renderSummary formats a run summary for the terminal: one line per task,
// then the totals.
func renderSummary(s *orchestrator.Summary) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("Run %s", s.RunID)))
	b.WriteString("\n\n")

	for _, out := range s.Outcomes {
		b.WriteString(renderOutcome(out))
		b.WriteString("\n")
	}

	succeeded, failed, skipped := s.Counts()
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s  %s  %s  %s  %s\n",
		successStyle.Render(fmt.Sprintf("%d succeeded", succeeded)),
		failureStyle.Render(fmt.Sprintf("%d failed", failed)),
		skipStyle.Render(fmt.Sprintf("%d skipped", skipped)),
		titleStyle.Render(fmt.Sprintf("%d total", len(s.Outcomes))),
		faintStyle.Render(s.Elapsed().Round(time.Second).String())))

	return b.String()
}

func renderOutcome(out orchestrator.Outcome) string {
	label := fmt.Sprintf("%s (%s/%s)", out.Task.Name, out.Task.Backend, out.Task.Kind)

	switch out.Status {
	case orchestrator.StatusSucceeded:
		detail := out.FinalPath
		if out.Attempts > 1 {
			detail = fmt.Sprintf("%s (attempt %d)", detail, out.Attempts)
		}
		return fmt.Sprintf("  %s %s %s",
			successStyle.Render("✓"), label, faintStyle.Render(detail))
	case orchestrator.StatusSkipped:
		return fmt.Sprintf("  %s %s %s",
			skipStyle.Render("-"), label, faintStyle.Render("already in store"))
	default:
		return fmt.Sprintf("  %s %s %s",
			failureStyle.Render("✗"), label, failureStyle.Render(fmt.Sprintf("after %d attempt(s): %v", out.Attempts, out.Err)))
	}
}
