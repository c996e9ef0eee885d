package provider

import (
	"time"

	"artbatch/internal/task"
)

// claudeProfile describes the Claude chat surface, a text-only backend.
// Image tasks are rejected at mode selection so no prompt is wasted.
func claudeProfile() profile {
	return profile{
		name: BackendClaude,
		url:  "https://claude.ai/new",
		kinds: map[task.Kind]bool{
			task.KindText:  true,
			task.KindCode:  true,
			task.KindOther: true,
		},

		inputSelectors: []string{
			"div[contenteditable='true'].ProseMirror",
			"div[aria-label='Write your prompt to Claude']",
		},
		sendSelectors: []string{
			"button[aria-label='Send Message']",
			"button[aria-label='Send message']",
		},
		busySelectors: []string{
			"button[aria-label='Stop Response']",
			"div[data-is-streaming='true']",
		},
		responseSelectors: []string{
			"div[data-is-streaming='false'] .standard-markdown",
			"div.font-claude-message",
		},

		pollInterval:    2 * time.Second,
		retrieveTimeout: time.Minute,
	}
}
