package provider

import (
	"context"
	"time"

	"artbatch/internal/task"
)

// geminiProfile describes the Gemini chat surface. Image generation is
// activated through the tools menu before the prompt is typed; the surface
// falls back to plain prompting when the menu is absent.
func geminiProfile() profile {
	return profile{
		name:           BackendGemini,
		url:            "https://gemini.google.com/app",
		kinds:          map[task.Kind]bool{task.KindImage: true, task.KindText: true},
		imageExtension: "png",

		inputSelectors: []string{
			"rich-textarea div.ql-editor",
			"div[contenteditable='true'][role='textbox']",
			"rich-textarea",
		},
		sendSelectors: []string{
			"button[aria-label='Send message']",
			"button.send-button",
		},
		busySelectors: []string{
			"button[aria-label='Stop response']",
			".loading-indicator",
			"mat-spinner",
		},
		responseSelectors: []string{
			"message-content .markdown",
			"model-response .response-content",
		},
		imageSelectors: []string{
			"generated-image img",
			"single-image img",
			"img.image.loaded",
		},
		downloadSelectors: []string{
			"button[aria-label='Download generated image']",
			"button[data-test-id='download-generated-image-button']",
			"button[aria-label='Download']",
		},

		activateMode:    geminiActivateMode,
		pollInterval:    2 * time.Second,
		retrieveTimeout: time.Minute,
	}
}

var geminiToolboxSelectors = []string{
	"button[aria-label='Open tools menu']",
	"toolbox-drawer button",
}

var geminiImageToolSelectors = []string{
	"button[aria-label='Create images']",
	"toolbox-drawer-item[data-tool='image-gen'] button",
}

// geminiActivateMode opens the tools menu and picks the image tool. Text
// generation needs no activation, and a missing menu is tolerated since the
// surface also honors image requests expressed in the prompt itself.
func geminiActivateMode(ctx context.Context, d Driver, kind task.Kind) error {
	if kind != task.KindImage {
		return nil
	}

	toolbox, _, err := firstMatch(ctx, d, geminiToolboxSelectors)
	if err != nil {
		return nil
	}
	if err := toolbox.Click(ctx); err != nil {
		return err
	}

	tool, _, err := firstMatch(ctx, d, geminiImageToolSelectors)
	if err != nil {
		return err
	}
	return tool.Click(ctx)
}
