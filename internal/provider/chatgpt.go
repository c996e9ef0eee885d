package provider

import (
	"time"

	"artbatch/internal/task"
)

// chatgptProfile describes the ChatGPT chat surface. All artifact kinds run
// through the same composer; image requests are expressed in the prompt.
func chatgptProfile() profile {
	return profile{
		name: BackendChatGPT,
		url:  "https://chatgpt.com/",
		kinds: map[task.Kind]bool{
			task.KindImage: true,
			task.KindText:  true,
			task.KindCode:  true,
			task.KindOther: true,
		},
		imageExtension: "png",

		inputSelectors: []string{
			"#prompt-textarea",
			"div[contenteditable='true'].ProseMirror",
		},
		sendSelectors: []string{
			"button[data-testid='send-button']",
			"button[aria-label='Send prompt']",
		},
		busySelectors: []string{
			"button[data-testid='stop-button']",
			"button[aria-label='Stop streaming']",
			".result-streaming",
		},
		responseSelectors: []string{
			"div[data-message-author-role='assistant'] .markdown",
			"div[data-message-author-role='assistant']",
		},
		imageSelectors: []string{
			"div[data-message-author-role='assistant'] img",
			"img[alt='Generated image']",
		},
		downloadSelectors: []string{
			"button[aria-label='Download this image']",
			"button[aria-label='Download image']",
			"a[download]",
		},

		pollInterval:    2 * time.Second,
		retrieveTimeout: time.Minute,
	}
}
