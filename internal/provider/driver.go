package provider

import "context"

// Driver is the browser-automation boundary. Backend profiles interact with
// pages only through this interface, which keeps the session logic testable
// and independent of any particular automation stack. The shipping
// implementation lives in the webdriver subpackage.
type Driver interface {
	// Navigate loads the given URL and waits for the page load to settle.
	Navigate(ctx context.Context, url string) error

	// Find returns the first element matching the CSS selector, or an error
	// when nothing matches.
	Find(ctx context.Context, selector string) (Element, error)

	// FindAll returns every element matching the CSS selector. An empty
	// result is not an error.
	FindAll(ctx context.Context, selector string) ([]Element, error)

	// Screenshot writes a PNG capture of the current page to path.
	Screenshot(ctx context.Context, path string) error

	// Close ends the browser session and releases its resources.
	Close() error
}

// Element is a handle to a located page element.
type Element interface {
	Click(ctx context.Context) error
	Type(ctx context.Context, text string) error
	PressEnter(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	Attr(ctx context.Context, name string) (string, error)
	Visible(ctx context.Context) bool
}

// DriverOptions configures a new browser session.
type DriverOptions struct {
	// DownloadDir receives browser downloads; profiles rely on it matching
	// the run's staging directory.
	DownloadDir string
	Headless    bool
	ProfileDir  string
	Args        []string
}

// DriverFactory opens a new browser session.
type DriverFactory func(ctx context.Context, opts DriverOptions) (Driver, error)

// firstMatch tries each selector in order and returns the first element
// found. Profiles carry fallback selector lists because chat UIs rename
// their DOM frequently.
func firstMatch(ctx context.Context, d Driver, selectors []string) (Element, string, error) {
	var lastErr error
	for _, sel := range selectors {
		el, err := d.Find(ctx, sel)
		if err == nil {
			return el, sel, nil
		}
		lastErr = err
	}
	return nil, "", lastErr
}
