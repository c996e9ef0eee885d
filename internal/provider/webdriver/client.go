// Package webdriver implements the provider.Driver boundary over the W3C
// WebDriver protocol, speaking JSON over HTTP to a chromedriver endpoint.
// It covers the small command surface the backend profiles need: navigate,
// element lookup, interaction, screenshots and session teardown.
package webdriver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"artbatch/internal/provider"
)

// DefaultEndpoint is the conventional local chromedriver address.
const DefaultEndpoint = "http://127.0.0.1:9515"

// w3cElementKey identifies an element reference in WebDriver responses.
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// enterKey is the WebDriver key code for the Enter key.
const enterKey = "\uE007"

// Client is a live WebDriver session.
type Client struct {
	endpoint  string
	sessionID string
	http      *http.Client
}

// Factory returns a provider.DriverFactory that opens sessions against the
// given WebDriver endpoint. An empty endpoint means DefaultEndpoint.
func Factory(endpoint string) provider.DriverFactory {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return func(ctx context.Context, opts provider.DriverOptions) (provider.Driver, error) {
		return New(ctx, endpoint, opts)
	}
}

// New opens a browser session against a WebDriver endpoint.
func New(ctx context.Context, endpoint string, opts provider.DriverOptions) (*Client, error) {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: 60 * time.Second},
	}

	args := []string{"--no-first-run", "--disable-popup-blocking"}
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	if opts.ProfileDir != "" {
		args = append(args, "--user-data-dir="+opts.ProfileDir)
	}
	args = append(args, opts.Args...)

	payload := map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": map[string]any{
				"browserName": "chrome",
				"goog:chromeOptions": map[string]any{
					"args": args,
					"prefs": map[string]any{
						"download.default_directory":   opts.DownloadDir,
						"download.prompt_for_download": false,
					},
				},
			},
		},
	}

	var resp struct {
		Value struct {
			SessionID string `json:"sessionId"`
		} `json:"value"`
	}
	if err := c.do(ctx, http.MethodPost, "/session", payload, &resp); err != nil {
		return nil, fmt.Errorf("creating webdriver session: %w", err)
	}
	if resp.Value.SessionID == "" {
		return nil, fmt.Errorf("webdriver endpoint %s returned no session id", endpoint)
	}

	c.sessionID = resp.Value.SessionID
	return c, nil
}

// Navigate loads the given URL.
func (c *Client) Navigate(ctx context.Context, url string) error {
	return c.session(ctx, http.MethodPost, "/url", map[string]any{"url": url}, nil)
}

// Find returns the first element matching the CSS selector.
func (c *Client) Find(ctx context.Context, selector string) (provider.Element, error) {
	var resp struct {
		Value map[string]string `json:"value"`
	}
	err := c.session(ctx, http.MethodPost, "/element", findPayload(selector), &resp)
	if err != nil {
		return nil, err
	}
	id := resp.Value[w3cElementKey]
	if id == "" {
		return nil, fmt.Errorf("no element matches %q", selector)
	}
	return &element{client: c, id: id}, nil
}

// FindAll returns every element matching the CSS selector.
func (c *Client) FindAll(ctx context.Context, selector string) ([]provider.Element, error) {
	var resp struct {
		Value []map[string]string `json:"value"`
	}
	err := c.session(ctx, http.MethodPost, "/elements", findPayload(selector), &resp)
	if err != nil {
		return nil, err
	}

	var elements []provider.Element
	for _, ref := range resp.Value {
		if id := ref[w3cElementKey]; id != "" {
			elements = append(elements, &element{client: c, id: id})
		}
	}
	return elements, nil
}

// Screenshot writes a PNG capture of the current page to path.
func (c *Client) Screenshot(ctx context.Context, path string) error {
	var resp struct {
		Value string `json:"value"`
	}
	if err := c.session(ctx, http.MethodGet, "/screenshot", nil, &resp); err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(resp.Value)
	if err != nil {
		return fmt.Errorf("decoding screenshot: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Close ends the browser session.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return c.do(ctx, http.MethodDelete, "/session/"+c.sessionID, nil, nil)
}

func findPayload(selector string) map[string]any {
	return map[string]any{"using": "css selector", "value": selector}
}

// session issues a command scoped to the current session.
func (c *Client) session(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, "/session/"+c.sessionID+path, body, out)
}

// do issues a WebDriver command and decodes its response. Protocol errors
// arrive as a JSON envelope with error and message fields.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else if method == http.MethodPost {
		reader = strings.NewReader("{}")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var failure struct {
			Value struct {
				Error   string `json:"error"`
				Message string `json:"message"`
			} `json:"value"`
		}
		if json.Unmarshal(raw, &failure) == nil && failure.Value.Error != "" {
			return fmt.Errorf("webdriver %s: %s", failure.Value.Error, firstLine(failure.Value.Message))
		}
		return fmt.Errorf("webdriver: %s %s returned %s", method, path, resp.Status)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding webdriver response: %w", err)
		}
	}
	return nil
}

// firstLine trims chromedriver's multi-line stack dumps down to the useful
// part.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// element is a handle to a located page element.
type element struct {
	client *Client
	id     string
}

func (e *element) path(suffix string) string {
	return "/element/" + e.id + suffix
}

func (e *element) Click(ctx context.Context) error {
	return e.client.session(ctx, http.MethodPost, e.path("/click"), nil, nil)
}

func (e *element) Type(ctx context.Context, text string) error {
	return e.client.session(ctx, http.MethodPost, e.path("/value"), map[string]any{"text": text}, nil)
}

func (e *element) PressEnter(ctx context.Context) error {
	return e.client.session(ctx, http.MethodPost, e.path("/value"), map[string]any{"text": enterKey}, nil)
}

func (e *element) Text(ctx context.Context) (string, error) {
	var resp struct {
		Value string `json:"value"`
	}
	err := e.client.session(ctx, http.MethodGet, e.path("/text"), nil, &resp)
	return resp.Value, err
}

func (e *element) Attr(ctx context.Context, name string) (string, error) {
	var resp struct {
		Value string `json:"value"`
	}
	err := e.client.session(ctx, http.MethodGet, e.path("/attribute/"+name), nil, &resp)
	return resp.Value, err
}

func (e *element) Visible(ctx context.Context) bool {
	var resp struct {
		Value bool `json:"value"`
	}
	if err := e.client.session(ctx, http.MethodGet, e.path("/displayed"), nil, &resp); err != nil {
		return false
	}
	return resp.Value
}
