// Package webdriver drives a browser over the W3C WebDriver REST protocol
// (a chromedriver, geckodriver, or Selenium endpoint). It implements the
// runtime.ActionExecutor boundary: one request per step, success or an error
// with the remote end's reason.
package webdriver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/go-resty/resty/v2"

	"taskpilot/runtime"
)

// elementKey is the W3C web element identifier key in element responses.
const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// findElementInterval is the poll interval while waiting for an element to
// appear within the step's timeout.
const findElementInterval = 500 * time.Millisecond

// Client is a WebDriver session over HTTP. The session is created lazily on
// the first action and reused for the rest of the process, mirroring the
// single browser window the automation drives.
type Client struct {
	l    *slog.Logger
	http *resty.Client

	mu        sync.Mutex
	sessionID string
}

var _ runtime.ActionExecutor = &Client{}

func New(l *slog.Logger, baseURL string) *Client {
	return &Client{
		l: l,
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json"),
	}
}

// Perform executes one resolved step against the remote browser.
func (c *Client) Perform(ctx context.Context, req runtime.ActionRequest) error {
	switch req.Action {
	case runtime.ActionNavigate:
		return c.navigate(ctx, req.Value)
	case runtime.ActionClick:
		return c.click(ctx, req.Selector)
	case runtime.ActionTypeText:
		return c.typeText(ctx, req.Selector, req.Value)
	case runtime.ActionWait:
		return wait(ctx, req.Timeout)
	default:
		return fmt.Errorf("webdriver: unsupported action %q", req.Action)
	}
}

// Close ends the WebDriver session if one was created.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == "" {
		return nil
	}
	_, err := c.http.R().Delete("/session/" + c.sessionID)
	c.sessionID = ""
	if err != nil {
		return fmt.Errorf("webdriver: error closing session: %w", err)
	}
	return nil
}

func (c *Client) navigate(ctx context.Context, url string) error {
	sid, err := c.session(ctx)
	if err != nil {
		return err
	}
	_, err = c.post(ctx, "/session/"+sid+"/url", map[string]any{"url": url})
	if err != nil {
		return err
	}
	c.l.Info("navigated", "url", url)
	return nil
}

func (c *Client) click(ctx context.Context, sel *runtime.ElementSelector) error {
	sid, err := c.session(ctx)
	if err != nil {
		return err
	}
	el, err := c.awaitElement(ctx, sid, sel)
	if err != nil {
		return err
	}
	_, err = c.post(ctx, "/session/"+sid+"/element/"+el+"/click", map[string]any{})
	if err != nil {
		return err
	}
	c.l.Info("clicked element", "element", sel.ElementID)
	return nil
}

func (c *Client) typeText(ctx context.Context, sel *runtime.ElementSelector, text string) error {
	sid, err := c.session(ctx)
	if err != nil {
		return err
	}
	el, err := c.awaitElement(ctx, sid, sel)
	if err != nil {
		return err
	}
	if _, err := c.post(ctx, "/session/"+sid+"/element/"+el+"/clear", map[string]any{}); err != nil {
		return err
	}
	_, err = c.post(ctx, "/session/"+sid+"/element/"+el+"/value", map[string]any{"text": text})
	if err != nil {
		return err
	}
	c.l.Info("typed text", "element", sel.ElementID)
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// session returns the current session id, creating the session on first use.
func (c *Client) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != "" {
		return c.sessionID, nil
	}

	body := map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": map[string]any{
				"browserName": "chrome",
				"goog:chromeOptions": map[string]any{
					"args": []string{"--no-sandbox", "--start-maximized"},
				},
			},
		},
	}
	parsed, err := c.post(ctx, "/session", body)
	if err != nil {
		return "", fmt.Errorf("webdriver: error creating session: %w", err)
	}

	sid, ok := parsed.Path("value.sessionId").Data().(string)
	if !ok || sid == "" {
		return "", fmt.Errorf("webdriver: session response carried no session id")
	}
	c.sessionID = sid
	c.l.Info("webdriver session created", "session", sid)
	return sid, nil
}

// awaitElement polls for the element until the step context expires, which
// covers pages that render the target late.
func (c *Client) awaitElement(ctx context.Context, sid string, sel *runtime.ElementSelector) (string, error) {
	using, value := locator(sel)
	var lastErr error
	for {
		parsed, err := c.post(ctx, "/session/"+sid+"/element", map[string]any{
			"using": using,
			"value": value,
		})
		if err == nil {
			el, ok := parsed.Path("value." + elementKey).Data().(string)
			if ok && el != "" {
				return el, nil
			}
			err = fmt.Errorf("webdriver: element response carried no element id")
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("element not found: %s (%w)", sel.ElementID, lastErr)
		case <-time.After(findElementInterval):
		}
	}
}

// locator maps a selector to a W3C location strategy. id, name, and class
// selectors become CSS, which every remote end supports.
func locator(sel *runtime.ElementSelector) (using, value string) {
	switch sel.Kind {
	case runtime.SelectorXPath:
		return "xpath", sel.Value
	case runtime.SelectorID:
		return "css selector", "#" + sel.Value
	case runtime.SelectorName:
		return "css selector", fmt.Sprintf("[name=%q]", sel.Value)
	case runtime.SelectorClass:
		return "css selector", "." + sel.Value
	default:
		return "css selector", sel.Value
	}
}

// post sends a WebDriver command and decodes the JSON response, translating
// non-2xx responses into errors carrying the remote reason.
func (c *Client) post(ctx context.Context, path string, body any) (*gabs.Container, error) {
	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(path)
	if err != nil {
		return nil, fmt.Errorf("webdriver request failed: %w", err)
	}

	parsed, parseErr := gabs.ParseJSON(resp.Body())
	if resp.IsError() {
		reason := resp.Status()
		if parseErr == nil {
			if msg, ok := parsed.Path("value.message").Data().(string); ok && msg != "" {
				reason = msg
			} else if code, ok := parsed.Path("value.error").Data().(string); ok && code != "" {
				reason = code
			}
		}
		return nil, fmt.Errorf("webdriver: %s", reason)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("webdriver: error parsing response: %w", parseErr)
	}
	return parsed, nil
}
