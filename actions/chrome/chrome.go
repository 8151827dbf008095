// Package chrome drives a locally launched Chrome over the DevTools protocol
// via chromedp. It is the in-process alternative to the webdriver client when
// no WebDriver endpoint is available.
package chrome

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"taskpilot/runtime"
)

// Driver owns a lazily launched browser. The window stays open across steps
// and runs; Close tears it down.
type Driver struct {
	l        *slog.Logger
	headless bool

	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

var _ runtime.ActionExecutor = &Driver{}

func New(l *slog.Logger, headless bool) *Driver {
	return &Driver{l: l, headless: headless}
}

func (d *Driver) init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browserCtx != nil {
		select {
		case <-d.browserCtx.Done():
			d.cleanup()
		default:
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", d.headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	d.allocCtx, d.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	d.browserCtx, d.browserCancel = chromedp.NewContext(d.allocCtx)

	if err := chromedp.Run(d.browserCtx); err != nil {
		d.cleanup()
		return fmt.Errorf("chrome: error launching browser: %w", err)
	}
	d.l.Info("chrome browser launched", "headless", d.headless)
	return nil
}

func (d *Driver) cleanup() {
	if d.browserCancel != nil {
		d.browserCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	d.browserCtx = nil
	d.allocCtx = nil
}

// Close shuts the browser down.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleanup()
	return nil
}

// Perform executes one resolved step in the browser. The step context bounds
// the action; wait steps consume their own duration.
func (d *Driver) Perform(ctx context.Context, req runtime.ActionRequest) error {
	if req.Action == runtime.ActionWait {
		select {
		case <-time.After(req.Timeout):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := d.init(); err != nil {
		return err
	}

	// chromedp actions must run on a context descended from the browser
	// context, so the step deadline is re-applied there.
	actionCtx := d.browserCtx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		actionCtx, cancel = context.WithDeadline(actionCtx, deadline)
		defer cancel()
	}

	switch req.Action {
	case runtime.ActionNavigate:
		if err := chromedp.Run(actionCtx, chromedp.Navigate(req.Value)); err != nil {
			return fmt.Errorf("chrome: error navigating to %s: %w", req.Value, err)
		}
		d.l.Info("navigated", "url", req.Value)
		return nil

	case runtime.ActionClick:
		sel, opt := locator(req.Selector)
		if err := chromedp.Run(actionCtx,
			chromedp.WaitVisible(sel, opt),
			chromedp.Click(sel, opt),
		); err != nil {
			return fmt.Errorf("chrome: error clicking %s: %w", req.Selector.ElementID, err)
		}
		d.l.Info("clicked element", "element", req.Selector.ElementID)
		return nil

	case runtime.ActionTypeText:
		sel, opt := locator(req.Selector)
		if err := chromedp.Run(actionCtx,
			chromedp.WaitVisible(sel, opt),
			chromedp.SendKeys(sel, req.Value, opt),
		); err != nil {
			return fmt.Errorf("chrome: error typing into %s: %w", req.Selector.ElementID, err)
		}
		d.l.Info("typed text", "element", req.Selector.ElementID)
		return nil

	default:
		return fmt.Errorf("chrome: unsupported action %q", req.Action)
	}
}

// locator maps a selector to a chromedp query. XPath selectors use the
// DevTools search backend; the rest become CSS queries.
func locator(sel *runtime.ElementSelector) (string, chromedp.QueryOption) {
	switch sel.Kind {
	case runtime.SelectorXPath:
		return sel.Value, chromedp.BySearch
	case runtime.SelectorID:
		return "#" + sel.Value, chromedp.ByQuery
	case runtime.SelectorName:
		return fmt.Sprintf("[name=%q]", sel.Value), chromedp.ByQuery
	case runtime.SelectorClass:
		return "." + sel.Value, chromedp.ByQuery
	default:
		return sel.Value, chromedp.ByQuery
	}
}
