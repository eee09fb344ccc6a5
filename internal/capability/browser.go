package capability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

// Browser drives a Chrome instance. The window stays open between
// actions so multi-step flows keep their session; close_browser tears
// it down.
type Browser struct {
	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc

	ScreenshotDir string
	Headless      bool
}

func NewBrowser(screenshotDir string, headless bool) *Browser {
	if screenshotDir == "" {
		screenshotDir = "screenshots"
	}
	return &Browser{ScreenshotDir: screenshotDir, Headless: headless}
}

func (b *Browser) Register(r *Registry) error {
	funcs := map[string]Func{
		"open_url": {
			Description: "Navigate the browser to a URL. The window stays open for later actions.",
			Parameters: objSchema(map[string]any{
				"url": strProp("The URL to open"),
			}, []string{"url"}),
			Run: b.openURL,
		},
		"page_content": {
			Description: "Return the HTML of the current page.",
			Parameters:  objSchema(nil, nil),
			Run:         b.pageContent,
		},
		"click": {
			Description: "Click an element on the current page.",
			Parameters: objSchema(map[string]any{
				"selector": strProp("CSS selector of the element"),
			}, []string{"selector"}),
			Run: b.click,
		},
		"type_text": {
			Description: "Type text into an element on the current page.",
			Parameters: objSchema(map[string]any{
				"selector": strProp("CSS selector of the input"),
				"text":     strProp("The text to type"),
			}, []string{"selector", "text"}),
			Run: b.typeText,
		},
		"wait_for": {
			Description: "Wait for an element to become visible, or sleep a number of seconds.",
			Parameters: objSchema(map[string]any{
				"selector": strProp("CSS selector to wait for"),
				"seconds":  intProp("Seconds to sleep when no selector is given"),
			}, nil),
			Run: b.waitFor,
		},
		"screenshot": {
			Description: "Capture the current page to a PNG file and return its path.",
			Parameters:  objSchema(nil, nil),
			Run:         b.screenshot,
		},
		"close_browser": {
			Description: "Close the browser window.",
			Parameters:  objSchema(nil, nil),
			Run:         b.close,
		},
	}
	for name, fn := range funcs {
		if err := r.Register("browser", name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (b *Browser) init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		select {
		case <-b.browserCtx.Done():
			b.cleanup()
		default:
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", b.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)

	return chromedp.Run(b.browserCtx)
}

func (b *Browser) cleanup() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx = nil
	b.allocCtx = nil
}

// run initializes the browser if needed and executes actions with a
// per-call timeout.
func (b *Browser) run(actions ...chromedp.Action) error {
	if err := b.init(); err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	actionCtx, cancel := context.WithTimeout(b.browserCtx, 60*time.Second)
	defer cancel()
	return chromedp.Run(actionCtx, actions...)
}

func (b *Browser) openURL(ctx context.Context, args map[string]any) (map[string]any, error) {
	url, err := requireString(args, "url")
	if err != nil {
		return nil, err
	}
	if err := b.run(chromedp.Navigate(url)); err != nil {
		return nil, err
	}
	return map[string]any{"text": "Opened " + url, "url": url}, nil
}

func (b *Browser) pageContent(ctx context.Context, args map[string]any) (map[string]any, error) {
	var html string
	err := b.run(chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	if len(html) > 50000 {
		html = html[:50000] + "\n... (truncated)"
	}
	return map[string]any{"text": html}, nil
}

func (b *Browser) click(ctx context.Context, args map[string]any) (map[string]any, error) {
	selector, err := requireString(args, "selector")
	if err != nil {
		return nil, err
	}
	if err := b.run(chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return map[string]any{"text": "Clicked " + selector}, nil
}

func (b *Browser) typeText(ctx context.Context, args map[string]any) (map[string]any, error) {
	selector, err := requireString(args, "selector")
	if err != nil {
		return nil, err
	}
	text, err := requireString(args, "text")
	if err != nil {
		return nil, err
	}
	if err := b.run(chromedp.SendKeys(selector, text, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return map[string]any{"text": "Typed text in " + selector}, nil
}

func (b *Browser) waitFor(ctx context.Context, args map[string]any) (map[string]any, error) {
	if selector := argString(args, "selector"); selector != "" {
		if err := b.run(chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
			return nil, err
		}
		return map[string]any{"text": "Element visible: " + selector}, nil
	}
	seconds := argInt(args, "seconds", 0)
	if seconds <= 0 {
		return nil, fmt.Errorf("wait_for needs a selector or a positive seconds value")
	}
	select {
	case <-time.After(time.Duration(seconds) * time.Second):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return map[string]any{"text": fmt.Sprintf("Waited %d seconds", seconds)}, nil
}

func (b *Browser) screenshot(ctx context.Context, args map[string]any) (map[string]any, error) {
	var buf []byte
	if err := b.run(chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(b.ScreenshotDir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(b.ScreenshotDir, fmt.Sprintf("page_%d.png", time.Now().Unix()))
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return nil, err
	}
	absPath, _ := filepath.Abs(path)
	return map[string]any{"path": absPath, "file_path": absPath}, nil
}

func (b *Browser) close(ctx context.Context, args map[string]any) (map[string]any, error) {
	b.mu.Lock()
	b.cleanup()
	b.mu.Unlock()
	return map[string]any{"text": "Browser closed"}, nil
}
