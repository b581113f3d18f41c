package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

const maxPageHTML = 50000

// BrowserTool drives one shared Chrome instance. The window stays open
// between steps until a 'close' action.
type BrowserTool struct {
	Headless      bool
	ScreenshotDir string

	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func NewBrowserTool(headless bool, screenshotDir string) *BrowserTool {
	return &BrowserTool{Headless: headless, ScreenshotDir: screenshotDir}
}

func (b *BrowserTool) Name() string {
	return "browser"
}

func (b *BrowserTool) Description() string {
	return "Control a browser to interact with websites. Actions: 'navigate', 'click', 'content', 'type', 'press', 'scroll', 'wait', 'back', 'forward', 'reload', 'screenshot', 'close'. Returns {action, ...}; content adds html, screenshot adds path."
}

func (b *BrowserTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type": "string",
				"enum": []string{
					"navigate", "click", "content", "type", "press",
					"scroll", "wait", "back", "forward", "reload",
					"screenshot", "close",
				},
				"description": "The action to perform.",
			},
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to navigate to (required for 'navigate')",
			},
			"selector": map[string]any{
				"type":        "string",
				"description": "CSS selector for the target element (required for 'click', 'type'; optional for 'scroll', 'wait')",
			},
			"text": map[string]any{
				"type":        "string",
				"description": "The text to type or key to press (required for 'type', 'press')",
			},
			"wait_seconds": map[string]any{
				"type":        "integer",
				"description": "Time to wait in seconds (used with 'wait')",
			},
		},
		"required": []string{"action"},
	}
}

func (b *BrowserTool) initBrowser() error {
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

func (b *BrowserTool) cleanup() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx = nil
	b.allocCtx = nil
}

// Close shuts the browser down.
func (b *BrowserTool) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanup()
}

func (b *BrowserTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		Action      string `json:"action"`
		URL         string `json:"url"`
		Selector    string `json:"selector"`
		Text        string `json:"text"`
		WaitSeconds int    `json:"wait_seconds"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	out := map[string]any{"action": in.Action}

	if in.Action == "close" {
		b.Close()
		return out, nil
	}

	if err := validateBrowserArgs(in.Action, in.URL, in.Selector, in.Text); err != nil {
		return nil, err
	}

	if err := b.initBrowser(); err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %v", err)
	}

	b.mu.Lock()
	browserCtx := b.browserCtx
	b.mu.Unlock()

	actionCtx, cancel := context.WithTimeout(browserCtx, 60*time.Second)
	defer cancel()
	// Stop the browser action when the step itself is cancelled.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var err error
	switch in.Action {
	case "navigate":
		err = chromedp.Run(actionCtx, chromedp.Navigate(in.URL))
		out["url"] = in.URL

	case "content":
		var html string
		err = chromedp.Run(actionCtx,
			chromedp.ActionFunc(func(ctx context.Context) error {
				node, err := dom.GetDocument().Do(ctx)
				if err != nil {
					return err
				}
				html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
				return err
			}),
		)
		if len(html) > maxPageHTML {
			html = html[:maxPageHTML] + "\n... (truncated)"
		}
		out["html"] = html

	case "click":
		err = chromedp.Run(actionCtx, chromedp.Click(in.Selector, chromedp.ByQuery))
		out["selector"] = in.Selector

	case "type":
		err = chromedp.Run(actionCtx, chromedp.SendKeys(in.Selector, in.Text, chromedp.ByQuery))
		out["selector"] = in.Selector

	case "press":
		err = chromedp.Run(actionCtx, chromedp.KeyEvent(in.Text))
		out["key"] = in.Text

	case "scroll":
		if in.Selector != "" {
			err = chromedp.Run(actionCtx, chromedp.ScrollIntoView(in.Selector, chromedp.ByQuery))
			out["selector"] = in.Selector
		} else {
			err = chromedp.Run(actionCtx, chromedp.Evaluate("window.scrollTo(0, document.body.scrollHeight)", nil))
		}

	case "wait":
		if in.Selector != "" {
			err = chromedp.Run(actionCtx, chromedp.WaitVisible(in.Selector, chromedp.ByQuery))
			out["selector"] = in.Selector
		} else if in.WaitSeconds > 0 {
			select {
			case <-time.After(time.Duration(in.WaitSeconds) * time.Second):
			case <-actionCtx.Done():
				err = actionCtx.Err()
			}
		}

	case "back":
		err = chromedp.Run(actionCtx, chromedp.NavigateBack())

	case "forward":
		err = chromedp.Run(actionCtx, chromedp.NavigateForward())

	case "reload":
		err = chromedp.Run(actionCtx, chromedp.Reload())

	case "screenshot":
		var buf []byte
		err = chromedp.Run(actionCtx, chromedp.CaptureScreenshot(&buf))
		if err == nil {
			var path string
			path, err = b.saveScreenshot(buf)
			out["path"] = path
		}
	}

	if err != nil {
		return nil, fmt.Errorf("browser action %s failed: %v", in.Action, err)
	}
	return out, nil
}

func (b *BrowserTool) saveScreenshot(buf []byte) (string, error) {
	if err := os.MkdirAll(b.ScreenshotDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(b.ScreenshotDir, fmt.Sprintf("screenshot_%d.png", time.Now().UnixNano()))
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", err
	}
	return filepath.Abs(path)
}

func validateBrowserArgs(action, url, selector, text string) error {
	switch action {
	case "navigate":
		if url == "" {
			return errors.New("url is required for 'navigate'")
		}
	case "click":
		if selector == "" {
			return errors.New("selector is required for 'click'")
		}
	case "type":
		if selector == "" || text == "" {
			return errors.New("selector and text are required for 'type'")
		}
	case "press":
		if text == "" {
			return errors.New("text (key) is required for 'press'")
		}
	case "content", "scroll", "wait", "back", "forward", "reload", "screenshot":
	default:
		return fmt.Errorf("invalid action %q", action)
	}
	return nil
}
