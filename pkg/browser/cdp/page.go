package cdp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/booksweep/booksweep/pkg/browser"
)

const pollInterval = 100 * time.Millisecond

// Page is one attached page target. It implements browser.Page.
type Page struct {
	client    *Client
	sessionID string
	targetID  string

	downloadsDir string

	mu        sync.Mutex
	url       string
	downloads map[string]*download
	newTarget chan string
}

// AttachOptions configures target attachment.
type AttachOptions struct {
	// DownloadsDir is where the browser writes download files. Required for
	// download capture.
	DownloadsDir string
}

// Attach connects to the first open page target, creating one when the
// browser has none.
func Attach(ctx context.Context, client *Client, opts AttachOptions) (*Page, error) {
	var targets struct {
		TargetInfos []struct {
			TargetID string `json:"targetId"`
			Type     string `json:"type"`
			URL      string `json:"url"`
		} `json:"targetInfos"`
	}

	if err := client.Call(ctx, "", "Target.getTargets", map[string]any{}, &targets); err != nil {
		return nil, err
	}

	targetID := ""

	for _, target := range targets.TargetInfos {
		if target.Type == "page" {
			targetID = target.TargetID

			break
		}
	}

	if targetID == "" {
		var created struct {
			TargetID string `json:"targetId"`
		}

		err := client.Call(ctx, "", "Target.createTarget", map[string]any{"url": "about:blank"}, &created)
		if err != nil {
			return nil, fmt.Errorf("failed to create page target: %w", err)
		}

		targetID = created.TargetID
	}

	return attachTarget(ctx, client, targetID, opts.DownloadsDir)
}

func attachTarget(ctx context.Context, client *Client, targetID, downloadsDir string) (*Page, error) {
	var attached struct {
		SessionID string `json:"sessionId"`
	}

	err := client.Call(ctx, "", "Target.attachToTarget", map[string]any{
		"targetId": targetID,
		"flatten":  true,
	}, &attached)
	if err != nil {
		return nil, fmt.Errorf("failed to attach to target: %w", err)
	}

	page := &Page{
		client:       client,
		sessionID:    attached.SessionID,
		targetID:     targetID,
		downloadsDir: downloadsDir,
		downloads:    make(map[string]*download),
		newTarget:    make(chan string, 4),
	}

	if err := page.enableDomains(ctx); err != nil {
		return nil, err
	}

	page.subscribeEvents()

	if url, err := page.currentURL(ctx); err == nil {
		page.setURL(url)
	}

	return page, nil
}

func (p *Page) enableDomains(ctx context.Context) error {
	for _, method := range []string{"Page.enable", "Runtime.enable"} {
		if err := p.client.Call(ctx, p.sessionID, method, map[string]any{}, nil); err != nil {
			return fmt.Errorf("%s failed: %w", method, err)
		}
	}

	if p.downloadsDir != "" {
		err := p.client.Call(ctx, "", "Browser.setDownloadBehavior", map[string]any{
			"behavior":      "allowAndName",
			"downloadPath":  p.downloadsDir,
			"eventsEnabled": true,
		}, nil)
		if err != nil {
			return fmt.Errorf("failed to enable downloads: %w", err)
		}
	}

	return nil
}

func (p *Page) subscribeEvents() {
	p.client.On(p.sessionID, "Page.frameNavigated", func(params json.RawMessage) {
		var event struct {
			Frame struct {
				URL      string  `json:"url"`
				ParentID *string `json:"parentId"`
			} `json:"frame"`
		}

		if json.Unmarshal(params, &event) == nil && event.Frame.ParentID == nil {
			p.setURL(event.Frame.URL)
		}
	})

	// Download events arrive on the browser session.
	p.client.On("", "Browser.downloadWillBegin", func(params json.RawMessage) {
		var event struct {
			GUID              string `json:"guid"`
			SuggestedFilename string `json:"suggestedFilename"`
		}

		if json.Unmarshal(params, &event) != nil {
			return
		}

		p.mu.Lock()
		p.downloads[event.GUID] = newDownload(event.GUID, event.SuggestedFilename, filepath.Join(p.downloadsDir, event.GUID))
		p.mu.Unlock()
	})

	p.client.On("", "Browser.downloadProgress", func(params json.RawMessage) {
		var event struct {
			GUID  string `json:"guid"`
			State string `json:"state"`
		}

		if json.Unmarshal(params, &event) != nil {
			return
		}

		p.mu.Lock()
		dl := p.downloads[event.GUID]
		p.mu.Unlock()

		if dl != nil {
			dl.progress(event.State)
		}
	})

	p.client.On("", "Target.targetCreated", func(params json.RawMessage) {
		var event struct {
			TargetInfo struct {
				TargetID string `json:"targetId"`
				Type     string `json:"type"`
			} `json:"targetInfo"`
		}

		if json.Unmarshal(params, &event) != nil || event.TargetInfo.Type != "page" {
			return
		}

		select {
		case p.newTarget <- event.TargetInfo.TargetID:
		default:
		}
	})
}

func (p *Page) setURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

func (p *Page) currentURL(ctx context.Context) (string, error) {
	result, err := p.Evaluate(ctx, "window.location.href")
	if err != nil {
		return "", err
	}

	url, _ := result.(string)

	return url, nil
}

// URL returns the last observed main-frame address.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.url
}

// Navigate loads a URL and waits for the document to reach the requested
// load state ("domcontentloaded" or "load").
func (p *Page) Navigate(ctx context.Context, url string, opts browser.NavigateOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result struct {
		ErrorText string `json:"errorText"`
	}

	if err := p.client.Call(ctx, p.sessionID, "Page.navigate", map[string]any{"url": url}, &result); err != nil {
		return err
	}

	if result.ErrorText != "" {
		return fmt.Errorf("navigation to %s failed: %s", url, result.ErrorText)
	}

	p.setURL(url)

	return p.waitReadyState(ctx, opts.WaitUntil)
}

// Reload reloads the current page and waits for it to settle.
func (p *Page) Reload(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.client.Call(ctx, p.sessionID, "Page.reload", map[string]any{}, nil); err != nil {
		return err
	}

	return p.waitReadyState(ctx, "load")
}

// waitReadyState polls document.readyState until it reaches the wanted
// load condition.
func (p *Page) waitReadyState(ctx context.Context, waitUntil string) error {
	wanted := "interactive"
	if waitUntil == "load" {
		wanted = "complete"
	}

	for {
		result, err := p.Evaluate(ctx, "document.readyState")
		if err == nil {
			state, _ := result.(string)
			if state == "complete" || state == wanted {
				if url, err := p.currentURL(ctx); err == nil {
					p.setURL(url)
				}

				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("page did not finish loading: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// WaitForURL blocks until the address matches pattern. Patterns are
// substrings, with '*' acting as a wildcard.
func (p *Page) WaitForURL(ctx context.Context, pattern string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		url, err := p.currentURL(ctx)
		if err == nil {
			p.setURL(url)

			if matchURL(url, pattern) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("URL did not match %q: %w", pattern, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// WaitForSelector blocks until an element matching selector is visible.
func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	visible, err := p.Locator(selector).First().IsVisible(ctx, timeout)
	if err != nil {
		return err
	}

	if !visible {
		return fmt.Errorf("selector %q not visible within %s", selector, timeout)
	}

	return nil
}

// Locator builds a lazy element query.
func (p *Page) Locator(selector string) browser.Locator {
	return &locator{page: p, steps: []locatorStep{{selector: selector}}}
}

// Evaluate runs an expression in page context and returns its value.
func (p *Page) Evaluate(ctx context.Context, script string) (any, error) {
	var result struct {
		Result struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text      string `json:"text"`
			Exception *struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}

	err := p.client.Call(ctx, p.sessionID, "Runtime.evaluate", map[string]any{
		"expression":    script,
		"returnByValue": true,
		"awaitPromise":  true,
	}, &result)
	if err != nil {
		return nil, err
	}

	if details := result.ExceptionDetails; details != nil {
		description := details.Text
		if details.Exception != nil && details.Exception.Description != "" {
			description = details.Exception.Description
		}

		return nil, fmt.Errorf("script threw: %s", description)
	}

	if len(result.Result.Value) == 0 {
		return nil, nil
	}

	var value any
	if err := json.Unmarshal(result.Result.Value, &value); err != nil {
		return nil, fmt.Errorf("failed to parse script result: %w", err)
	}

	return value, nil
}

// Press dispatches a key press to the focused element.
func (p *Page) Press(ctx context.Context, key string) error {
	definition, ok := keyDefinitions[key]
	if !ok {
		definition = keyDefinition{key: key, text: key}
	}

	down := map[string]any{
		"type":                  "keyDown",
		"key":                   definition.key,
		"code":                  definition.code,
		"windowsVirtualKeyCode": definition.keyCode,
	}
	if definition.text != "" {
		down["text"] = definition.text
	}

	if err := p.client.Call(ctx, p.sessionID, "Input.dispatchKeyEvent", down, nil); err != nil {
		return err
	}

	up := map[string]any{
		"type":                  "keyUp",
		"key":                   definition.key,
		"code":                  definition.code,
		"windowsVirtualKeyCode": definition.keyCode,
	}

	return p.client.Call(ctx, p.sessionID, "Input.dispatchKeyEvent", up, nil)
}

// Screenshot captures the viewport as PNG.
func (p *Page) Screenshot(ctx context.Context, path string) error {
	var result struct {
		Data string `json:"data"`
	}

	err := p.client.Call(ctx, p.sessionID, "Page.captureScreenshot", map[string]any{"format": "png"}, &result)
	if err != nil {
		return err
	}

	data, err := base64.StdEncoding.DecodeString(result.Data)
	if err != nil {
		return fmt.Errorf("failed to decode screenshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Content returns the page's rendered HTML.
func (p *Page) Content(ctx context.Context) (string, error) {
	result, err := p.Evaluate(ctx, "document.documentElement.outerHTML")
	if err != nil {
		return "", err
	}

	html, _ := result.(string)

	return html, nil
}

// ExpectDownload runs trigger and waits for the download it provokes. With
// a nil trigger it waits for the next download to begin.
func (p *Page) ExpectDownload(ctx context.Context, timeout time.Duration, trigger func() error) (browser.Download, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p.mu.Lock()
	known := make(map[string]bool, len(p.downloads))
	for guid := range p.downloads {
		known[guid] = true
	}
	p.mu.Unlock()

	if trigger != nil {
		if err := trigger(); err != nil {
			return nil, err
		}
	}

	for {
		p.mu.Lock()

		var found *download

		for guid, dl := range p.downloads {
			if !known[guid] {
				found = dl

				break
			}
		}
		p.mu.Unlock()

		if found != nil {
			return found, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("no download started: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// ExpectPage runs trigger and attaches to the tab it opens.
func (p *Page) ExpectPage(ctx context.Context, timeout time.Duration, trigger func() error) (browser.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.client.Call(ctx, "", "Target.setDiscoverTargets", map[string]any{"discover": true}, nil)
	if err != nil {
		return nil, err
	}

	// Drain stale notifications before triggering.
	for {
		select {
		case <-p.newTarget:
			continue
		default:
		}

		break
	}

	if trigger != nil {
		if err := trigger(); err != nil {
			return nil, err
		}
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("no new tab opened: %w", ctx.Err())
	case targetID := <-p.newTarget:
		newPage, err := attachTarget(ctx, p.client, targetID, p.downloadsDir)
		if err != nil {
			return nil, err
		}

		_ = newPage.waitReadyState(ctx, "domcontentloaded")

		return newPage, nil
	}
}

// matchURL reports whether url matches pattern: an exact match, a
// substring, or a glob where '*' matches anything.
func matchURL(url, pattern string) bool {
	if pattern == "" {
		return true
	}

	if !strings.Contains(pattern, "*") {
		return url == pattern || strings.Contains(url, pattern)
	}

	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}

	re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return false
	}

	return re.MatchString(url)
}

type keyDefinition struct {
	key     string
	code    string
	keyCode int
	text    string
}

var keyDefinitions = map[string]keyDefinition{
	"Enter":     {key: "Enter", code: "Enter", keyCode: 13, text: "\r"},
	"Tab":       {key: "Tab", code: "Tab", keyCode: 9},
	"Escape":    {key: "Escape", code: "Escape", keyCode: 27},
	"Backspace": {key: "Backspace", code: "Backspace", keyCode: 8},
	"ArrowDown": {key: "ArrowDown", code: "ArrowDown", keyCode: 40},
	"ArrowUp":   {key: "ArrowUp", code: "ArrowUp", keyCode: 38},
}
