// Package browser defines the capability surface the engine consumes from a
// remote-controlled browser. The engine never depends on a concrete driver;
// handlers receive a Page and operate through these interfaces only.
package browser

import (
	"context"
	"time"
)

// NavigateOptions tunes a navigation: WaitUntil is the driver's load
// condition ("domcontentloaded" by default), Timeout bounds the whole call.
type NavigateOptions struct {
	WaitUntil string
	Timeout   time.Duration
}

// Page is one browser tab. The handle is mutable shared state owned by the
// chain driver: exactly one engine holds it at a time, and handlers that
// open new tabs swap it via the execution context.
type Page interface {
	// URL returns the current address without blocking.
	URL() string

	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	Reload(ctx context.Context, timeout time.Duration) error

	// WaitForURL blocks until the current URL matches pattern (glob or
	// substring, driver-defined) or the timeout expires.
	WaitForURL(ctx context.Context, pattern string, timeout time.Duration) error

	// WaitForSelector blocks until an element matching selector is visible.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	Locator(selector string) Locator

	// Evaluate runs an expression or zero-argument arrow function in page
	// context and returns its JSON-compatible result.
	Evaluate(ctx context.Context, script string) (any, error)

	Press(ctx context.Context, key string) error
	Screenshot(ctx context.Context, path string) error
	Content(ctx context.Context) (string, error)

	// ExpectDownload runs trigger and waits for the download it provokes.
	// A nil trigger just waits for the next download event.
	ExpectDownload(ctx context.Context, timeout time.Duration, trigger func() error) (Download, error)

	// ExpectPage runs trigger and returns the page handle of the tab it
	// spawned, loaded to at least domcontentloaded.
	ExpectPage(ctx context.Context, timeout time.Duration, trigger func() error) (Page, error)
}

// Locator is a lazy element query. Operations resolve the query at call
// time against the live DOM.
type Locator interface {
	First() Locator
	Nth(i int) Locator
	Count(ctx context.Context) (int, error)

	// IsVisible waits up to timeout for the element to become visible and
	// reports the outcome. A missing element is not an error.
	IsVisible(ctx context.Context, timeout time.Duration) (bool, error)
	WaitVisible(ctx context.Context, timeout time.Duration) error

	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	TextContent(ctx context.Context) (string, error)
	InputValue(ctx context.Context) (string, error)
	GetAttribute(ctx context.Context, name string) (string, error)
	IsChecked(ctx context.Context) (bool, error)
	ScrollIntoView(ctx context.Context) error

	// Locator narrows the query relative to this element.
	Locator(selector string) Locator

	// Evaluate runs script with the matched element bound as `el`.
	Evaluate(ctx context.Context, script string) (any, error)
}

// Download is one captured browser download.
type Download interface {
	SuggestedFilename() string

	// Path blocks until the download finishes and returns the temp file.
	Path(ctx context.Context) (string, error)

	// Failure returns the failure reason, or "" when the download succeeded.
	Failure(ctx context.Context) (string, error)

	SaveAs(ctx context.Context, path string) error
}
