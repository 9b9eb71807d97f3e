package actions

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/booksweep/booksweep/pkg/browser"
	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

// GotoAction loads a URL. Some pages swallow same-document navigations, so
// when the address is unchanged afterwards it forces one reload. Navigation
// failures are soft: the engine falls back to the step's on_error branch.
type GotoAction struct {
	step *models.Step
}

func (a *GotoAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	url := ectx.Vars.Resolve(a.step.URL)
	timeout := timeoutOr(a.step.Timeout, 30*time.Second)

	waitUntil := a.step.WaitUntil
	if waitUntil == "" {
		waitUntil = "domcontentloaded"
	}

	from := ectx.Page.URL()
	logger.Info("Navigating", "from", from, "to", url)

	err := ectx.Page.Navigate(ctx, url, browser.NavigateOptions{WaitUntil: waitUntil, Timeout: timeout})
	if err != nil {
		logger.Error("Navigation failed", "url", url, "error", err)

		return "", err
	}

	waitAfter(ctx, a.step)

	now := ectx.Page.URL()
	if now == from && !strings.Contains(from, url) {
		logger.Warn("Page URL unchanged after navigation, reloading", "url", url)

		if err := ectx.Page.Reload(ctx, timeout); err != nil {
			logger.Error("Reload failed", "url", url, "error", err)

			return "", err
		}

		now = ectx.Page.URL()
	}

	ectx.Recorder.Navigation(from, now)
	logger.Info("Page loaded", "url", now)

	return "", nil
}

// PressKeyAction sends a keyboard key to the page, Enter by default.
type PressKeyAction struct {
	step *models.Step
}

func (a *PressKeyAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	key := a.step.Key
	if key == "" {
		key = "Enter"
	}

	logger.Info("Pressing key", "key", key)

	if err := ectx.Page.Press(ctx, key); err != nil {
		return "", protocol.Failf("failed to press key %q: %w", key, err)
	}

	waitAfter(ctx, a.step)

	return "", nil
}
