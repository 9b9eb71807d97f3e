package actions

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

// WaitForURLAction blocks until the page URL matches one of the step's
// patterns. Every pattern shares the full timeout budget in turn; failure is
// reported as a timeout so optional steps branch through on_timeout.
type WaitForURLAction struct {
	step *models.Step
}

func (a *WaitForURLAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	timeout := timeoutOr(a.step.Timeout, 30*time.Second)

	patterns := a.step.Patterns
	if len(patterns) == 0 && a.step.WaitForURL != "" {
		patterns = []string{a.step.WaitForURL}
	}

	logger.Info("Waiting for URL", "patterns", patterns, "timeout", timeout)

	var lastErr error

	for _, pattern := range patterns {
		resolved := ectx.Vars.Resolve(pattern)

		if err := ectx.Page.WaitForURL(ctx, resolved, timeout); err != nil {
			lastErr = err

			continue
		}

		logger.Info("URL matched", "pattern", resolved, "url", ectx.Page.URL())
		waitAfter(ctx, a.step)

		return "", nil
	}

	diagnose(ctx, ectx, logger, a.step.ID)

	return "", protocol.Timeoutf("timed out waiting for URL %v (current %s): %w", patterns, ectx.Page.URL(), lastErr)
}

// WaitForSelectorAction blocks until the first of the step's selectors is
// visible. The budget is split evenly across selectors.
type WaitForSelectorAction struct {
	step *models.Step
}

func (a *WaitForSelectorAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	timeout := timeoutOr(a.step.Timeout, 30*time.Second)
	perSelector := timeout / time.Duration(max(len(a.step.Selectors), 1))

	logger.Info("Waiting for selector", "selectors", a.step.Selectors, "timeout", timeout)

	for _, selector := range a.step.Selectors {
		if err := ectx.Page.WaitForSelector(ctx, selector, perSelector); err != nil {
			continue
		}

		logger.Info("Selector visible", "selector", selector)
		waitAfter(ctx, a.step)

		return "", nil
	}

	diagnose(ctx, ectx, logger, a.step.ID)

	return "", protocol.Timeoutf("timed out waiting for selectors %v", a.step.Selectors)
}

// diagnose drops a screenshot beside the downloads so a failed wait can be
// inspected after the run. Best effort only.
func diagnose(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger, stepID string) {
	if ectx.DownloadsDir == "" {
		return
	}

	path := filepath.Join(ectx.DownloadsDir, fmt.Sprintf("debug_%s_%s.png", ectx.ExecutionID, stepID))

	if err := ectx.Page.Screenshot(ctx, path); err != nil {
		logger.Warn("Failed to capture diagnostic screenshot", "error", err)

		return
	}

	logger.Info("Captured diagnostic screenshot", "path", path)
}
