package actions

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

// ClickAction clicks the first visible selector. With expect_new_tab set it
// waits for the tab the click opens and swaps the execution context's page
// handle to it.
type ClickAction struct {
	step *models.Step
}

func (a *ClickAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	timeout := timeoutOr(a.step.Timeout, 10*time.Second)
	perSelector := timeout / time.Duration(max(len(a.step.Selectors), 1))

	locator, ok := firstVisible(ctx, ectx.Page, a.step.Selectors, perSelector)
	if !ok {
		logger.Error("No clickable element found", "selectors", a.step.Selectors)

		return "", protocol.Failf("no matching selector found for click: %v", a.step.Selectors)
	}

	if a.step.ExpectNewTab {
		newPage, err := ectx.Page.ExpectPage(ctx, timeout, func() error {
			return locator.Click(ctx)
		})
		if err != nil {
			return "", protocol.Failf("click did not open a new tab: %w", err)
		}

		ectx.Page = newPage
		logger.Info("Switched to new tab", "url", newPage.URL())
	} else {
		if err := locator.Click(ctx); err != nil {
			return "", protocol.Failf("click failed: %w", err)
		}

		logger.Info("Clicked element")
	}

	waitAfter(ctx, a.step)

	return "", nil
}

// CheckURLAction routes on the current URL. Conditions are evaluated in
// declaration order; the first match wins and its goto_step is returned,
// otherwise default_step. An empty result falls through to the next step.
// The check itself never fails the workflow.
type CheckURLAction struct {
	step *models.Step
}

func (a *CheckURLAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	current := ectx.Page.URL()
	logger.Info("Checking URL", "url", current)

	lowered := strings.ToLower(current)

	for _, cond := range a.step.Conditions {
		if cond.Contains != "" && strings.Contains(lowered, strings.ToLower(cond.Contains)) {
			logger.Info("URL condition matched", "contains", cond.Contains, "goto", cond.GotoStep)

			return cond.GotoStep, nil
		}

		if cond.Matches != "" {
			re, err := regexp.Compile(cond.Matches)
			if err != nil {
				logger.Warn("Skipping invalid URL pattern", "pattern", cond.Matches, "error", err)

				continue
			}

			if re.MatchString(current) {
				logger.Info("URL condition matched", "matches", cond.Matches, "goto", cond.GotoStep)

				return cond.GotoStep, nil
			}
		}
	}

	if a.step.DefaultStep != "" {
		logger.Info("No URL condition matched, taking default", "goto", a.step.DefaultStep)
	}

	return a.step.DefaultStep, nil
}
