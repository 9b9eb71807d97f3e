package actions

import (
	"context"
	"log/slog"
	"time"

	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

// EnsureCheckedAction drives a checkbox to a desired state, clicking only
// when the live state differs. Re-running the step is a no-op.
type EnsureCheckedAction struct {
	step *models.Step
}

func (a *EnsureCheckedAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	timeout := timeoutOr(a.step.Timeout, 5*time.Second)
	want := a.step.WantChecked()

	if err := ensureChecked(ctx, ectx, logger, a.step.Selectors, want, timeout); err != nil {
		return "", err
	}

	waitAfter(ctx, a.step)

	return "", nil
}

// BatchEnsureCheckedAction applies ensure_checked to a list of checkboxes.
// Entries are independent: later entries still run after an earlier one
// fails, and the step fails only when at least one entry failed.
type BatchEnsureCheckedAction struct {
	step *models.Step
}

func (a *BatchEnsureCheckedAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	timeout := timeoutOr(a.step.Timeout, 5*time.Second)

	failures := 0

	for i, box := range a.step.Checkboxes {
		if err := ensureChecked(ctx, ectx, logger, box.Selectors, box.WantChecked(), timeout); err != nil {
			logger.Warn("Checkbox entry failed", "index", i, "error", err)

			failures++
		}
	}

	if failures > 0 {
		return "", protocol.Failf("%d of %d checkboxes could not be set", failures, len(a.step.Checkboxes))
	}

	waitAfter(ctx, a.step)

	return "", nil
}

func ensureChecked(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger, selectors []string, want bool, timeout time.Duration) error {
	perSelector := timeout / time.Duration(max(len(selectors), 1))

	locator, ok := firstVisible(ctx, ectx.Page, selectors, perSelector)
	if !ok {
		return protocol.Failf("no checkbox found for selectors %v", selectors)
	}

	checked, err := locator.IsChecked(ctx)
	if err != nil {
		return protocol.Failf("failed to read checkbox state: %w", err)
	}

	if checked == want {
		logger.Info("Checkbox already in desired state", "checked", checked)

		return nil
	}

	if err := locator.Click(ctx); err != nil {
		return protocol.Failf("failed to toggle checkbox: %w", err)
	}

	logger.Info("Checkbox toggled", "checked", want)

	return nil
}
