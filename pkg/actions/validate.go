package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

// pageStateScript summarizes the rendered report: visible table headers and
// the number of body rows. One evaluation keeps validation cheap even on
// large reports.
const pageStateScript = `(() => {
	const headers = [];
	for (const th of document.querySelectorAll('th, [role="columnheader"]')) {
		const text = th.textContent.trim();
		if (text) headers.push(text);
	}
	let rows = 0;
	for (const body of document.querySelectorAll('tbody')) {
		rows += body.querySelectorAll('tr').length;
	}
	if (rows === 0) rows = document.querySelectorAll('[role="row"]').length;
	return { headers: headers, rows: rows };
})()`

// ValidateFiltersAction checks the rendered report against the step's
// expectations and records the outcome. Failed checks are advisory by
// default; fail_on_error promotes them to step failures.
type ValidateFiltersAction struct {
	step *models.Step
}

func (a *ValidateFiltersAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	result, err := ectx.Page.Evaluate(ctx, pageStateScript)
	if err != nil {
		logger.Warn("Failed to inspect page state", "error", err)

		if a.step.FailOnError {
			return "", protocol.Failf("validation could not inspect page: %w", err)
		}

		return "", nil
	}

	headers, rows := decodePageState(result)

	var (
		passed []string
		errs   []string
	)

	for _, expected := range a.step.Checks.ExpectedColumns {
		if containsFold(headers, expected) {
			passed = append(passed, fmt.Sprintf("column %q present", expected))

			continue
		}

		errs = append(errs, fmt.Sprintf("column %q missing", expected))
	}

	if a.step.Checks.MinRows > 0 {
		if rows >= a.step.Checks.MinRows {
			passed = append(passed, fmt.Sprintf("%d rows (min %d)", rows, a.step.Checks.MinRows))
		} else {
			errs = append(errs, fmt.Sprintf("%d rows, expected at least %d", rows, a.step.Checks.MinRows))
		}
	}

	ectx.Recorder.Validation(passed, errs)

	if len(errs) > 0 {
		logger.Warn("Validation checks failed", "passed", len(passed), "failed", len(errs), "errors", errs)

		if a.step.FailOnError {
			return "", protocol.Failf("validation failed: %s", strings.Join(errs, "; "))
		}

		return "", nil
	}

	logger.Info("Validation checks passed", "checks", len(passed))

	return "", nil
}

func decodePageState(value any) ([]string, int) {
	state, ok := value.(map[string]any)
	if !ok {
		return nil, 0
	}

	headers := toStringList(state["headers"])

	rows := 0
	if n, ok := state["rows"].(float64); ok {
		rows = int(n)
	}

	return headers, rows
}

func containsFold(haystack []string, needle string) bool {
	for _, item := range haystack {
		if strings.EqualFold(strings.TrimSpace(item), strings.TrimSpace(needle)) {
			return true
		}

		if strings.Contains(strings.ToLower(item), strings.ToLower(needle)) {
			return true
		}
	}

	return false
}
