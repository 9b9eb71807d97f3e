package actions

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

// checkedColumnsScript inspects the report's column picker and returns the
// labels of every currently checked column checkbox. It runs in page
// context so one round trip sees the whole panel.
const checkedColumnsScript = `(() => {
	const boxes = document.querySelectorAll('input[type="checkbox"]');
	const labels = [];
	for (const box of boxes) {
		if (!box.checked) continue;
		const label = box.closest('label') || document.querySelector('label[for="' + box.id + '"]');
		const text = label ? label.textContent.trim() : '';
		if (text) labels.push(text);
	}
	return labels;
})()`

// DeselectAllColumnsAction unchecks every checked column except the ones
// named in the step's except list. Discovery runs through page script so
// the step only touches boxes that are actually checked; re-running it is
// a no-op.
type DeselectAllColumnsAction struct {
	step *models.Step
}

func (a *DeselectAllColumnsAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	script := a.step.Script
	if script == "" {
		script = checkedColumnsScript
	}

	result, err := ectx.Page.Evaluate(ctx, script)
	if err != nil {
		return "", protocol.Failf("failed to discover checked columns: %w", err)
	}

	checked := toStringList(result)
	logger.Info("Discovered checked columns", "count", len(checked), "columns", checked)

	keep := make(map[string]bool, len(a.step.Except))
	for _, name := range a.step.Except {
		keep[strings.ToLower(strings.TrimSpace(name))] = true
	}

	failures := 0
	toggled := 0

	for _, label := range checked {
		if keep[strings.ToLower(strings.TrimSpace(label))] {
			continue
		}

		if err := toggleColumnByLabel(ctx, ectx, label); err != nil {
			logger.Warn("Failed to deselect column", "column", label, "error", err)

			failures++

			continue
		}

		toggled++
	}

	logger.Info("Columns deselected", "toggled", toggled, "failures", failures)

	if failures > 0 {
		return "", protocol.Failf("failed to deselect %d columns", failures)
	}

	waitAfter(ctx, a.step)

	return "", nil
}

// SelectColumnsAction checks each named column, clicking only boxes that
// are not already checked. A fully selected panel produces zero clicks.
type SelectColumnsAction struct {
	step *models.Step
}

func (a *SelectColumnsAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	timeout := timeoutOr(a.step.Timeout, 5*time.Second)

	failures := 0
	toggled := 0

	for _, column := range a.step.Columns {
		locator := ectx.Page.Locator(column.Selector).First()

		visible, err := locator.IsVisible(ctx, timeout)
		if err != nil || !visible {
			logger.Warn("Column checkbox not found", "column", column.Name, "selector", column.Selector)

			failures++

			continue
		}

		checked, err := locator.IsChecked(ctx)
		if err != nil {
			logger.Warn("Failed to read column state", "column", column.Name, "error", err)

			failures++

			continue
		}

		if checked {
			continue
		}

		if err := locator.ScrollIntoView(ctx); err == nil {
			err = locator.Click(ctx)
		}

		if err != nil {
			logger.Warn("Failed to select column", "column", column.Name, "error", err)

			failures++

			continue
		}

		toggled++
		logger.Info("Column selected", "column", column.Name)
	}

	logger.Info("Columns selected", "toggled", toggled, "failures", failures)

	if failures > 0 {
		return "", protocol.Failf("failed to select %d of %d columns", failures, len(a.step.Columns))
	}

	waitAfter(ctx, a.step)

	return "", nil
}

// toggleColumnByLabel clicks the checkbox attached to a column label.
func toggleColumnByLabel(ctx context.Context, ectx *protocol.ExecutionContext, label string) error {
	script := `(() => {
		const wanted = ` + jsString(label) + `;
		const boxes = document.querySelectorAll('input[type="checkbox"]');
		for (const box of boxes) {
			const label = box.closest('label') || document.querySelector('label[for="' + box.id + '"]');
			const text = label ? label.textContent.trim() : '';
			if (text === wanted && box.checked) { box.click(); return true; }
		}
		return false;
	})()`

	result, err := ectx.Page.Evaluate(ctx, script)
	if err != nil {
		return err
	}

	if clicked, ok := result.(bool); !ok || !clicked {
		return protocol.Failf("checkbox for column %q not found or already unchecked", label)
	}

	return nil
}

// toStringList flattens a JSON-ish Evaluate result into strings.
func toStringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))

	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}

	return out
}

// jsString quotes a Go string as a JavaScript string literal.
func jsString(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)

	return "'" + replacer.Replace(s) + "'"
}
