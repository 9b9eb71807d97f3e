package actions

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/booksweep/booksweep/pkg/browser"
	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
	"github.com/booksweep/booksweep/pkg/variables"
)

// LoopElementsAction iterates over the rows of a list, optionally filters
// them by a date field, and runs the step's sub-steps once per kept row.
// Item failures are absorbed at the row boundary so one bad row never sinks
// the rest of the list. The number of completed rows is stored under
// loop_processed_count.
type LoopElementsAction struct {
	step *models.Step
}

func (a *LoopElementsAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	logger.Info("Starting loop processing")

	var filterDate time.Time

	filterSet := false

	if a.step.FilterDateFrom != "" {
		resolved := ectx.Vars.Resolve(a.step.FilterDateFrom)
		if t, ok := variables.ParseDate(resolved); ok {
			filterDate = t
			filterSet = true

			logger.Info("Filtering items", "from", resolved)
		} else {
			logger.Warn("Could not parse filter date, processing all items", "value", resolved)
		}
	}

	var rows browser.Locator
	if a.step.ContainerSelector != "" {
		rows = ectx.Page.Locator(a.step.ContainerSelector).Locator(a.step.ItemSelector)
	} else {
		rows = ectx.Page.Locator(a.step.ItemSelector)
	}

	count, err := rows.Count(ctx)
	if err != nil {
		return "", protocol.Failf("failed to count loop items: %w", err)
	}

	logger.Info("Found elements to process", "count", count)

	indices := make([]int, count)
	for i := range indices {
		indices[i] = i
	}

	if a.step.Reverse() {
		for left, right := 0, len(indices)-1; left < right; left, right = left+1, right-1 {
			indices[left], indices[right] = indices[right], indices[left]
		}

		logger.Info("Processing in reverse order")
	}

	processed := 0
	skipped := 0

	for _, i := range indices {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		row := rows.Nth(i)

		if filterSet && a.step.DateFieldSelector != "" {
			if before, ok := rowBeforeDate(ctx, row, a.step, filterDate); ok && before {
				skipped++

				continue
			}
		}

		itemLogger := logger.With("item", processed+1)
		itemLogger.Info("Processing item")

		if a.step.ActionSelector != "" {
			button := row.Locator(a.step.ActionSelector).First()

			visible, err := button.IsVisible(ctx, 2*time.Second)
			if err != nil || !visible {
				itemLogger.Warn("Action button not visible, skipping item")

				continue
			}

			if err := button.Click(ctx); err != nil {
				itemLogger.Warn("Could not click action button", "error", err)

				continue
			}

			sleep(ctx, time.Second)
		}

		if err := ectx.RunSubSteps(ctx, a.step.SubSteps); err != nil {
			itemLogger.Warn("Sub-step failed", "error", err)
		}

		processed++
		itemLogger.Info("Item completed")
	}

	logger.Info("Loop processing complete", "processed", processed, "skipped", skipped)
	ectx.Vars.Set("loop_processed_count", processed)

	return "", nil
}

// rowBeforeDate reads the row's date field and reports whether it falls
// before the filter date. The second return is false when the field cannot
// be read or parsed, in which case the row is kept.
func rowBeforeDate(ctx context.Context, row browser.Locator, step *models.Step, filterDate time.Time) (bool, bool) {
	text, err := row.Locator(step.DateFieldSelector).First().TextContent(ctx)
	if err != nil || strings.TrimSpace(text) == "" {
		return false, false
	}

	rowDate, ok := dateFromRange(text, step.DateExtractMode)
	if !ok {
		return false, false
	}

	return rowDate.Before(filterDate), true
}

// dateFromRange parses either a bare date or an "A - B" range, taking the
// start or end according to mode (start by default).
func dateFromRange(text, mode string) (time.Time, bool) {
	text = strings.TrimSpace(text)

	if start, end, found := strings.Cut(text, " - "); found {
		if mode == "end" {
			return variables.ParseDate(strings.TrimSpace(end))
		}

		return variables.ParseDate(strings.TrimSpace(start))
	}

	return variables.ParseDate(text)
}
