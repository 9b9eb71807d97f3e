package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
	"github.com/booksweep/booksweep/pkg/variables"
)

const defaultListReadySelector = ".xui-contentblockitem"

// vatBlockedStateScript classifies list pages that can never yield exports.
// It returns a short reason code or null when the list looks usable.
const vatBlockedStateScript = `(() => {
	const pageText = document.body.innerText || '';
	if (pageText.includes('could not access outstanding VAT returns from HMRC')) {
		return 'hmrc_access_error';
	}
	if (pageText.includes('VAT registration number needs to be entered')) {
		return 'no_vat_registration';
	}
	if (pageText.includes('Filed VAT returns will be shown here') &&
		!document.querySelector('button[data-automationid*="row-button"]')) {
		return 'no_vat_returns';
	}
	return null;
})()`

var vatBlockedReasons = map[string]string{
	"hmrc_access_error":   "Cannot access HMRC - VAT registration missing",
	"no_vat_registration": "No VAT registration number configured",
	"no_vat_returns":      "No VAT returns available to export",
}

// vatDiscoveryScript lists the period rows on the returns page. Button ids
// deduplicate rows the page renders twice during hydration.
const vatDiscoveryScript = `(() => {
	const results = [];
	const seenButtonIds = new Set();
	const items = document.querySelectorAll('.xui-contentblockitem');

	items.forEach((item, index) => {
		const datePara = item.querySelector('p[class*="vat-list-contentblock-title"]') ||
			item.querySelector('.xui-contentblockitem--primaryheading p');
		if (!datePara) return;

		const text = datePara.textContent.trim();
		const dateMatch = text.match(/^(\d{1,2} \w{3} \d{4})\s*[-–]\s*(\d{1,2} \w{3} \d{4})$/);
		if (!dateMatch) return;

		const reviewBtn = item.querySelector('button[data-automationid*="row-button"]');
		if (!reviewBtn) return;

		const automationId = reviewBtn.getAttribute('data-automationid') || '';
		if (!automationId || seenButtonIds.has(automationId)) return;

		seenButtonIds.add(automationId);
		results.push({
			dateRange: text,
			startDate: dateMatch[1],
			endDate: dateMatch[2],
			index: index,
			buttonId: automationId
		});
	});

	return results;
})()`

// vatPreparationPromptScript detects the setup wizard some organisations
// land on instead of a filed return.
const vatPreparationPromptScript = `(() => {
	const pageText = document.body.innerText || '';
	return pageText.includes('How would you like to prepare your VAT');
})()`

// vatReturn is one discovered period row.
type vatReturn struct {
	dateRange string
	startDate string
	endDate   string
	buttonID  string
}

// LoopVATReturnsAction exports every filed VAT return on the current list
// page. Discovery runs in page script, rows older than the filter date are
// skipped, and the rest are processed oldest first: per row it clicks the
// review button, runs the sub-steps, and recovers back to the list when a
// row goes wrong. Blocked list pages (no registration, HMRC unreachable,
// nothing filed) end the step early with a recorded skip.
type LoopVATReturnsAction struct {
	step *models.Step
}

func (a *LoopVATReturnsAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	logger.Info("Starting VAT returns export")

	listReady := a.step.ListReadySelector
	if listReady == "" {
		listReady = defaultListReadySelector
	}

	// The list hydrates after load; give it a moment before inspecting.
	sleep(ctx, 3*time.Second)

	if err := ectx.Page.WaitForSelector(ctx, listReady, 15*time.Second); err != nil {
		logger.Warn("Could not detect returns list, continuing anyway")
	}

	if reason, blocked := a.blockedState(ctx, ectx); blocked {
		logger.Warn("Skipping VAT exports", "reason", reason)
		ectx.Vars.Set("loop_processed_count", 0)
		ectx.Recorder.Skip(reason, "VAT Returns Page")

		return "", nil
	}

	var filterDate time.Time

	filterSet := false

	if a.step.FilterDateFrom != "" {
		resolved := ectx.Vars.Resolve(a.step.FilterDateFrom)
		if t, ok := variables.ParseDate(resolved); ok {
			filterDate = t
			filterSet = true

			logger.Info("Exporting returns from filter date onwards", "from", resolved)
		}
	}

	returns, err := a.discover(ctx, ectx)
	if err != nil {
		return "", protocol.Failf("failed to discover VAT returns: %w", err)
	}

	logger.Info("Analyzed VAT returns on page", "found", len(returns))

	if a.step.Reverse() {
		for left, right := 0, len(returns)-1; left < right; left, right = left+1, right-1 {
			returns[left], returns[right] = returns[right], returns[left]
		}

		logger.Info("Processing in chronological order, oldest first")
	}

	var toProcess []vatReturn

	skipped := 0

	for _, vr := range returns {
		if filterSet {
			if rowDate, ok := variables.ParseDate(vr.startDate); ok && rowDate.Before(filterDate) {
				skipped++

				continue
			}
		}

		toProcess = append(toProcess, vr)
	}

	logger.Info("Processing plan", "export", len(toProcess), "skip", skipped)

	processedButtons := map[string]bool{}
	processed := 0

	for i, vr := range toProcess {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if processedButtons[vr.buttonID] {
			logger.Warn("Skipping period, already processed", "period", vr.dateRange)

			continue
		}

		itemLogger := logger.With("period", vr.dateRange, "progress", fmt.Sprintf("%d of %d", i+1, len(toProcess)))
		itemLogger.Info("Processing VAT return")

		ectx.Vars.Set("vat_return_period", vr.dateRange)
		ectx.Vars.Set("vat_return_start_date", vr.startDate)
		ectx.Vars.Set("vat_return_end_date", vr.endDate)
		ectx.Vars.Set("vat_return_progress", fmt.Sprintf("%d of %d", i+1, len(toProcess)))

		clicked, err := a.clickReview(ctx, ectx, vr)
		if err != nil || !clicked {
			itemLogger.Warn("Could not find review button", "error", err)

			continue
		}

		processedButtons[vr.buttonID] = true

		sleep(ctx, 3*time.Second)

		if a.preparationPrompt(ctx, ectx) {
			itemLogger.Warn("Skipping period, VAT preparation not configured")
			ectx.Recorder.Skip("VAT preparation not configured", vr.dateRange)
			a.recover(ctx, ectx, itemLogger, listReady)

			continue
		}

		if err := ectx.RunSubSteps(ctx, a.step.SubSteps); err != nil {
			itemLogger.Warn("Sub-step failed, recovering to list", "error", err)
			a.recover(ctx, ectx, itemLogger, listReady)

			continue
		}

		processed++
		itemLogger.Info("Completed export for period")

		sleep(ctx, 2*time.Second)

		if err := ectx.Page.WaitForSelector(ctx, listReady, 10*time.Second); err != nil {
			itemLogger.Warn("Returns list may not have reloaded, continuing")
		}
	}

	logger.Info("VAT returns export complete", "processed", processed, "of", len(toProcess), "skipped", skipped)
	ectx.Vars.Set("loop_processed_count", processed)

	return "", nil
}

func (a *LoopVATReturnsAction) blockedState(ctx context.Context, ectx *protocol.ExecutionContext) (string, bool) {
	result, err := ectx.Page.Evaluate(ctx, vatBlockedStateScript)
	if err != nil {
		return "", false
	}

	code, ok := result.(string)
	if !ok || code == "" {
		return "", false
	}

	if reason, ok := vatBlockedReasons[code]; ok {
		return reason, true
	}

	return code, true
}

func (a *LoopVATReturnsAction) discover(ctx context.Context, ectx *protocol.ExecutionContext) ([]vatReturn, error) {
	script := a.step.DiscoveryScript
	if script == "" {
		script = vatDiscoveryScript
	}

	result, err := ectx.Page.Evaluate(ctx, script)
	if err != nil {
		return nil, err
	}

	items, ok := result.([]any)
	if !ok {
		return nil, nil
	}

	returns := make([]vatReturn, 0, len(items))

	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}

		vr := vatReturn{
			dateRange: stringField(fields, "dateRange"),
			startDate: stringField(fields, "startDate"),
			endDate:   stringField(fields, "endDate"),
			buttonID:  stringField(fields, "buttonId"),
		}

		if vr.dateRange == "" {
			continue
		}

		returns = append(returns, vr)
	}

	return returns, nil
}

// clickReview clicks the row's review button by its automation id, falling
// back to matching the period text when the id has gone stale.
func (a *LoopVATReturnsAction) clickReview(ctx context.Context, ectx *protocol.ExecutionContext, vr vatReturn) (bool, error) {
	script := `(() => {
		const buttonId = ` + jsString(vr.buttonID) + `;
		if (buttonId) {
			const btn = document.querySelector('button[data-automationid="' + buttonId + '"]');
			if (btn) { btn.click(); return true; }
		}

		const targetDateRange = ` + jsString(vr.dateRange) + `;
		const items = document.querySelectorAll('.xui-contentblockitem');
		for (const item of items) {
			const datePara = item.querySelector('p[class*="vat-list-contentblock-title"]') ||
				item.querySelector('.xui-contentblockitem--primaryheading p');
			if (datePara && datePara.textContent.trim() === targetDateRange) {
				const reviewBtn = item.querySelector('button[data-automationid*="row-button"]');
				if (reviewBtn) { reviewBtn.click(); return true; }
			}
		}
		return false;
	})()`

	result, err := ectx.Page.Evaluate(ctx, script)
	if err != nil {
		return false, err
	}

	clicked, _ := result.(bool)

	return clicked, nil
}

func (a *LoopVATReturnsAction) preparationPrompt(ctx context.Context, ectx *protocol.ExecutionContext) bool {
	result, err := ectx.Page.Evaluate(ctx, vatPreparationPromptScript)
	if err != nil {
		return false
	}

	prompt, _ := result.(bool)

	return prompt
}

// recover brings the page back to the returns list after a failed row, via
// the step's recovery steps when declared.
func (a *LoopVATReturnsAction) recover(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger, listReady string) {
	if len(a.step.RecoverySteps) > 0 {
		if err := ectx.RunSubSteps(ctx, a.step.RecoverySteps); err != nil {
			logger.Warn("Recovery navigation failed", "error", err)
		}
	}

	sleep(ctx, time.Second)

	if err := ectx.Page.WaitForSelector(ctx, listReady, 10*time.Second); err != nil {
		logger.Warn("Returns list not visible after recovery", "url", ectx.Page.URL())
	}
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)

	return strings.TrimSpace(s)
}
