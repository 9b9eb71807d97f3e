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

// ReadTextAction reads the text of the first visible selector, optionally
// narrows it by a regular expression, and stores it under save_as. The
// first capture group wins when the pattern declares one.
type ReadTextAction struct {
	step *models.Step
}

func (a *ReadTextAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	timeout := timeoutOr(a.step.Timeout, 5*time.Second)
	perSelector := timeout / time.Duration(max(len(a.step.Selectors), 1))

	locator, ok := firstVisible(ctx, ectx.Page, a.step.Selectors, perSelector)
	if !ok {
		logger.Error("No readable element found", "selectors", a.step.Selectors)

		return "", protocol.Failf("no matching element found for read_text: %v", a.step.Selectors)
	}

	text, err := locator.TextContent(ctx)
	if err != nil {
		return "", protocol.Failf("failed to read text: %w", err)
	}

	text = strings.TrimSpace(text)

	if a.step.ExtractPattern != "" {
		extracted, err := extractPattern(a.step.ExtractPattern, text)
		if err != nil {
			return "", protocol.Failf("invalid extract pattern %q: %w", a.step.ExtractPattern, err)
		}

		if extracted == "" {
			logger.Warn("Extract pattern matched nothing", "pattern", a.step.ExtractPattern, "text", text)

			return "", protocol.Failf("pattern %q found no match in %q", a.step.ExtractPattern, text)
		}

		text = extracted
	}

	if a.step.SaveAs != "" {
		ectx.Vars.Set(a.step.SaveAs, text)
		logger.Info("Saved text", "key", a.step.SaveAs, "value", text)
	} else {
		logger.Info("Read text", "value", text)
	}

	return "", nil
}

// extractPattern applies a regular expression to text and returns the first
// capture group when present, the whole match otherwise.
func extractPattern(pattern, text string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", err
	}

	match := re.FindStringSubmatch(text)
	if match == nil {
		return "", nil
	}

	if len(match) > 1 {
		return strings.TrimSpace(match[1]), nil
	}

	return strings.TrimSpace(match[0]), nil
}
