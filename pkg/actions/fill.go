package actions

import (
	"context"
	"log/slog"
	"time"

	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

// FillAction types a resolved value into the first selector that accepts it.
type FillAction struct {
	step *models.Step
}

func (a *FillAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	value := ectx.Vars.Resolve(a.step.Value)
	timeout := timeoutOr(a.step.Timeout, 10*time.Second)

	logger.Info("Filling input", "value", value)

	for _, selector := range a.step.Selectors {
		locator := ectx.Page.Locator(selector)

		if a.step.WaitVisible {
			if err := locator.WaitVisible(ctx, timeout); err != nil {
				continue
			}
		}

		if err := locator.Fill(ctx, value); err != nil {
			continue
		}

		logger.Info("Input filled")
		waitAfter(ctx, a.step)

		return "", nil
	}

	logger.Error("No matching input field found", "selectors", a.step.Selectors)

	return "", protocol.Failf("no matching selector found for fill: %v", a.step.Selectors)
}

// ReadInputAction reads the value of the first visible input and stores it
// under the step's save_as key.
type ReadInputAction struct {
	step *models.Step
}

func (a *ReadInputAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	timeout := timeoutOr(a.step.Timeout, 5*time.Second)

	logger.Info("Reading input value")

	for _, selector := range a.step.Selectors {
		locator := ectx.Page.Locator(selector).First()

		visible, err := locator.IsVisible(ctx, timeout)
		if err != nil || !visible {
			continue
		}

		value, err := locator.InputValue(ctx)
		if err != nil {
			continue
		}

		if a.step.SaveAs != "" {
			ectx.Vars.Set(a.step.SaveAs, value)
			logger.Info("Saved input value", "key", a.step.SaveAs, "value", value)
		} else {
			logger.Info("Read input value", "value", value)
		}

		return "", nil
	}

	logger.Error("No matching input found", "selectors", a.step.Selectors)

	return "", protocol.Failf("no matching input found: %v", a.step.Selectors)
}
