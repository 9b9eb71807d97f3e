package actions

import (
	"context"
	"log/slog"
	"time"

	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

// ManualInterventionAction pauses the workflow for a human, typically for a
// login form or a second factor. It announces the step's message and then
// waits for the URL to show the human finished, up to a generous timeout.
type ManualInterventionAction struct {
	step *models.Step
}

func (a *ManualInterventionAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	timeout := timeoutOr(a.step.Timeout, 5*time.Minute)

	message := ectx.Vars.Resolve(a.step.Message)
	if message == "" {
		message = "Manual intervention required"
	}

	logger.Warn("Waiting for manual intervention", "message", message, "timeout", timeout)

	patterns := a.step.Patterns
	if len(patterns) == 0 && a.step.WaitForURL != "" {
		patterns = []string{a.step.WaitForURL}
	}

	if len(patterns) == 0 {
		// Nothing to wait on, the message itself is the step.
		sleep(ctx, time.Duration(a.step.WaitAfter)*time.Millisecond)

		return "", nil
	}

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		for _, pattern := range patterns {
			resolved := ectx.Vars.Resolve(pattern)

			if err := ectx.Page.WaitForURL(ctx, resolved, 5*time.Second); err == nil {
				logger.Info("Manual intervention complete", "url", ectx.Page.URL())
				waitAfter(ctx, a.step)

				return "", nil
			}
		}
	}

	return "", protocol.Timeoutf("manual intervention not completed within %s", timeout)
}
