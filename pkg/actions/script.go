package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

// ExecuteScriptAction evaluates a script in page context and optionally
// stores its result. Variables resolve inside the script text before it
// runs, so workflows can template values into page code.
type ExecuteScriptAction struct {
	step *models.Step
}

func (a *ExecuteScriptAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	script := ectx.Vars.Resolve(a.step.Script)
	if script == "" {
		return "", protocol.Failf("execute_script step %q has no script", a.step.ID)
	}

	result, err := ectx.Page.Evaluate(ctx, script)
	if err != nil {
		return "", protocol.Failf("script evaluation failed: %w", err)
	}

	if a.step.SaveAs != "" {
		ectx.Vars.Set(a.step.SaveAs, result)
		logger.Info("Saved script result", "key", a.step.SaveAs, "value", fmt.Sprint(result))
	} else {
		logger.Info("Script executed", "result", fmt.Sprint(result))
	}

	waitAfter(ctx, a.step)

	return "", nil
}
