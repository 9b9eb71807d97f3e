// Package actions implements one handler per step action kind. Handlers
// never decide fatal-versus-soft themselves: they return a StepFailure when
// the action could not complete and leave the classification to the engine,
// which applies the step's optional flag and branch targets.
package actions

import (
	"context"
	"time"

	"github.com/booksweep/booksweep/pkg/browser"
	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

// factoryFunc adapts a constructor to protocol.ActionFactory.
type factoryFunc struct {
	id models.ActionType
	fn func(step *models.Step) (protocol.Action, error)
}

func (f factoryFunc) ID() models.ActionType { return f.id }

func (f factoryFunc) Create(step *models.Step) (protocol.Action, error) {
	return f.fn(step)
}

// Factories returns one factory per action kind. The list is the closed
// enumeration the registry is built from.
func Factories() []protocol.ActionFactory {
	return []protocol.ActionFactory{
		factoryFunc{models.ActionGoto, func(s *models.Step) (protocol.Action, error) { return &GotoAction{step: s}, nil }},
		factoryFunc{models.ActionFill, func(s *models.Step) (protocol.Action, error) { return &FillAction{step: s}, nil }},
		factoryFunc{models.ActionPressKey, func(s *models.Step) (protocol.Action, error) { return &PressKeyAction{step: s}, nil }},
		factoryFunc{models.ActionClick, func(s *models.Step) (protocol.Action, error) { return &ClickAction{step: s}, nil }},
		factoryFunc{models.ActionEnsureChecked, func(s *models.Step) (protocol.Action, error) { return &EnsureCheckedAction{step: s}, nil }},
		factoryFunc{models.ActionBatchEnsureChecked, func(s *models.Step) (protocol.Action, error) { return &BatchEnsureCheckedAction{step: s}, nil }},
		factoryFunc{models.ActionDeselectAllColumns, func(s *models.Step) (protocol.Action, error) { return &DeselectAllColumnsAction{step: s}, nil }},
		factoryFunc{models.ActionSelectColumns, func(s *models.Step) (protocol.Action, error) { return &SelectColumnsAction{step: s}, nil }},
		factoryFunc{models.ActionCheckURL, func(s *models.Step) (protocol.Action, error) { return &CheckURLAction{step: s}, nil }},
		factoryFunc{models.ActionWaitForURL, func(s *models.Step) (protocol.Action, error) { return &WaitForURLAction{step: s}, nil }},
		factoryFunc{models.ActionWaitForSelector, func(s *models.Step) (protocol.Action, error) { return &WaitForSelectorAction{step: s}, nil }},
		factoryFunc{models.ActionWaitForDownload, func(s *models.Step) (protocol.Action, error) { return &WaitForDownloadAction{step: s}, nil }},
		factoryFunc{models.ActionClickAndDownload, func(s *models.Step) (protocol.Action, error) { return &ClickAndDownloadAction{step: s}, nil }},
		factoryFunc{models.ActionCaptureState, func(s *models.Step) (protocol.Action, error) { return &CaptureStateAction{step: s}, nil }},
		factoryFunc{models.ActionScrape, func(s *models.Step) (protocol.Action, error) { return &ScrapeAction{step: s}, nil }},
		factoryFunc{models.ActionManualIntervention, func(s *models.Step) (protocol.Action, error) { return &ManualInterventionAction{step: s}, nil }},
		factoryFunc{models.ActionReadInput, func(s *models.Step) (protocol.Action, error) { return &ReadInputAction{step: s}, nil }},
		factoryFunc{models.ActionReadText, func(s *models.Step) (protocol.Action, error) { return &ReadTextAction{step: s}, nil }},
		factoryFunc{models.ActionExecuteScript, func(s *models.Step) (protocol.Action, error) { return &ExecuteScriptAction{step: s}, nil }},
		factoryFunc{models.ActionValidateFilters, func(s *models.Step) (protocol.Action, error) { return &ValidateFiltersAction{step: s}, nil }},
		factoryFunc{models.ActionLoopElements, func(s *models.Step) (protocol.Action, error) { return &LoopElementsAction{step: s}, nil }},
		factoryFunc{models.ActionLoopVATReturns, func(s *models.Step) (protocol.Action, error) { return &LoopVATReturnsAction{step: s}, nil }},
	}
}

// timeoutOr converts a step's millisecond timeout, falling back when unset.
func timeoutOr(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}

	return time.Duration(ms) * time.Millisecond
}

// sleep pauses while honoring cancellation.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// waitAfter applies a step's post-action pause.
func waitAfter(ctx context.Context, step *models.Step) {
	sleep(ctx, time.Duration(step.WaitAfter)*time.Millisecond)
}

// firstVisible walks the selector list in order and returns the first
// locator that is visible within perSelector.
func firstVisible(ctx context.Context, page browser.Page, selectors []string, perSelector time.Duration) (browser.Locator, bool) {
	for _, selector := range selectors {
		locator := page.Locator(selector).First()

		visible, err := locator.IsVisible(ctx, perSelector)
		if err != nil || !visible {
			continue
		}

		return locator, true
	}

	return nil, false
}
