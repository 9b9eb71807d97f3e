// Package protocol defines the contract between the execution engine and
// its action handlers.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/booksweep/booksweep/pkg/browser"
	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/report"
	"github.com/booksweep/booksweep/pkg/variables"
)

// Action executes one step against the current page. It returns the id of
// the step to jump to, or "" to fall through to the next index. A returned
// *StepFailure aborts the chain link; any other error is a soft failure the
// engine absorbs through the step's on_error/on_timeout declaration.
type Action interface {
	Execute(ctx context.Context, ectx *ExecutionContext, logger *slog.Logger) (string, error)
}

// ActionFactory builds the handler for one step at dispatch time.
type ActionFactory interface {
	Create(step *models.Step) (Action, error)
	ID() models.ActionType
}

// SubStepRunner runs a nested step list through the engine's dispatch
// contract. Loop handlers receive one so sub-steps behave exactly like
// top-level steps without the actions package depending on the engine.
type SubStepRunner func(ctx context.Context, steps []models.Step) error

// ExecutionContext carries the per-run collaborators a handler may touch.
// Page is the single mutable page handle of the chain: handlers that open
// new tabs replace it and the old tab is considered abandoned.
type ExecutionContext struct {
	ExecutionID  string
	WorkflowName string

	Page     browser.Page
	Vars     *variables.Store
	State    *models.WorkflowState
	Recorder *report.Recorder

	// DownloadsDir is the destination root for exported files; debug
	// screenshots land beside them.
	DownloadsDir string

	RunSubSteps SubStepRunner
}

// StepFailure marks a failure with no viable recovery for a required step.
// The engine turns it into a fatal error and stops the chain link, unless
// the step declared itself optional.
type StepFailure struct {
	message string
	cause   error
	timeout bool
}

func (e *StepFailure) Error() string { return e.message }

func (e *StepFailure) Unwrap() error { return e.cause }

// Failf builds a step failure.
func Failf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)

	return &StepFailure{message: err.Error(), cause: errors.Unwrap(err)}
}

// Timeoutf builds a step failure caused by an expired wait. Optional steps
// recover through on_timeout rather than on_error.
func Timeoutf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)

	return &StepFailure{message: err.Error(), cause: errors.Unwrap(err), timeout: true}
}

// IsStepFailure reports whether err carries a StepFailure in its chain.
func IsStepFailure(err error) bool {
	var failure *StepFailure

	return errors.As(err, &failure)
}

// IsTimeout reports whether err is a timeout-flavored step failure.
func IsTimeout(err error) bool {
	var failure *StepFailure
	if errors.As(err, &failure) {
		return failure.timeout
	}

	return false
}
