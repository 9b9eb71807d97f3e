// Package engine runs one workflow definition against a live page. It owns
// step sequencing and the fatal-versus-soft failure policy; handlers only
// report whether their action could complete.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/booksweep/booksweep/pkg/browser"
	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/otelhelper"
	"github.com/booksweep/booksweep/pkg/protocol"
	"github.com/booksweep/booksweep/pkg/registry"
	"github.com/booksweep/booksweep/pkg/report"
	"github.com/booksweep/booksweep/pkg/variables"
)

// Engine executes one workflow at a time. A single instance can run several
// workflows sequentially against the same page; runs never overlap.
type Engine struct {
	logger   *slog.Logger
	registry *registry.Registry
	tracer   trace.Tracer

	// DownloadsDir is the root folder exports are copied into.
	DownloadsDir string
}

func NewEngine(logger *slog.Logger, reg *registry.Registry) *Engine {
	return &Engine{
		logger:   logger,
		registry: reg,
	}
}

// WithTracer enables span emission for runs and steps.
func (e *Engine) WithTracer(tracer trace.Tracer) *Engine {
	e.tracer = tracer

	return e
}

// Run executes workflow from its first step. initialVars seeds the variable
// store; page is the shared browser tab; recorder receives the run's event
// stream. The returned error is non-nil only for fatal outcomes: a required
// step that failed without a recovery branch, or cancellation.
func (e *Engine) Run(ctx context.Context, workflow *models.Workflow, page browser.Page, initialVars map[string]any, recorder *report.Recorder) (*models.WorkflowState, error) {
	executionID := "exec-" + uuid.New().String()[:8]

	logger := e.logger.With(
		"workflow", workflow.Name,
		"execution_id", executionID,
	)

	state := models.NewWorkflowState()
	for k, v := range initialVars {
		state.Variables[k] = v
	}

	vars := variables.NewStore(state.Variables, logger).WithRecorder(recorder)

	ectx := &protocol.ExecutionContext{
		ExecutionID:  executionID,
		WorkflowName: workflow.Name,
		Page:         page,
		Vars:         vars,
		State:        state,
		Recorder:     recorder,
		DownloadsDir: e.DownloadsDir,
	}
	ectx.RunSubSteps = func(ctx context.Context, steps []models.Step) error {
		return e.runSubSteps(ctx, ectx, logger, steps)
	}

	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
			attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
			attribute.String(otelhelper.ExecutionIDKey, executionID),
		)
		defer span.End()
	}

	logger.Info("Starting workflow execution", "steps", len(workflow.Steps))
	recorder.StartWorkflow(workflow.Name, vars.GetString("selected_client"))

	err := e.runSteps(ctx, ectx, logger, workflow)

	switch {
	case err == nil:
		state.Status = models.WorkflowStatusCompleted
	case ctx.Err() != nil:
		state.Status = models.WorkflowStatusCancelled
	default:
		state.Status = models.WorkflowStatusFailed
	}

	recorder.EndWorkflow(string(state.Status), vars.Snapshot())
	logger.Info("Workflow execution finished", "status", state.Status, "completed_steps", len(state.CompletedSteps), "errors", len(state.Errors))

	return state, err
}

// runSteps walks the top-level step list by index. Jump targets resolve
// through the workflow's id index; an unknown target at runtime falls
// through to the next index rather than aborting.
func (e *Engine) runSteps(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger, workflow *models.Workflow) error {
	i := 0

	for i >= 0 && i < len(workflow.Steps) {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		step := &workflow.Steps[i]
		ectx.State.CurrentStep = step.ID

		next, err := e.dispatch(ctx, ectx, logger, step)

		outcome := e.classify(step, err)
		switch outcome {
		case outcomeSuccess:
			ectx.State.CompletedSteps = append(ectx.State.CompletedSteps, step.ID)
			ectx.Recorder.Step(step.ID, string(step.Action), step.Description, "success")

		case outcomeSoft:
			logger.Warn("Step failed, continuing", "step", step.ID, "error", err)
			ectx.State.Errors = append(ectx.State.Errors, models.StepError{Step: step.ID, Message: err.Error()})
			ectx.Recorder.Error(step.ID, err.Error(), false)
			next = e.recoveryTarget(step, err)

		case outcomeFatal:
			logger.Error("Step failed, aborting workflow", "step", step.ID, "error", err)
			ectx.State.Errors = append(ectx.State.Errors, models.StepError{Step: step.ID, Message: err.Error(), Fatal: true})
			ectx.Recorder.Error(step.ID, err.Error(), true)

			return fmt.Errorf("step %s failed: %w", step.ID, err)
		}

		if next == "" {
			i++

			continue
		}

		target := workflow.StepIndex(next)
		if target < 0 {
			logger.Warn("Jump target not found, continuing with next step", "target", next)
			i++

			continue
		}

		i = target
	}

	return nil
}

type stepOutcome int

const (
	outcomeSuccess stepOutcome = iota
	outcomeSoft
	outcomeFatal
)

// classify applies the failure policy: handler errors are soft unless they
// are a StepFailure on a required step. Optional steps absorb everything.
func (e *Engine) classify(step *models.Step, err error) stepOutcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case protocol.IsStepFailure(err) && !step.Optional:
		return outcomeFatal
	default:
		return outcomeSoft
	}
}

// recoveryTarget picks the branch a soft failure jumps to. Timeouts prefer
// on_timeout, every other failure takes on_error.
func (e *Engine) recoveryTarget(step *models.Step, err error) string {
	if protocol.IsTimeout(err) && step.OnTimeout != "" {
		return step.OnTimeout
	}

	return step.OnError
}

// dispatch builds and runs the handler for one step.
func (e *Engine) dispatch(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger, step *models.Step) (string, error) {
	stepLogger := logger.With("step", step.ID, "action", step.Action)

	if step.Description != "" {
		stepLogger.Info("Executing step", "description", step.Description)
	} else {
		stepLogger.Info("Executing step")
	}

	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "workflow.step",
			attribute.String(otelhelper.StepIDKey, step.ID),
			attribute.String(otelhelper.ActionTypeKey, string(step.Action)),
			attribute.String(otelhelper.ExecutionIDKey, ectx.ExecutionID),
		)
		defer span.End()
	}

	action, err := e.registry.CreateAction(step)
	if err != nil {
		// Load-time validation makes this unreachable for known documents;
		// tolerate it for hand-built step lists.
		stepLogger.Warn("No handler for action, skipping step", "error", err)

		return "", nil
	}

	next, err := action.Execute(ctx, ectx, stepLogger)
	if err != nil && e.tracer != nil {
		span := trace.SpanFromContext(ctx)
		otelhelper.SetError(span, err, attribute.String(otelhelper.StepIDKey, step.ID))
	}

	return next, err
}

// runSubSteps executes a nested step list under the same dispatch contract.
// The first StepFailure stops the list and surfaces to the caller; soft
// errors follow the same optional/on_error policy as top-level steps but
// jump targets are ignored inside loops.
func (e *Engine) runSubSteps(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger, steps []models.Step) error {
	for i := range steps {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		step := &steps[i]

		_, err := e.dispatch(ctx, ectx, logger, step)

		switch e.classify(step, err) {
		case outcomeSuccess:
			ectx.State.CompletedSteps = append(ectx.State.CompletedSteps, step.ID)
			ectx.Recorder.Step(step.ID, string(step.Action), step.Description, "success")

		case outcomeSoft:
			logger.Warn("Sub-step failed, continuing", "step", step.ID, "error", err)
			ectx.State.Errors = append(ectx.State.Errors, models.StepError{Step: step.ID, Message: err.Error()})
			ectx.Recorder.Error(step.ID, err.Error(), false)

		case outcomeFatal:
			return fmt.Errorf("sub-step %s failed: %w", step.ID, err)
		}
	}

	return nil
}
