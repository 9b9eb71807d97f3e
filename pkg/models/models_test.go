package models

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validWorkflow() *Workflow {
	return &Workflow{
		Name: "trial_balance_report",
		Steps: []Step{
			{ID: "open-report", Action: ActionGoto, URL: "https://example.com/reports"},
			{ID: "wait-loaded", Action: ActionWaitForSelector, Selectors: []string{"#report"}},
			{ID: "export", Action: ActionClickAndDownload, Selectors: []string{"button.export"}},
		},
	}
}

func TestWorkflow_Validation_Valid(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	require.NoError(t, validate.Struct(validWorkflow()))
	require.NoError(t, validWorkflow().Validate())
}

func TestWorkflow_Validation_MissingName(t *testing.T) {
	wf := validWorkflow()
	wf.Name = ""

	validate := validator.New(validator.WithRequiredStructEnabled())

	assert.Error(t, validate.Struct(wf))
}

func TestWorkflow_Validation_NoSteps(t *testing.T) {
	wf := &Workflow{Name: "empty_workflow"}

	validate := validator.New(validator.WithRequiredStructEnabled())

	assert.Error(t, validate.Struct(wf))
}

func TestWorkflow_Validate_DuplicateStepID(t *testing.T) {
	wf := validWorkflow()
	wf.Steps[2].ID = "open-report"

	err := wf.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateStepID)
}

func TestWorkflow_Validate_DuplicateIDInSubSteps(t *testing.T) {
	wf := validWorkflow()
	wf.Steps[1].SubSteps = []Step{
		{ID: "export", Action: ActionClick, Selectors: []string{"a"}},
	}

	err := wf.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateStepID)
}

func TestWorkflow_Validate_UnknownAction(t *testing.T) {
	wf := validWorkflow()
	wf.Steps[1].Action = ActionType("teleport")

	err := wf.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestWorkflow_Validate_UnknownJumpTarget(t *testing.T) {
	wf := validWorkflow()
	wf.Steps[0].OnError = "nonexistent"

	err := wf.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestWorkflow_Validate_ConditionTarget(t *testing.T) {
	wf := validWorkflow()
	wf.Steps[0].Action = ActionCheckURL
	wf.Steps[0].Conditions = []URLCondition{
		{Contains: "login", GotoStep: "missing-step"},
	}

	err := wf.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestWorkflow_Validate_RecoveryStepsChecked(t *testing.T) {
	wf := validWorkflow()
	wf.Steps[2].RecoverySteps = []Step{
		{ID: "back-to-list", Action: ActionType("warp")},
	}

	err := wf.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestWorkflow_StepIndex(t *testing.T) {
	wf := validWorkflow()

	assert.Equal(t, 0, wf.StepIndex("open-report"))
	assert.Equal(t, 2, wf.StepIndex("export"))
	assert.Equal(t, -1, wf.StepIndex("missing"))
}

func TestStep_Reverse_DefaultsTrue(t *testing.T) {
	step := Step{}
	assert.True(t, step.Reverse())

	no := false
	step.ReverseOrder = &no
	assert.False(t, step.Reverse())
}

func TestStep_WantChecked_DefaultsTrue(t *testing.T) {
	step := Step{}
	assert.True(t, step.WantChecked())

	no := false
	step.Checked = &no
	assert.False(t, step.WantChecked())
}

func TestWorkflowState_HasFatalError(t *testing.T) {
	state := NewWorkflowState()
	assert.False(t, state.HasFatalError())

	state.Errors = append(state.Errors, StepError{Step: "a", Message: "soft", Fatal: false})
	assert.False(t, state.HasFatalError())

	state.Errors = append(state.Errors, StepError{Step: "b", Message: "hard", Fatal: true})
	assert.True(t, state.HasFatalError())
}
