package models

// WorkflowStatus is the terminal status of one workflow link.
type WorkflowStatus string

const (
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

// StepError records one failure during a run.
type StepError struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// WorkflowState is the mutable state of one running workflow. It is owned by
// a single engine instance and never shared across concurrent runs.
type WorkflowState struct {
	Variables      map[string]any `json:"variables"`
	Results        map[string]any `json:"results"`
	CurrentStep    string         `json:"current_step,omitempty"`
	CompletedSteps []string       `json:"completed_steps"`
	Errors         []StepError    `json:"errors"`
	Status         WorkflowStatus `json:"status,omitempty"`
}

// NewWorkflowState returns an empty state ready for a run.
func NewWorkflowState() *WorkflowState {
	return &WorkflowState{
		Variables: make(map[string]any),
		Results:   make(map[string]any),
	}
}

// HasFatalError reports whether any recorded error aborted the run.
func (s *WorkflowState) HasFatalError() bool {
	for _, e := range s.Errors {
		if e.Fatal {
			return true
		}
	}

	return false
}
