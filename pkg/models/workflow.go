// Package models defines the core domain models for browser-driven export
// workflows: definitions, steps and per-run state.
package models

import (
	"errors"
	"fmt"
)

// Workflow is one loaded definition: an ordered step list plus identity.
// Definitions are immutable once loaded; a run never mutates its workflow.
type Workflow struct {
	Name        string `json:"name"                  yaml:"name"        validate:"required,min=3"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps"                 yaml:"steps"       validate:"required,min=1,dive"`

	// SkipIfURLContains lets the chain driver skip this link when the shared
	// page is already where the workflow would leave it (login, navigation).
	SkipIfURLContains []string `json:"skip_if_url_contains,omitempty" yaml:"skip_if_url_contains,omitempty"`

	index map[string]int
}

var (
	ErrDuplicateStepID = errors.New("duplicate step id")
	ErrUnknownAction   = errors.New("unknown action")
	ErrUnknownTarget   = errors.New("jump target does not exist")
)

// Validate checks the structural invariants that cannot be expressed as tags:
// ids are unique, every action kind is known, and every declared jump target
// (on_error, on_timeout, goto_step, default_step) names an existing step.
// Sub-step ids live in the same namespace as top-level ids.
func (w *Workflow) Validate() error {
	ids := make(map[string]bool)

	var collect func(steps []Step) error

	collect = func(steps []Step) error {
		for i := range steps {
			step := &steps[i]
			if ids[step.ID] {
				return fmt.Errorf("%w: %q", ErrDuplicateStepID, step.ID)
			}

			ids[step.ID] = true

			if !KnownActions[step.Action] {
				return fmt.Errorf("%w: %q (step %q)", ErrUnknownAction, step.Action, step.ID)
			}

			if err := collect(step.SubSteps); err != nil {
				return err
			}

			if err := collect(step.RecoverySteps); err != nil {
				return err
			}
		}

		return nil
	}

	if err := collect(w.Steps); err != nil {
		return err
	}

	// Targets only jump within the top-level step list.
	topLevel := make(map[string]bool, len(w.Steps))
	for i := range w.Steps {
		topLevel[w.Steps[i].ID] = true
	}

	check := func(stepID, target string) error {
		if target != "" && !topLevel[target] {
			return fmt.Errorf("%w: %q (step %q)", ErrUnknownTarget, target, stepID)
		}

		return nil
	}

	for i := range w.Steps {
		step := &w.Steps[i]

		if err := check(step.ID, step.OnError); err != nil {
			return err
		}

		if err := check(step.ID, step.OnTimeout); err != nil {
			return err
		}

		if err := check(step.ID, step.DefaultStep); err != nil {
			return err
		}

		for _, cond := range step.Conditions {
			if err := check(step.ID, cond.GotoStep); err != nil {
				return err
			}
		}
	}

	return nil
}

// Index returns the step-id to position map, building it on first use.
func (w *Workflow) Index() map[string]int {
	if w.index == nil {
		w.index = make(map[string]int, len(w.Steps))
		for i := range w.Steps {
			w.index[w.Steps[i].ID] = i
		}
	}

	return w.index
}

// StepIndex resolves a step id to its position, -1 when absent.
func (w *Workflow) StepIndex(id string) int {
	if pos, ok := w.Index()[id]; ok {
		return pos
	}

	return -1
}
