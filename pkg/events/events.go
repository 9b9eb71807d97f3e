// Package events defines the append-only event stream a run emits for
// reporting. The stream is sufficient to reconstruct a full execution
// timeline without replaying the run.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the bus topic every run event is published on.
const Topic = "booksweep.events"

const EventTypeMetadataKey = "event_type"

const (
	WorkflowStartEvent EventType = "workflow_start"
	WorkflowEndEvent   EventType = "workflow_end"
	StepEvent          EventType = "step"
	FilterEvent        EventType = "filter"
	NavigationEvent    EventType = "navigation"
	DownloadEvent      EventType = "download"
	SkipEvent          EventType = "skip"
	ValidationEvent    EventType = "validation"
	ErrorEvent         EventType = "error"
)

// Event is anything the report recorder can append and publish.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

type WorkflowStart struct {
	BaseEvent

	Workflow string `json:"workflow"`
	Client   string `json:"client,omitempty"`
}

func (e WorkflowStart) GetType() EventType { return WorkflowStartEvent }

type WorkflowEnd struct {
	BaseEvent

	Status          string         `json:"status"`
	Variables       map[string]any `json:"variables,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
}

func (e WorkflowEnd) GetType() EventType { return WorkflowEndEvent }

type StepFinished struct {
	BaseEvent

	StepID      string `json:"step_id"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
}

func (e StepFinished) GetType() EventType { return StepEvent }

// FilterSelected records a captured value that narrows what gets exported:
// dates, periods, clients, companies, column sets.
type FilterSelected struct {
	BaseEvent

	FilterName string `json:"filter_name"`
	Value      string `json:"value"`
}

func (e FilterSelected) GetType() EventType { return FilterEvent }

type Navigation struct {
	BaseEvent

	From string `json:"from"`
	To   string `json:"to"`
}

func (e Navigation) GetType() EventType { return NavigationEvent }

type Downloaded struct {
	BaseEvent

	Filename string `json:"filename"`
	Path     string `json:"path"`
}

func (e Downloaded) GetType() EventType { return DownloadEvent }

// Skipped records a structural skip: a precondition that makes processing
// impossible without being an error (no eligible items, missing config).
type Skipped struct {
	BaseEvent

	Reason  string `json:"reason"`
	Context string `json:"context,omitempty"`
}

func (e Skipped) GetType() EventType { return SkipEvent }

type Validation struct {
	BaseEvent

	Passed []string `json:"passed"`
	Errors []string `json:"errors"`
}

func (e Validation) GetType() EventType { return ValidationEvent }

type StepErrored struct {
	BaseEvent

	StepID string `json:"step_id"`
	Error  string `json:"error"`
	Fatal  bool   `json:"fatal"`
}

func (e StepErrored) GetType() EventType { return ErrorEvent }
