// Package report collects the append-only event stream of a run and hands
// it to persistence once the run ends. Recording is best-effort by design:
// a reporting fault must never destabilize workflow execution.
package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/booksweep/booksweep/pkg/eventbus"
	"github.com/booksweep/booksweep/pkg/events"
)

// Recorder accumulates run events in order. When a bus is attached every
// event is also published for live consumers; publish failures are logged
// and discarded.
type Recorder struct {
	logger *slog.Logger
	bus    eventbus.EventBus

	eventList []events.Event
	started   time.Time
	workflow  string
	client    string
}

func NewRecorder(logger *slog.Logger) *Recorder {
	return &Recorder{logger: logger}
}

// WithBus attaches a live event bus. Returns the recorder for chaining.
func (r *Recorder) WithBus(bus eventbus.EventBus) *Recorder {
	r.bus = bus

	return r
}

// Events returns the recorded stream. The slice is the recorder's own;
// callers must not mutate it.
func (r *Recorder) Events() []events.Event {
	return r.eventList
}

// Append adds events recorded elsewhere (a link recorder folding into the
// chain's master recorder).
func (r *Recorder) Append(evs []events.Event) {
	r.eventList = append(r.eventList, evs...)
}

func (r *Recorder) record(event events.Event) {
	r.eventList = append(r.eventList, event)

	if r.bus == nil {
		return
	}

	if err := r.bus.Publish(context.Background(), event); err != nil {
		r.logger.Warn("Failed to publish run event", "type", event.GetType(), "error", err)
	}
}

func (r *Recorder) StartWorkflow(workflow, client string) {
	r.workflow = workflow
	r.client = client
	r.started = time.Now()

	r.record(events.WorkflowStart{
		BaseEvent: events.NewBaseEvent(events.WorkflowStartEvent),
		Workflow:  workflow,
		Client:    client,
	})
}

func (r *Recorder) EndWorkflow(status string, variables map[string]any) {
	var duration float64
	if !r.started.IsZero() {
		duration = time.Since(r.started).Seconds()
	}

	r.record(events.WorkflowEnd{
		BaseEvent:       events.NewBaseEvent(events.WorkflowEndEvent),
		Status:          status,
		Variables:       variables,
		DurationSeconds: duration,
	})
}

func (r *Recorder) Step(stepID, action, description, status string) {
	r.record(events.StepFinished{
		BaseEvent:   events.NewBaseEvent(events.StepEvent),
		StepID:      stepID,
		Action:      action,
		Description: description,
		Status:      status,
	})
}

func (r *Recorder) Filter(name, value string) {
	r.record(events.FilterSelected{
		BaseEvent:  events.NewBaseEvent(events.FilterEvent),
		FilterName: name,
		Value:      value,
	})
}

func (r *Recorder) Navigation(from, to string) {
	r.record(events.Navigation{
		BaseEvent: events.NewBaseEvent(events.NavigationEvent),
		From:      from,
		To:        to,
	})
}

func (r *Recorder) Download(filename, path string) {
	r.record(events.Downloaded{
		BaseEvent: events.NewBaseEvent(events.DownloadEvent),
		Filename:  filename,
		Path:      path,
	})
}

func (r *Recorder) Skip(reason, context string) {
	r.record(events.Skipped{
		BaseEvent: events.NewBaseEvent(events.SkipEvent),
		Reason:    reason,
		Context:   context,
	})
}

func (r *Recorder) Validation(passed, errs []string) {
	r.record(events.Validation{
		BaseEvent: events.NewBaseEvent(events.ValidationEvent),
		Passed:    passed,
		Errors:    errs,
	})
}

func (r *Recorder) Error(stepID, message string, fatal bool) {
	r.record(events.StepErrored{
		BaseEvent: events.NewBaseEvent(events.ErrorEvent),
		StepID:    stepID,
		Error:     message,
		Fatal:     fatal,
	})
}
