// Package persistence provides the storage abstraction for finished run
// reports.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/booksweep/booksweep/pkg/events"
)

var ErrReportNotFound = errors.New("run report not found")

// ReportEvent is one recorded event in its serialized form. Payload holds
// the full typed event so reports round-trip without a decode registry.
type ReportEvent struct {
	Type      events.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   json.RawMessage  `json:"payload"`
}

// RunReport is the persisted outcome of one chain run for one client.
type RunReport struct {
	ID         string        `json:"id"`
	Client     string        `json:"client"`
	Workflows  []string      `json:"workflows"`
	Status     string        `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Events     []ReportEvent `json:"events"`
}

// NewRunReport builds a report from a run's event stream. Marshalling
// failures on individual events drop that event rather than the report.
func NewRunReport(client, status string, workflows []string, startedAt, finishedAt time.Time, stream []events.Event) *RunReport {
	report := &RunReport{
		ID:         "report-" + uuid.New().String()[:8],
		Client:     client,
		Workflows:  workflows,
		Status:     status,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}

	for _, event := range stream {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}

		report.Events = append(report.Events, ReportEvent{
			Type:      event.GetType(),
			Timestamp: time.Now().UTC(),
			Payload:   payload,
		})
	}

	return report
}

// Repository stores and retrieves run reports.
type Repository interface {
	SaveReport(ctx context.Context, report *RunReport) error
	Reports(ctx context.Context) ([]*RunReport, error)
	ReportByID(ctx context.Context, id string) (*RunReport, error)
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
