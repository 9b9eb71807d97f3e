package persistence

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksweep/booksweep/pkg/events"
)

func TestNewRunReport_CapturesStream(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	finished := time.Now()

	stream := []events.Event{
		events.WorkflowStart{BaseEvent: events.NewBaseEvent(events.WorkflowStartEvent), Workflow: "login_flow", Client: "Acme Ltd"},
		events.Downloaded{BaseEvent: events.NewBaseEvent(events.DownloadEvent), Filename: "1 Trial Balance_Acme Ltd.xlsx"},
		events.WorkflowEnd{BaseEvent: events.NewBaseEvent(events.WorkflowEndEvent), Status: "completed"},
	}

	report := NewRunReport("Acme Ltd", "completed", []string{"login_flow", "trial_balance_report"}, started, finished, stream)

	assert.True(t, len(report.ID) > len("report-"))
	assert.Equal(t, "Acme Ltd", report.Client)
	assert.Equal(t, "completed", report.Status)
	assert.Equal(t, []string{"login_flow", "trial_balance_report"}, report.Workflows)

	require.Len(t, report.Events, 3)
	assert.Equal(t, events.WorkflowStartEvent, report.Events[0].Type)
	assert.Equal(t, events.DownloadEvent, report.Events[1].Type)

	var download events.Downloaded
	require.NoError(t, json.Unmarshal(report.Events[1].Payload, &download))
	assert.Equal(t, "1 Trial Balance_Acme Ltd.xlsx", download.Filename)
}

func TestNewRunReport_UniqueIDs(t *testing.T) {
	a := NewRunReport("", "completed", nil, time.Now(), time.Now(), nil)
	b := NewRunReport("", "completed", nil, time.Now(), time.Now(), nil)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewRunReport_EmptyStream(t *testing.T) {
	report := NewRunReport("Acme Ltd", "failed", []string{"login_flow"}, time.Now(), time.Now(), nil)

	assert.Empty(t, report.Events)
	assert.Equal(t, "failed", report.Status)
}
