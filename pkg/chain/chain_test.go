package chain

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/booksweep/booksweep/pkg/engine"
	"github.com/booksweep/booksweep/pkg/events"
	"github.com/booksweep/booksweep/pkg/mocks"
	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/persistence"
	"github.com/booksweep/booksweep/pkg/persistence/file"
	"github.com/booksweep/booksweep/pkg/registry"
)

func newTestSession(workflows []*models.Workflow, page *mocks.MockPage) *Session {
	logger := slog.Default()
	eng := engine.NewEngine(logger, registry.NewDefaultRegistry(logger))

	return NewSession(logger, eng, workflows, page)
}

// captureWorkflow is a one-step workflow that always succeeds.
func captureWorkflow(name string) *models.Workflow {
	return &models.Workflow{
		Name: name,
		Steps: []models.Step{{
			ID:     name + "-step",
			Action: models.ActionCaptureState,
			Save:   map[string]string{"ran": name},
		}},
	}
}

// failingWorkflow is a one-step workflow whose click target never exists.
func failingWorkflow(name string) *models.Workflow {
	return &models.Workflow{
		Name: name,
		Steps: []models.Step{{
			ID:        name + "-step",
			Action:    models.ActionClick,
			Selectors: []string{"#never"},
			Timeout:   50,
		}},
	}
}

func pageAt(url string) *mocks.MockPage {
	locator := &mocks.MockLocator{}
	locator.On("First").Return(nil)
	locator.On("IsVisible", mock.Anything, mock.Anything).Return(false, nil)

	page := &mocks.MockPage{}
	page.On("URL").Return(url)
	page.On("Locator", mock.Anything).Return(locator)

	return page
}

func countEvents(report *persistence.RunReport, eventType events.EventType) int {
	count := 0

	for _, ev := range report.Events {
		if ev.Type == eventType {
			count++
		}
	}

	return count
}

func TestSession_RunsEveryLink(t *testing.T) {
	workflows := []*models.Workflow{captureWorkflow("login_flow"), captureWorkflow("trial_balance_report")}
	session := newTestSession(workflows, pageAt("https://app.example.com/"))

	repo := file.NewRepository(t.TempDir())
	session.WithRepository(repo)

	status, err := session.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, status)

	reports, err := repo.Reports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)

	report := reports[0]
	assert.Equal(t, []string{"login_flow", "trial_balance_report"}, report.Workflows)
	assert.Equal(t, "completed", report.Status)
	// Chain start plus two links.
	assert.Equal(t, 3, countEvents(report, events.WorkflowStartEvent))
}

func TestSession_RepeatsChainPerClient(t *testing.T) {
	session := newTestSession([]*models.Workflow{captureWorkflow("export_flow")}, pageAt("https://app.example.com/"))
	session.Clients = []string{"Acme Ltd", "Beta Co"}

	repo := file.NewRepository(t.TempDir())
	session.WithRepository(repo)

	status, err := session.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, status)

	reports, err := repo.Reports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.Equal(t, "Acme Ltd, Beta Co", reports[0].Client)
	// One chain start plus one per client run.
	assert.Equal(t, 3, countEvents(reports[0], events.WorkflowStartEvent))
}

func TestSession_SkipsWhenPageAlreadyInPlace(t *testing.T) {
	skippable := captureWorkflow("login_flow")
	skippable.SkipIfURLContains = []string{"app.example.com", "dashboard"}

	session := newTestSession([]*models.Workflow{skippable}, pageAt("https://app.example.com/Dashboard"))

	repo := file.NewRepository(t.TempDir())
	session.WithRepository(repo)

	status, err := session.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, status)

	reports, err := repo.Reports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.Equal(t, 1, countEvents(reports[0], events.SkipEvent))
	// Only the chain's own start event: the link never ran.
	assert.Equal(t, 1, countEvents(reports[0], events.WorkflowStartEvent))
}

func TestSession_SkipRequiresEveryFragment(t *testing.T) {
	skippable := captureWorkflow("login_flow")
	skippable.SkipIfURLContains = []string{"app.example.com", "dashboard"}

	session := newTestSession([]*models.Workflow{skippable}, pageAt("https://app.example.com/login"))

	assert.False(t, session.shouldSkip(skippable))
}

func TestSession_CriticalFailureStopsRemainingLinks(t *testing.T) {
	workflows := []*models.Workflow{failingWorkflow("login_flow"), captureWorkflow("export_flow")}

	session := newTestSession(workflows, pageAt("https://app.example.com/"))
	session.Critical = []string{"login_flow"}

	repo := file.NewRepository(t.TempDir())
	session.WithRepository(repo)

	status, err := session.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, status)

	reports, err := repo.Reports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)

	// The chain start plus the failed login link only.
	assert.Equal(t, 2, countEvents(reports[0], events.WorkflowStartEvent))
	assert.Equal(t, "failed", reports[0].Status)
}

func TestSession_NonCriticalFailureContinues(t *testing.T) {
	workflows := []*models.Workflow{failingWorkflow("optional_report"), captureWorkflow("export_flow")}

	session := newTestSession(workflows, pageAt("https://app.example.com/"))

	repo := file.NewRepository(t.TempDir())
	session.WithRepository(repo)

	status, err := session.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, status)

	reports, err := repo.Reports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)

	// Both links ran despite the first one failing.
	assert.Equal(t, 3, countEvents(reports[0], events.WorkflowStartEvent))
}

func TestSession_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := newTestSession([]*models.Workflow{captureWorkflow("export_flow")}, pageAt("https://app.example.com/"))

	repo := file.NewRepository(t.TempDir())
	session.WithRepository(repo)

	status, err := session.Run(ctx)

	assert.Equal(t, models.WorkflowStatusCancelled, status)
	assert.Error(t, err)

	// The report is still persisted with the cancelled status.
	reports, reportsErr := repo.Reports(context.Background())
	require.NoError(t, reportsErr)
	require.Len(t, reports, 1)
	assert.Equal(t, "cancelled", reports[0].Status)
}

func TestSession_CleanupRunsExactlyOnce(t *testing.T) {
	calls := 0

	session := newTestSession([]*models.Workflow{captureWorkflow("export_flow")}, pageAt("https://app.example.com/"))
	session.WithCleanup(func() { calls++ })

	_, err := session.Run(context.Background())
	require.NoError(t, err)

	session.runCleanup()

	assert.Equal(t, 1, calls)
}
