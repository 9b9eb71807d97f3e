//go:build integration
// +build integration

package postgresql

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/booksweep/booksweep/pkg/events"
	"github.com/booksweep/booksweep/pkg/persistence"
)

var postgresContainer *postgres.PostgresContainer

func TestMain(m *testing.M) {
	code := m.Run()

	if postgresContainer != nil {
		_ = postgresContainer.Terminate(context.Background())
	}

	os.Exit(code)
}

// setupTestDB starts (or reuses) a PostgreSQL container and returns a
// migrated repository.
func setupTestDB(t *testing.T) (*Repository, context.Context) {
	ctx := context.Background()

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error
		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("booksweep_test"),
			postgres.WithUsername("booksweep"),
			postgres.WithPassword("booksweep"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	repo, err := NewRepository(ctx, logger, databaseURL)
	require.NoError(t, err)

	cleanupDB(t, databaseURL)

	return repo, ctx
}

func cleanupDB(t *testing.T, databaseURL string) {
	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(context.Background(), "TRUNCATE TABLE run_reports")
	require.NoError(t, err)
}

func sampleReport(client string, startedAt time.Time) *persistence.RunReport {
	stream := []events.Event{
		events.WorkflowStart{BaseEvent: events.NewBaseEvent(events.WorkflowStartEvent), Workflow: "login_flow", Client: client},
		events.Downloaded{BaseEvent: events.NewBaseEvent(events.DownloadEvent), Filename: "1 Trial Balance_" + client + ".xlsx"},
		events.WorkflowEnd{BaseEvent: events.NewBaseEvent(events.WorkflowEndEvent), Status: "completed"},
	}

	return persistence.NewRunReport(client, "completed", []string{"login_flow", "trial_balance_report"},
		startedAt, startedAt.Add(2*time.Minute), stream)
}

func TestRepository_SaveAndLoadRoundTrip(t *testing.T) {
	repo, ctx := setupTestDB(t)
	defer repo.Close(ctx)

	report := sampleReport("Acme Ltd", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.SaveReport(ctx, report))

	loaded, err := repo.ReportByID(ctx, report.ID)
	require.NoError(t, err)

	assert.Equal(t, report.ID, loaded.ID)
	assert.Equal(t, "Acme Ltd", loaded.Client)
	assert.Equal(t, []string{"login_flow", "trial_balance_report"}, loaded.Workflows)
	assert.Equal(t, "completed", loaded.Status)
	require.Len(t, loaded.Events, 3)
	assert.Equal(t, events.DownloadEvent, loaded.Events[1].Type)
}

func TestRepository_SaveReport_Upserts(t *testing.T) {
	repo, ctx := setupTestDB(t)
	defer repo.Close(ctx)

	report := sampleReport("Acme Ltd", time.Now().UTC())
	require.NoError(t, repo.SaveReport(ctx, report))

	report.Status = "failed"
	require.NoError(t, repo.SaveReport(ctx, report))

	loaded, err := repo.ReportByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", loaded.Status)

	reports, err := repo.Reports(ctx)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestRepository_Reports_OrderedByStart(t *testing.T) {
	repo, ctx := setupTestDB(t)
	defer repo.Close(ctx)

	base := time.Now().UTC()
	require.NoError(t, repo.SaveReport(ctx, sampleReport("Newer Ltd", base)))
	require.NoError(t, repo.SaveReport(ctx, sampleReport("Older Ltd", base.Add(-time.Hour))))

	reports, err := repo.Reports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "Older Ltd", reports[0].Client)
	assert.Equal(t, "Newer Ltd", reports[1].Client)
}

func TestRepository_ReportByID_NotFound(t *testing.T) {
	repo, ctx := setupTestDB(t)
	defer repo.Close(ctx)

	_, err := repo.ReportByID(ctx, "report-missing")

	assert.ErrorIs(t, err, persistence.ErrReportNotFound)
}

func TestRepository_HealthCheck(t *testing.T) {
	repo, ctx := setupTestDB(t)
	defer repo.Close(ctx)

	assert.NoError(t, repo.HealthCheck(ctx))
}

func TestRepository_MigrationsAreIdempotent(t *testing.T) {
	repo, ctx := setupTestDB(t)
	defer repo.Close(ctx)

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	second, err := NewRepository(ctx, logger, databaseURL)
	require.NoError(t, err)
	require.NoError(t, second.Close(ctx))
}
