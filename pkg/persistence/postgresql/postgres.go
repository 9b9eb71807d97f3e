// Package postgresql provides PostgreSQL report persistence.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/booksweep/booksweep/pkg/persistence"
	"github.com/booksweep/booksweep/pkg/persistence/sqlbase"
)

// Repository implements persistence.Repository on PostgreSQL.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRepository opens the database, runs migrations and returns a ready
// repository.
func NewRepository(ctx context.Context, logger *slog.Logger, databaseURL string) (*Repository, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Repository{db: database, logger: logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close(_ context.Context) error {
	if r.db != nil {
		err := r.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (r *Repository) HealthCheck(ctx context.Context) error {
	err := r.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// SaveReport upserts one run report.
func (r *Repository) SaveReport(ctx context.Context, report *persistence.RunReport) error {
	events, err := json.Marshal(report.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal report events: %w", err)
	}

	query := `
		INSERT INTO run_reports (id, client, workflows, status, started_at, finished_at, events)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			client = EXCLUDED.client,
			workflows = EXCLUDED.workflows,
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			events = EXCLUDED.events
	`

	_, err = r.db.ExecContext(ctx, query,
		report.ID,
		report.Client,
		pq.Array(report.Workflows),
		report.Status,
		report.StartedAt,
		report.FinishedAt,
		events,
	)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", report.ID, err)
	}

	return nil
}

// Reports returns all stored reports, oldest run first.
func (r *Repository) Reports(ctx context.Context) ([]*persistence.RunReport, error) {
	query := `
		SELECT
			id
		  , client
		  , workflows
		  , status
		  , started_at
		  , finished_at
		  , events
		FROM run_reports
		ORDER BY started_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	reports := make([]*persistence.RunReport, 0)

	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		reports = append(reports, report)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return reports, nil
}

// ReportByID returns one report or persistence.ErrReportNotFound.
func (r *Repository) ReportByID(ctx context.Context, id string) (*persistence.RunReport, error) {
	query := `
		SELECT
			id
		  , client
		  , workflows
		  , status
		  , started_at
		  , finished_at
		  , events
		FROM run_reports
		WHERE id = $1
	`

	report, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrReportNotFound
		}

		return nil, fmt.Errorf("failed to query report %s: %w", id, err)
	}

	return report, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*persistence.RunReport, error) {
	var (
		report    persistence.RunReport
		workflows pq.StringArray
		events    []byte
	)

	err := row.Scan(
		&report.ID,
		&report.Client,
		&workflows,
		&report.Status,
		&report.StartedAt,
		&report.FinishedAt,
		&events,
	)
	if err != nil {
		return nil, err
	}

	report.Workflows = workflows

	if len(events) > 0 {
		if err := json.Unmarshal(events, &report.Events); err != nil {
			return nil, fmt.Errorf("failed to parse report events: %w", err)
		}
	}

	return &report, nil
}
