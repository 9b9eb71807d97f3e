// Package file provides file-based report persistence. Each report is one
// JSON document under the root directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/booksweep/booksweep/pkg/persistence"
)

// Repository implements persistence.Repository on the local filesystem.
type Repository struct {
	root string
}

func NewRepository(root string) *Repository {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Repository{root: cleanRoot}
}

func (r *Repository) Close(_ context.Context) error {
	return nil
}

func (r *Repository) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(r.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (r *Repository) SaveReport(_ context.Context, report *persistence.RunReport) error {
	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report %s: %w", report.ID, err)
	}

	path := r.reportPath(report.ID)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", report.ID, err)
	}

	return nil
}

func (r *Repository) Reports(ctx context.Context) ([]*persistence.RunReport, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read report directory: %w", err)
	}

	var reports []*persistence.RunReport

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")

		report, err := r.ReportByID(ctx, id)
		if err != nil {
			return nil, err
		}

		reports = append(reports, report)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartedAt.Before(reports[j].StartedAt)
	})

	return reports, nil
}

func (r *Repository) ReportByID(_ context.Context, id string) (*persistence.RunReport, error) {
	data, err := os.ReadFile(r.reportPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrReportNotFound
		}

		return nil, fmt.Errorf("failed to read report %s: %w", id, err)
	}

	var report persistence.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", id, err)
	}

	return &report, nil
}

func (r *Repository) reportPath(id string) string {
	return filepath.Join(r.root, id+".json")
}
