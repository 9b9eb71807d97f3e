package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/booksweep/booksweep/pkg/persistence"
	"github.com/booksweep/booksweep/pkg/persistence/file"
	"github.com/booksweep/booksweep/pkg/persistence/postgresql"
)

// NewRepository picks the report store from the database URL scheme.
// postgres:// and postgresql:// open a database, anything else is treated
// as a file path.
func NewRepository(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Repository, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewRepository(ctx, logger, databaseURL)
	default:
		return file.NewRepository(databaseURL), nil
	}
}

func parseProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
