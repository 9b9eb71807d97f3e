package actions

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

// CaptureStateAction stores resolved values into the variable store. The
// save map runs in arbitrary order, so entries must not depend on each
// other. The magic value "current_url" captures the page address; the magic
// keys "screenshot" and "html" dump the page to the given path instead of
// storing a variable. Dump failures are logged, never fatal.
type CaptureStateAction struct {
	step *models.Step
}

func (a *CaptureStateAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	for key, raw := range a.step.Save {
		switch key {
		case "screenshot":
			a.saveScreenshot(ctx, ectx, logger, ectx.Vars.Resolve(raw))

			continue
		case "html":
			a.saveHTML(ctx, ectx, logger, ectx.Vars.Resolve(raw))

			continue
		}

		var value string

		switch raw {
		case "current_url":
			value = ectx.Page.URL()
		default:
			value = ectx.Vars.Resolve(raw)
		}

		ectx.Vars.Set(key, value)
		logger.Info("Captured state", "key", key, "value", value)
	}

	return "", nil
}

func (a *CaptureStateAction) saveScreenshot(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("Could not create screenshot directory", "path", path, "error", err)

		return
	}

	if err := ectx.Page.Screenshot(ctx, path); err != nil {
		logger.Warn("Could not capture screenshot", "path", path, "error", err)

		return
	}

	logger.Info("Saved page screenshot", "path", path)
}

func (a *CaptureStateAction) saveHTML(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger, path string) {
	html, err := ectx.Page.Content(ctx)
	if err != nil {
		logger.Warn("Could not read page content", "path", path, "error", err)

		return
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("Could not create content directory", "path", path, "error", err)

		return
	}

	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		logger.Warn("Could not write page content", "path", path, "error", err)

		return
	}

	logger.Info("Saved page content", "path", path)
}
