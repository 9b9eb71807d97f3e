package actions

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/booksweep/booksweep/pkg/browser"
	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

// WaitForDownloadAction captures a download triggered by an earlier step,
// waits for the file to be fully written and copies it under the client
// folder with a normalized name.
type WaitForDownloadAction struct {
	step *models.Step
}

func (a *WaitForDownloadAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	timeout := timeoutOr(a.step.Timeout, 30*time.Second)

	logger.Info("Waiting for download to start")

	download, err := ectx.Page.ExpectDownload(ctx, timeout, nil)
	if err != nil {
		return "", protocol.Failf("download did not start: %w", err)
	}

	return finishDownload(ctx, ectx, logger, a.step, download, false)
}

// ClickAndDownloadAction clicks the first visible selector and captures the
// download the click provokes.
type ClickAndDownloadAction struct {
	step *models.Step
}

func (a *ClickAndDownloadAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	timeout := timeoutOr(a.step.Timeout, 30*time.Second)
	perSelector := timeout / time.Duration(max(len(a.step.Selectors), 1))

	locator, ok := firstVisible(ctx, ectx.Page, a.step.Selectors, perSelector)
	if !ok {
		return "", protocol.Failf("no download button found for selectors %v", a.step.Selectors)
	}

	logger.Info("Clicking download button")

	download, err := ectx.Page.ExpectDownload(ctx, timeout, func() error {
		return locator.Click(ctx)
	})
	if err != nil {
		return "", protocol.Failf("click produced no download: %w", err)
	}

	return finishDownload(ctx, ectx, logger, a.step, download, true)
}

// finishDownload waits for the browser's temp file, derives the client
// folder and normalized filename, and copies the export into place. The
// extended company fallback parses more filename shapes and is used by
// click_and_download only.
func finishDownload(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger, step *models.Step, download browser.Download, extendedCompanyFallback bool) (string, error) {
	original := download.SuggestedFilename()
	logger.Info("Download started", "file", original)

	tempPath, err := download.Path(ctx)
	if err != nil {
		return "", protocol.Failf("download did not complete: %w", err)
	}

	if failure, err := download.Failure(ctx); err == nil && failure != "" {
		return "", protocol.Failf("download failed: %s", failure)
	}

	if tempPath == "" {
		return "", protocol.Failf("download completed but no file path returned")
	}

	size := awaitFileWritten(ctx, tempPath)
	logger.Info("Download temp file ready", "path", tempPath, "bytes", size)

	if size == 0 {
		return "", protocol.Failf("download completed but temp file is 0 bytes, possible session expiry or server error")
	}

	company := ectx.Vars.GetString("company_name")
	if company == "" {
		company = ectx.Vars.GetString("selected_client")
	}

	if company == "" {
		if extendedCompanyFallback {
			company = companyFromFilename(original)
		} else if idx := strings.Index(original, "_-_"); idx >= 0 {
			company = strings.TrimSpace(original[:idx])
		}
	}

	if company != "" {
		ectx.Vars.Set("company_name", company)
	}

	saveTo := ectx.Vars.Resolve(step.SaveTo)
	if saveTo == "" {
		saveTo = ectx.DownloadsDir
	}

	ext := filepath.Ext(original)
	periodStart := ectx.Vars.GetString("vat_return_start_date")
	periodEnd := ectx.Vars.GetString("vat_return_end_date")

	filename, clientFolder := downloadFilename(ectx.WorkflowName, company, ext, periodStart, periodEnd)

	dir := filepath.Join(saveTo, clientFolder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", protocol.Failf("failed to create download folder %s: %w", dir, err)
	}

	dest := filepath.Join(dir, filename)
	logger.Info("Copying download", "to", dest)

	if err := download.SaveAs(ctx, dest); err != nil {
		return "", protocol.Failf("failed to save download: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return "", protocol.Failf("saved download missing: %w", err)
	}

	if info.Size() == 0 {
		return "", protocol.Failf("download completed but file is 0 bytes")
	}

	ectx.Vars.Set("downloaded_file", dest)
	ectx.Recorder.Download(filename, dest)

	logger.Info("Download saved", "client", company, "file", filename, "bytes", info.Size())

	return "", nil
}

// awaitFileWritten polls the temp file until it has content. Browsers
// report completion slightly before the final flush lands on disk.
func awaitFileWritten(ctx context.Context, path string) int64 {
	var size int64

	for attempt := 0; attempt < 10; attempt++ {
		sleep(ctx, 500*time.Millisecond)

		info, err := os.Stat(path)
		if err == nil {
			size = info.Size()
			if size > 0 {
				break
			}
		}

		if ctx.Err() != nil {
			break
		}
	}

	return size
}
