package actions

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/booksweep/booksweep/pkg/browser"
	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

// ScrapeAction extracts structured records from a list on the page. The
// step is observational: a missing container or an empty list stores an
// empty result rather than failing, so scraping never blocks an export.
type ScrapeAction struct {
	step *models.Step
}

func (a *ScrapeAction) Execute(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger) (string, error) {
	timeout := timeoutOr(a.step.Timeout, 10*time.Second)

	records := a.scrape(ctx, ectx, logger, timeout)

	key := a.step.Target
	if key == "" {
		key = a.step.SaveAs
	}

	if key != "" {
		ectx.Vars.Set(key, records)
	}

	logger.Info("Scrape finished", "target", key, "records", len(records))

	if a.step.SaveTo != "" {
		if err := a.persist(ectx, records); err != nil {
			logger.Warn("Failed to persist scraped records", "path", a.step.SaveTo, "error", err)
		}
	}

	return "", nil
}

func (a *ScrapeAction) scrape(ctx context.Context, ectx *protocol.ExecutionContext, logger *slog.Logger, timeout time.Duration) []map[string]string {
	records := []map[string]string{}

	perSelector := timeout / time.Duration(max(len(a.step.Container.Selectors), 1))

	container, ok := firstVisible(ctx, ectx.Page, a.step.Container.Selectors, perSelector)
	if !ok {
		logger.Warn("Scrape container not found", "selectors", a.step.Container.Selectors)

		return records
	}

	items := firstItems(ctx, container, a.step.Items.Selectors)
	if items == nil {
		logger.Info("No items to scrape")

		return records
	}

	count, err := items.Count(ctx)
	if err != nil {
		logger.Warn("Failed to count scrape items", "error", err)

		return records
	}

	for i := 0; i < count; i++ {
		item := items.Nth(i)
		record := map[string]string{}

		for name, field := range a.step.Fields {
			record[name] = extractField(ctx, item, field)
		}

		records = append(records, record)
	}

	return records
}

func (a *ScrapeAction) persist(ectx *protocol.ExecutionContext, records []map[string]string) error {
	path := ectx.Vars.Resolve(a.step.SaveTo)
	if !filepath.IsAbs(path) && ectx.DownloadsDir != "" {
		path = filepath.Join(ectx.DownloadsDir, path)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// firstItems returns the first item query that matches at least one element.
func firstItems(ctx context.Context, container browser.Locator, selectors []string) browser.Locator {
	for _, selector := range selectors {
		items := container.Locator(selector)

		count, err := items.Count(ctx)
		if err != nil || count == 0 {
			continue
		}

		return items
	}

	return nil
}

// extractField pulls one field value out of a scraped item, trying each
// selector until one yields text.
func extractField(ctx context.Context, item browser.Locator, field models.FieldSpec) string {
	for _, selector := range field.Selectors {
		target := item.Locator(selector).First()

		var (
			value string
			err   error
		)

		if field.Attribute != "" {
			value, err = target.GetAttribute(ctx, field.Attribute)
		} else {
			value, err = target.TextContent(ctx)
		}

		if err != nil {
			continue
		}

		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		if field.ExtractPattern != "" {
			extracted, err := extractPattern(field.ExtractPattern, value)
			if err != nil || extracted == "" {
				continue
			}

			value = extracted
		}

		return value
	}

	return ""
}
