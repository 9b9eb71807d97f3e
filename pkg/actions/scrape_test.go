package actions

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/booksweep/booksweep/pkg/mocks"
	"github.com/booksweep/booksweep/pkg/models"
)

func scrapeItem(name, amount string) *mocks.MockLocator {
	nameCell := &mocks.MockLocator{}
	nameCell.On("First").Return(nil)
	nameCell.On("TextContent", mock.Anything).Return(name, nil)

	amountCell := &mocks.MockLocator{}
	amountCell.On("First").Return(nil)
	amountCell.On("TextContent", mock.Anything).Return(amount, nil)

	item := &mocks.MockLocator{}
	item.On("Locator", "td.name").Return(nameCell)
	item.On("Locator", "td.amount").Return(amountCell)

	return item
}

func TestScrape_ExtractsRecords(t *testing.T) {
	items := &mocks.MockLocator{}
	items.On("Count", mock.Anything).Return(2, nil)
	items.On("Nth", 0).Return(scrapeItem(" Acme Ltd ", "120.50"))
	items.On("Nth", 1).Return(scrapeItem("Beta Co", "75.00"))

	container := visibleLocator()
	container.On("Locator", "tbody tr").Return(items)

	page := &mocks.MockPage{}
	page.On("Locator", ".invoice-list").Return(container)

	ectx := newExecutionContext(page)

	action := &ScrapeAction{step: &models.Step{
		ID:        "scrape-invoices",
		Action:    models.ActionScrape,
		Target:    "invoices",
		Container: models.SelectorSet{Selectors: []string{".invoice-list"}},
		Items:     models.SelectorSet{Selectors: []string{"tbody tr"}},
		Fields: map[string]models.FieldSpec{
			"name":   {Selectors: []string{"td.name"}},
			"amount": {Selectors: []string{"td.amount"}},
		},
		Timeout: 50,
	}}

	_, err := action.Execute(context.Background(), ectx, slog.Default())

	require.NoError(t, err)

	value, ok := ectx.Vars.Get("invoices")
	require.True(t, ok)

	records, ok := value.([]map[string]string)
	require.True(t, ok)
	require.Len(t, records, 2)
	assert.Equal(t, "Acme Ltd", records[0]["name"])
	assert.Equal(t, "120.50", records[0]["amount"])
	assert.Equal(t, "Beta Co", records[1]["name"])
}

func TestScrape_MissingContainerStoresEmptyList(t *testing.T) {
	locator := &mocks.MockLocator{}
	locator.On("First").Return(nil)
	locator.On("IsVisible", mock.Anything, mock.Anything).Return(false, nil)

	page := &mocks.MockPage{}
	page.On("Locator", mock.Anything).Return(locator)

	ectx := newExecutionContext(page)

	action := &ScrapeAction{step: &models.Step{
		ID:        "scrape",
		Action:    models.ActionScrape,
		Target:    "invoices",
		Container: models.SelectorSet{Selectors: []string{".gone"}},
		Timeout:   50,
	}}

	_, err := action.Execute(context.Background(), ectx, slog.Default())

	require.NoError(t, err)

	value, ok := ectx.Vars.Get("invoices")
	require.True(t, ok)
	assert.Empty(t, value)
}

func TestScrape_PersistsToFile(t *testing.T) {
	items := &mocks.MockLocator{}
	items.On("Count", mock.Anything).Return(1, nil)
	items.On("Nth", 0).Return(scrapeItem("Acme Ltd", "10.00"))

	container := visibleLocator()
	container.On("Locator", "tr").Return(items)

	page := &mocks.MockPage{}
	page.On("Locator", ".list").Return(container)

	ectx := newExecutionContext(page)
	ectx.DownloadsDir = t.TempDir()

	action := &ScrapeAction{step: &models.Step{
		ID:        "scrape",
		Action:    models.ActionScrape,
		SaveAs:    "rows",
		Container: models.SelectorSet{Selectors: []string{".list"}},
		Items:     models.SelectorSet{Selectors: []string{"tr"}},
		Fields: map[string]models.FieldSpec{
			"name": {Selectors: []string{"td.name"}},
		},
		SaveTo:  "scraped/invoices.json",
		Timeout: 50,
	}}

	_, err := action.Execute(context.Background(), ectx, slog.Default())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(ectx.DownloadsDir, "scraped", "invoices.json"))
	require.NoError(t, err)

	var records []map[string]string
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Acme Ltd", records[0]["name"])
}

func TestExtractField_AttributeAndPattern(t *testing.T) {
	cell := &mocks.MockLocator{}
	cell.On("First").Return(nil)
	cell.On("GetAttribute", mock.Anything, "href").Return("/invoices/INV-0042/view", nil)

	item := &mocks.MockLocator{}
	item.On("Locator", "a").Return(cell)

	value := extractField(context.Background(), item, models.FieldSpec{
		Selectors:      []string{"a"},
		Attribute:      "href",
		ExtractPattern: `INV-(\d+)`,
	})

	assert.Equal(t, "0042", value)
}

func TestExtractField_FallsThroughEmptyValues(t *testing.T) {
	empty := &mocks.MockLocator{}
	empty.On("First").Return(nil)
	empty.On("TextContent", mock.Anything).Return("   ", nil)

	filled := &mocks.MockLocator{}
	filled.On("First").Return(nil)
	filled.On("TextContent", mock.Anything).Return("value", nil)

	item := &mocks.MockLocator{}
	item.On("Locator", ".a").Return(empty)
	item.On("Locator", ".b").Return(filled)

	value := extractField(context.Background(), item, models.FieldSpec{
		Selectors: []string{".a", ".b"},
	})

	assert.Equal(t, "value", value)
}
