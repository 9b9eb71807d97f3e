package variables

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksweep/booksweep/pkg/events"
	"github.com/booksweep/booksweep/pkg/report"
)

func TestStore_SetAndGet(t *testing.T) {
	store := NewStore(nil, slog.Default())

	store.Set("downloaded_file", "/tmp/report.xlsx")

	value, ok := store.Get("downloaded_file")
	require.True(t, ok)
	assert.Equal(t, "/tmp/report.xlsx", value)
}

func TestStore_GetString_NonString(t *testing.T) {
	store := NewStore(map[string]any{"count": 3}, slog.Default())

	assert.Equal(t, "3", store.GetString("count"))
	assert.Empty(t, store.GetString("missing"))
}

func TestStore_SharesUnderlyingMap(t *testing.T) {
	vars := map[string]any{}
	store := NewStore(vars, slog.Default())

	store.Set("key", "value")

	assert.Equal(t, "value", vars["key"])
}

func TestStore_Snapshot_IsACopy(t *testing.T) {
	store := NewStore(map[string]any{"a": 1}, slog.Default())

	snapshot := store.Snapshot()
	snapshot["a"] = 99

	value, _ := store.Get("a")
	assert.Equal(t, 1, value)
}

func TestStore_FilterKeysEmitFilterEvents(t *testing.T) {
	recorder := report.NewRecorder(slog.Default())
	store := NewStore(nil, slog.Default()).WithRecorder(recorder)

	store.Set("vat_return_period", "1 Jan 2024 - 31 Mar 2024")
	store.Set("selected_client", "Acme Ltd")
	store.Set("downloaded_file", "/tmp/x.pdf")

	var filters []events.FilterSelected

	for _, ev := range recorder.Events() {
		if f, ok := ev.(events.FilterSelected); ok {
			filters = append(filters, f)
		}
	}

	require.Len(t, filters, 2)
	assert.Equal(t, "vat_return_period", filters[0].FilterName)
	assert.Equal(t, "1 Jan 2024 - 31 Mar 2024", filters[0].Value)
	assert.Equal(t, "selected_client", filters[1].FilterName)
}

func TestStore_ObserverSeesEveryStore(t *testing.T) {
	var seen []map[string]any

	store := NewStore(nil, slog.Default()).WithObserver(func(snapshot map[string]any) {
		seen = append(seen, snapshot)
	})

	store.Set("a", 1)
	store.Set("b", 2)

	require.Len(t, seen, 2)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, seen[1])
}

func TestStore_ObserverPanicIsContained(t *testing.T) {
	store := NewStore(nil, slog.Default()).WithObserver(func(map[string]any) {
		panic("boom")
	})

	assert.NotPanics(t, func() { store.Set("a", 1) })

	value, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, value)
}
