package variables

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(vars map[string]any) *Store {
	return NewStore(vars, slog.Default()).WithEnv(map[string]string{})
}

func TestResolve_Today_DefaultFormat(t *testing.T) {
	store := newTestStore(nil)

	result := store.Resolve("${TODAY}")

	assert.Equal(t, time.Now().Format("02 Jan 2006"), result)
}

func TestResolve_Today_CustomFormat(t *testing.T) {
	store := newTestStore(nil)

	result := store.Resolve("${TODAY:yyyy-MM-dd}")

	assert.Equal(t, time.Now().Format("2006-01-02"), result)
}

func TestResolve_DateAdd_PositiveDays(t *testing.T) {
	store := newTestStore(map[string]any{"start": "01 Mar 2024"})

	result := store.Resolve("${DATE_ADD:start:30:yyyy-MM-dd}")

	assert.Equal(t, "2024-03-31", result)
}

func TestResolve_DateAdd_NegativeDays(t *testing.T) {
	store := newTestStore(map[string]any{"end": "01 Mar 2024"})

	result := store.Resolve("${DATE_ADD:end:-1}")

	assert.Equal(t, "29 Feb 2024", result)
}

func TestResolve_DateAdd_DefaultFormat(t *testing.T) {
	store := newTestStore(map[string]any{"start": "2024-03-01"})

	result := store.Resolve("${DATE_ADD:start:0}")

	assert.Equal(t, "01 Mar 2024", result)
}

func TestResolve_DateAdd_UnknownVariable(t *testing.T) {
	store := newTestStore(nil)

	result := store.Resolve("from ${DATE_ADD:missing:30} to")

	assert.Equal(t, "from  to", result)
}

func TestResolve_DateAdd_UnparsableValue(t *testing.T) {
	store := newTestStore(map[string]any{"start": "not a date"})

	result := store.Resolve("${DATE_ADD:start:7}")

	assert.Empty(t, result)
}

func TestResolve_Variable_FromStore(t *testing.T) {
	store := newTestStore(map[string]any{"company_name": "Acme Ltd"})

	result := store.Resolve("report for ${company_name}")

	assert.Equal(t, "report for Acme Ltd", result)
}

func TestResolve_Variable_EnvironmentWins(t *testing.T) {
	store := NewStore(map[string]any{"XERO_USER": "stored"}, slog.Default()).
		WithEnv(map[string]string{"XERO_USER": "from-env"})

	result := store.Resolve("${XERO_USER}")

	assert.Equal(t, "from-env", result)
}

func TestResolve_Variable_UnresolvedBecomesEmpty(t *testing.T) {
	store := newTestStore(nil)

	result := store.Resolve("x${NOPE}y")

	assert.Equal(t, "xy", result)
}

func TestResolve_MultipleExpressions(t *testing.T) {
	store := newTestStore(map[string]any{
		"period_start": "01 Apr 2024",
		"client":       "Beta Co",
	})

	result := store.Resolve("${client}: ${period_start} - ${DATE_ADD:period_start:90:dd/MM/yyyy}")

	assert.Equal(t, "Beta Co: 01 Apr 2024 - 30/06/2024", result)
}

func TestResolve_PlainStringPassesThrough(t *testing.T) {
	store := newTestStore(nil)

	assert.Equal(t, "no templates here", store.Resolve("no templates here"))
}

func TestResolveAny_NonStringUntouched(t *testing.T) {
	store := newTestStore(nil)

	assert.Equal(t, 42, store.ResolveAny(42))
	assert.Equal(t, true, store.ResolveAny(true))
}

func TestParseDate_AcceptedLayouts(t *testing.T) {
	cases := []string{"31 Mar 2025", "31 March 2025", "2025-03-31", "31/03/2025"}

	for _, input := range cases {
		parsed, ok := ParseDate(input)
		require.True(t, ok, "expected %q to parse", input)
		assert.Equal(t, time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC), parsed)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	_, ok := ParseDate("yesterday")

	assert.False(t, ok)
}

func TestFormatDate_TokenGrammar(t *testing.T) {
	date := time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "05 Feb 2024", FormatDate(date, ""))
	assert.Equal(t, "2024-02-05", FormatDate(date, "yyyy-MM-dd"))
	assert.Equal(t, "05 February 2024", FormatDate(date, "dd MMMM yyyy"))
	assert.Equal(t, "05022024", FormatDate(date, "ddMMyyyy"))
}

func TestLayout_LongestTokenWins(t *testing.T) {
	assert.Equal(t, "January 2006", Layout("MMMM yyyy"))
	assert.Equal(t, "Jan", Layout("MMM"))
}
