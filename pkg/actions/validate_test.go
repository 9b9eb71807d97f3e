package actions

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/booksweep/booksweep/pkg/events"
	"github.com/booksweep/booksweep/pkg/mocks"
	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

func pageWithState(headers []any, rows float64) *mocks.MockPage {
	page := &mocks.MockPage{}
	page.On("Evaluate", mock.Anything, mock.Anything).Return(map[string]any{
		"headers": headers,
		"rows":    rows,
	}, nil)

	return page
}

func lastValidationEvent(t *testing.T, ectx *protocol.ExecutionContext) events.Validation {
	t.Helper()

	stream := ectx.Recorder.Events()
	require.NotEmpty(t, stream)

	validation, ok := stream[len(stream)-1].(events.Validation)
	require.True(t, ok, "expected Validation, got %T", stream[len(stream)-1])

	return validation
}

func TestValidateFilters_AllChecksPass(t *testing.T) {
	page := pageWithState([]any{"Account", "Debit", "Credit"}, 12)
	ectx := newExecutionContext(page)

	action := &ValidateFiltersAction{step: &models.Step{
		ID:     "validate",
		Action: models.ActionValidateFilters,
		Checks: models.ValidationChecks{
			ExpectedColumns: []string{"Debit", "credit"},
			MinRows:         5,
		},
	}}

	_, err := action.Execute(context.Background(), ectx, slog.Default())

	require.NoError(t, err)

	validation := lastValidationEvent(t, ectx)
	assert.Len(t, validation.Passed, 3)
	assert.Empty(t, validation.Errors)
}

func TestValidateFilters_MissingColumnIsAdvisory(t *testing.T) {
	page := pageWithState([]any{"Account"}, 12)
	ectx := newExecutionContext(page)

	action := &ValidateFiltersAction{step: &models.Step{
		ID:     "validate",
		Action: models.ActionValidateFilters,
		Checks: models.ValidationChecks{ExpectedColumns: []string{"Debit"}},
	}}

	_, err := action.Execute(context.Background(), ectx, slog.Default())

	require.NoError(t, err)

	validation := lastValidationEvent(t, ectx)
	assert.Empty(t, validation.Passed)
	require.Len(t, validation.Errors, 1)
	assert.Contains(t, validation.Errors[0], "Debit")
}

func TestValidateFilters_FailOnErrorPromotesToStepFailure(t *testing.T) {
	page := pageWithState([]any{"Account"}, 2)
	ectx := newExecutionContext(page)

	action := &ValidateFiltersAction{step: &models.Step{
		ID:     "validate",
		Action: models.ActionValidateFilters,
		Checks: models.ValidationChecks{
			ExpectedColumns: []string{"Debit"},
			MinRows:         10,
		},
		FailOnError: true,
	}}

	_, err := action.Execute(context.Background(), ectx, slog.Default())

	require.Error(t, err)
	assert.True(t, protocol.IsStepFailure(err))

	validation := lastValidationEvent(t, ectx)
	assert.Len(t, validation.Errors, 2)
}

func TestDecodePageState(t *testing.T) {
	headers, rows := decodePageState(map[string]any{
		"headers": []any{"A", "B"},
		"rows":    float64(7),
	})

	assert.Equal(t, []string{"A", "B"}, headers)
	assert.Equal(t, 7, rows)

	headers, rows = decodePageState("garbage")
	assert.Nil(t, headers)
	assert.Zero(t, rows)
}

func TestContainsFold(t *testing.T) {
	headers := []string{" Account ", "Debit (GBP)", "Credit"}

	assert.True(t, containsFold(headers, "account"))
	assert.True(t, containsFold(headers, "Debit"))
	assert.False(t, containsFold(headers, "Balance"))
}
