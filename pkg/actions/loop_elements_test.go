package actions

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/booksweep/booksweep/pkg/mocks"
	"github.com/booksweep/booksweep/pkg/models"
)

func datedRow(date string) *mocks.MockLocator {
	cell := &mocks.MockLocator{}
	cell.On("First").Return(nil)
	cell.On("TextContent", mock.Anything).Return(date, nil)

	row := &mocks.MockLocator{}
	row.On("Locator", ".date").Return(cell)

	return row
}

func nthCalls(m *mocks.MockLocator) []int {
	var indices []int

	for _, call := range m.Calls {
		if call.Method == "Nth" {
			indices = append(indices, call.Arguments.Int(0))
		}
	}

	return indices
}

func TestLoopElements_ReverseOrderByDefault(t *testing.T) {
	rows := &mocks.MockLocator{}
	rows.On("Count", mock.Anything).Return(3, nil)
	rows.On("Nth", mock.Anything).Return(datedRow("01 Jan 2024"))

	page := &mocks.MockPage{}
	page.On("Locator", ".row").Return(rows)

	ectx := newExecutionContext(page)

	runs := 0
	ectx.RunSubSteps = func(context.Context, []models.Step) error {
		runs++

		return nil
	}

	action := &LoopElementsAction{step: &models.Step{
		ID:           "loop",
		Action:       models.ActionLoopElements,
		ItemSelector: ".row",
	}}

	_, err := action.Execute(context.Background(), ectx, slog.Default())

	require.NoError(t, err)
	assert.Equal(t, 3, runs)
	assert.Equal(t, []int{2, 1, 0}, nthCalls(rows))
	assert.Equal(t, "3", ectx.Vars.GetString("loop_processed_count"))
}

func TestLoopElements_ExplicitForwardOrder(t *testing.T) {
	rows := &mocks.MockLocator{}
	rows.On("Count", mock.Anything).Return(2, nil)
	rows.On("Nth", mock.Anything).Return(datedRow("01 Jan 2024"))

	page := &mocks.MockPage{}
	page.On("Locator", ".row").Return(rows)

	ectx := newExecutionContext(page)
	ectx.RunSubSteps = func(context.Context, []models.Step) error { return nil }

	forward := false
	action := &LoopElementsAction{step: &models.Step{
		ID:           "loop",
		Action:       models.ActionLoopElements,
		ItemSelector: ".row",
		ReverseOrder: &forward,
	}}

	_, err := action.Execute(context.Background(), ectx, slog.Default())

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, nthCalls(rows))
}

func TestLoopElements_DateFilterIsInclusive(t *testing.T) {
	// Rows newest first, as the page renders them. Reverse order means the
	// oldest is visited first.
	rowDates := map[int]string{
		0: "01 May 2024",
		1: "01 Apr 2024",
		2: "01 Mar 2024",
	}

	rows := &mocks.MockLocator{}
	rows.On("Count", mock.Anything).Return(3, nil)

	for i, date := range rowDates {
		rows.On("Nth", i).Return(datedRow(date))
	}

	page := &mocks.MockPage{}
	page.On("Locator", ".row").Return(rows)

	ectx := newExecutionContext(page)

	runs := 0
	ectx.RunSubSteps = func(context.Context, []models.Step) error {
		runs++

		return nil
	}

	action := &LoopElementsAction{step: &models.Step{
		ID:                "loop",
		Action:            models.ActionLoopElements,
		ItemSelector:      ".row",
		DateFieldSelector: ".date",
		FilterDateFrom:    "01 Apr 2024",
	}}

	_, err := action.Execute(context.Background(), ectx, slog.Default())

	require.NoError(t, err)
	// The 01 Mar row falls before the filter; 01 Apr itself is kept.
	assert.Equal(t, 2, runs)
	assert.Equal(t, "2", ectx.Vars.GetString("loop_processed_count"))
}

func TestLoopElements_UnparseableFilterProcessesEverything(t *testing.T) {
	rows := &mocks.MockLocator{}
	rows.On("Count", mock.Anything).Return(2, nil)
	rows.On("Nth", mock.Anything).Return(datedRow("01 Jan 2024"))

	page := &mocks.MockPage{}
	page.On("Locator", ".row").Return(rows)

	ectx := newExecutionContext(page)

	runs := 0
	ectx.RunSubSteps = func(context.Context, []models.Step) error {
		runs++

		return nil
	}

	action := &LoopElementsAction{step: &models.Step{
		ID:                "loop",
		Action:            models.ActionLoopElements,
		ItemSelector:      ".row",
		DateFieldSelector: ".date",
		FilterDateFrom:    "${unset_variable}",
	}}

	_, err := action.Execute(context.Background(), ectx, slog.Default())

	require.NoError(t, err)
	assert.Equal(t, 2, runs)
}

func TestLoopElements_SubStepErrorDoesNotStopTheLoop(t *testing.T) {
	rows := &mocks.MockLocator{}
	rows.On("Count", mock.Anything).Return(2, nil)
	rows.On("Nth", mock.Anything).Return(datedRow("01 Jan 2024"))

	page := &mocks.MockPage{}
	page.On("Locator", ".row").Return(rows)

	ectx := newExecutionContext(page)

	runs := 0
	ectx.RunSubSteps = func(context.Context, []models.Step) error {
		runs++

		return assert.AnError
	}

	action := &LoopElementsAction{step: &models.Step{
		ID:           "loop",
		Action:       models.ActionLoopElements,
		ItemSelector: ".row",
	}}

	_, err := action.Execute(context.Background(), ectx, slog.Default())

	require.NoError(t, err)
	assert.Equal(t, 2, runs)
	assert.Equal(t, "2", ectx.Vars.GetString("loop_processed_count"))
}

func TestLoopElements_ScopedToContainer(t *testing.T) {
	rows := &mocks.MockLocator{}
	rows.On("Count", mock.Anything).Return(0, nil)

	container := &mocks.MockLocator{}
	container.On("Locator", ".row").Return(rows)

	page := &mocks.MockPage{}
	page.On("Locator", ".list").Return(container)

	ectx := newExecutionContext(page)
	ectx.RunSubSteps = func(context.Context, []models.Step) error { return nil }

	action := &LoopElementsAction{step: &models.Step{
		ID:                "loop",
		Action:            models.ActionLoopElements,
		ContainerSelector: ".list",
		ItemSelector:      ".row",
	}}

	_, err := action.Execute(context.Background(), ectx, slog.Default())

	require.NoError(t, err)
	assert.Equal(t, "0", ectx.Vars.GetString("loop_processed_count"))
	container.AssertCalled(t, "Locator", ".row")
}
