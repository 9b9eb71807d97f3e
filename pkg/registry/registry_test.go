package registry

import (
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksweep/booksweep/pkg/models"
)

func TestDefaultRegistry_CreatesEveryKnownAction(t *testing.T) {
	reg := NewDefaultRegistry(slog.Default())

	for actionType := range models.KnownActions {
		step := &models.Step{ID: "step", Action: actionType}

		action, err := reg.CreateAction(step)

		require.NoError(t, err, "action %s", actionType)
		assert.NotNil(t, action)
	}
}

func TestCreateAction_Unregistered(t *testing.T) {
	reg := NewRegistry(slog.Default())

	_, err := reg.CreateAction(&models.Step{ID: "step", Action: models.ActionGoto})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestAvailableActions_Sorted(t *testing.T) {
	reg := NewDefaultRegistry(slog.Default())

	available := reg.AvailableActions()

	assert.Len(t, available, len(models.KnownActions))
	assert.True(t, sort.StringsAreSorted(available))
}
