package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument_Valid(t *testing.T) {
	document := map[string]any{
		"name": "trial_balance_report",
		"steps": []any{
			map[string]any{
				"id":     "open-report",
				"action": "goto",
				"url":    "https://app.example.com/reports",
			},
		},
	}

	assert.NoError(t, ValidateDocument(document))
}

func TestValidateDocument_UnknownAction(t *testing.T) {
	document := map[string]any{
		"name": "broken_workflow",
		"steps": []any{
			map[string]any{"id": "bad", "action": "teleport"},
		},
	}

	err := ValidateDocument(document)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestValidateDocument_MissingName(t *testing.T) {
	document := map[string]any{
		"steps": []any{
			map[string]any{"id": "a", "action": "goto"},
		},
	}

	assert.Error(t, ValidateDocument(document))
}

func TestValidateDocument_EmptySteps(t *testing.T) {
	document := map[string]any{
		"name":  "no_steps_yet",
		"steps": []any{},
	}

	assert.Error(t, ValidateDocument(document))
}

func TestValidateDocument_NestedSubSteps(t *testing.T) {
	document := map[string]any{
		"name": "vat_returns",
		"steps": []any{
			map[string]any{
				"id":     "loop",
				"action": "loop_vat_returns",
				"sub_steps": []any{
					map[string]any{"id": "export", "action": "click_and_download"},
				},
			},
		},
	}

	assert.NoError(t, ValidateDocument(document))
}

func TestValidateJSON(t *testing.T) {
	valid := `{"name": "navigate_home", "steps": [{"id": "go", "action": "goto"}]}`
	assert.NoError(t, ValidateJSON([]byte(valid)))

	assert.Error(t, ValidateJSON([]byte("not json")))
	assert.Error(t, ValidateJSON([]byte(`{"name": "x"}`)))
}
