// Package schema validates workflow documents against the published JSON
// schema before they are decoded into models.
package schema

import (
	"encoding/json"
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed workflow.schema.json
var workflowSchema []byte

// ValidateDocument checks a decoded workflow document against the schema.
// The document must already be JSON-compatible (maps keyed by strings).
func ValidateDocument(document map[string]any) error {
	schemaLoader := gojsonschema.NewBytesLoader(workflowSchema)
	dataLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed to run: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("workflow document invalid: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ValidateJSON checks raw JSON workflow bytes against the schema.
func ValidateJSON(data []byte) error {
	var document map[string]any
	if err := json.Unmarshal(data, &document); err != nil {
		return fmt.Errorf("not a JSON object: %w", err)
	}

	return ValidateDocument(document)
}
