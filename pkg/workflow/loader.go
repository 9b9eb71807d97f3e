// Package workflow loads workflow definitions from disk and validates them
// before the engine sees them: JSON schema first, then struct tags, then
// the structural invariants (unique ids, known actions, resolvable jump
// targets). A definition that loads is safe to run.
package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/schema"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load parses and validates one workflow document. format is "yaml" or
// "json".
func Load(data []byte, format string) (*models.Workflow, error) {
	var (
		document map[string]any
		workflow models.Workflow
	)

	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
		}

		if err := schema.ValidateDocument(document); err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, &workflow); err != nil {
			return nil, fmt.Errorf("failed to decode workflow: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("failed to parse workflow JSON: %w", err)
		}

		if err := schema.ValidateDocument(document); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(data, &workflow); err != nil {
			return nil, fmt.Errorf("failed to decode workflow: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported workflow format %q", format)
	}

	if err := validate.Struct(&workflow); err != nil {
		return nil, fmt.Errorf("workflow %q invalid: %w", workflow.Name, err)
	}

	if err := workflow.Validate(); err != nil {
		return nil, fmt.Errorf("workflow %q invalid: %w", workflow.Name, err)
	}

	return &workflow, nil
}

// LoadFile loads one workflow, picking the format from the extension.
func LoadFile(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	format := strings.TrimPrefix(filepath.Ext(path), ".")

	workflow, err := Load(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return workflow, nil
}

// LoadDir loads every workflow file in a directory, sorted by filename so
// numbered files define the chain order.
func LoadDir(dir string) ([]*models.Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow directory: %w", err)
	}

	var paths []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(paths)

	workflows := make([]*models.Workflow, 0, len(paths))

	for _, path := range paths {
		workflow, err := LoadFile(path)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}
