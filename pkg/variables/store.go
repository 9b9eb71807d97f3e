// Package variables holds the values a run captures and expands the
// template expressions embedded in step parameters.
package variables

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/booksweep/booksweep/pkg/report"
)

// Observer receives a snapshot of all variables after every store. It is a
// best-effort notification: errors and panics never reach the engine.
type Observer func(snapshot map[string]any)

// filterKeywords classifies variable keys whose values narrow an export.
// Matching stores additionally emit a "filter selected" report event.
var filterKeywords = []string{"date", "period", "year", "client", "company", "column"}

// Store is the string-keyed variable map of one run. It is not safe for
// concurrent use; the single-flight execution discipline protects it.
type Store struct {
	vars     map[string]any
	env      map[string]string
	logger   *slog.Logger
	recorder *report.Recorder
	observer Observer
}

// NewStore wraps vars, which the caller (the engine) keeps owning; stores
// through this Store are visible in the underlying map.
func NewStore(vars map[string]any, logger *slog.Logger) *Store {
	if vars == nil {
		vars = make(map[string]any)
	}

	return &Store{vars: vars, logger: logger}
}

// WithEnv overrides the process environment for resolution. Used by tests
// and by the chain driver to scope credentials per client.
func (s *Store) WithEnv(env map[string]string) *Store {
	s.env = env

	return s
}

func (s *Store) WithRecorder(recorder *report.Recorder) *Store {
	s.recorder = recorder

	return s
}

func (s *Store) WithObserver(observer Observer) *Store {
	s.observer = observer

	return s
}

// Get returns the raw stored value.
func (s *Store) Get(key string) (any, bool) {
	v, ok := s.vars[key]

	return v, ok
}

// GetString returns the stored value rendered as a string, "" when unset.
func (s *Store) GetString(key string) string {
	v, ok := s.vars[key]
	if !ok || v == nil {
		return ""
	}

	if str, ok := v.(string); ok {
		return str
	}

	return fmt.Sprint(v)
}

// Set stores value under key, overwriting any prior value, notifies the
// observer, and records a filter event when the key matches the filter
// classification heuristic.
func (s *Store) Set(key string, value any) {
	s.vars[key] = value

	s.notify()

	if s.recorder != nil && isFilterKey(key) {
		s.recorder.Filter(key, fmt.Sprint(value))
	}
}

// Snapshot returns a copy of the current variables.
func (s *Store) Snapshot() map[string]any {
	snapshot := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		snapshot[k] = v
	}

	return snapshot
}

func (s *Store) notify() {
	if s.observer == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Variable observer panicked", "panic", r)
		}
	}()

	s.observer(s.Snapshot())
}

func (s *Store) lookupEnv(name string) (string, bool) {
	if s.env != nil {
		v, ok := s.env[name]

		return v, ok
	}

	return os.LookupEnv(name)
}

func isFilterKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range filterKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	return false
}
