// Package registry maps action types to their handler factories.
package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/booksweep/booksweep/pkg/actions"
	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/protocol"
)

type Registry struct {
	logger          *slog.Logger
	actionFactories map[models.ActionType]protocol.ActionFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log,
		actionFactories: make(map[models.ActionType]protocol.ActionFactory),
	}
}

// NewDefaultRegistry returns a registry with every built-in action
// registered. The result covers the closed enumeration in models.
func NewDefaultRegistry(log *slog.Logger) *Registry {
	r := NewRegistry(log)
	for _, factory := range actions.Factories() {
		r.RegisterAction(factory)
	}

	return r
}

func (r *Registry) RegisterAction(actionFactory protocol.ActionFactory) {
	r.actionFactories[actionFactory.ID()] = actionFactory
}

func (r *Registry) CreateAction(step *models.Step) (protocol.Action, error) {
	factory, ok := r.actionFactories[step.Action]
	if !ok {
		return nil, fmt.Errorf("action type '%s' not registered", step.Action)
	}

	return factory.Create(step)
}

// AvailableActions lists the registered action types in stable order.
func (r *Registry) AvailableActions() []string {
	types := make([]string, 0, len(r.actionFactories))
	for actionType := range r.actionFactories {
		types = append(types, string(actionType))
	}

	sort.Strings(types)

	return types
}
