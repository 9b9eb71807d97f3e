// Package chain runs an ordered series of workflows against one shared
// browser page, once per selected client. The chain owns the page handle,
// the master report and the cooperative cancellation the individual engines
// only observe through their context.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/booksweep/booksweep/pkg/browser"
	"github.com/booksweep/booksweep/pkg/engine"
	"github.com/booksweep/booksweep/pkg/eventbus"
	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/persistence"
	"github.com/booksweep/booksweep/pkg/report"
)

// Session is one configured chain run. Build it with NewSession, then call
// Run exactly once.
type Session struct {
	logger    *slog.Logger
	engine    *engine.Engine
	workflows []*models.Workflow

	// Clients repeats the whole chain once per entry, seeding each run's
	// selected_client variable. Empty means one anonymous pass.
	Clients []string

	// Critical names workflows whose fatal failure aborts the remaining
	// links for the current client (login, client selection).
	Critical []string

	page       browser.Page
	repository persistence.Repository
	bus        eventbus.EventBus

	cleanup     func()
	cleanupOnce sync.Once
}

func NewSession(logger *slog.Logger, eng *engine.Engine, workflows []*models.Workflow, page browser.Page) *Session {
	return &Session{
		logger:    logger.With("module", "chain"),
		engine:    eng,
		workflows: workflows,
		page:      page,
	}
}

// WithRepository persists the master report when the chain finishes.
func (s *Session) WithRepository(repo persistence.Repository) *Session {
	s.repository = repo

	return s
}

// WithBus forwards every run event to the bus as it happens.
func (s *Session) WithBus(bus eventbus.EventBus) *Session {
	s.bus = bus

	return s
}

// WithCleanup registers a teardown hook. It runs exactly once, when Run
// returns, regardless of outcome.
func (s *Session) WithCleanup(cleanup func()) *Session {
	s.cleanup = cleanup

	return s
}

// Run executes every link for every client. The returned status is
// cancelled when ctx was cancelled mid-chain, failed when a critical link
// failed, completed otherwise.
func (s *Session) Run(ctx context.Context) (models.WorkflowStatus, error) {
	defer s.runCleanup()

	startedAt := time.Now()

	master := report.NewRecorder(s.logger)
	if s.bus != nil {
		master = master.WithBus(s.bus)
	}

	clientLabel := strings.Join(s.Clients, ", ")
	if clientLabel == "" {
		clientLabel = "All"
	}

	master.StartWorkflow("Workflow Chain", clientLabel)
	s.logger.Info("Starting workflow chain", "links", len(s.workflows), "clients", len(s.Clients))

	status := models.WorkflowStatusCompleted

	clients := s.Clients
	if len(clients) == 0 {
		clients = []string{""}
	}

chain:
	for clientIdx, client := range clients {
		if ctx.Err() != nil {
			status = models.WorkflowStatusCancelled

			break
		}

		logger := s.logger
		if client != "" {
			logger = logger.With("client", client)
			logger.Info("Processing client", "position", fmt.Sprintf("%d/%d", clientIdx+1, len(clients)))
		}

		for i, workflow := range s.workflows {
			if ctx.Err() != nil {
				status = models.WorkflowStatusCancelled

				break chain
			}

			if s.shouldSkip(workflow) {
				logger.Info("Already in place, skipping workflow", "workflow", workflow.Name, "url", s.page.URL())
				master.Skip("page already in place", workflow.Name)

				continue
			}

			logger.Info("Running workflow link", "workflow", workflow.Name, "position", fmt.Sprintf("%d/%d", i+1, len(s.workflows)))

			vars := map[string]any{}
			if client != "" {
				vars["selected_client"] = client
			}

			recorder := report.NewRecorder(logger)
			if s.bus != nil {
				recorder = recorder.WithBus(s.bus)
			}

			state, err := s.engine.Run(ctx, workflow, s.page, vars, recorder)
			master.Append(recorder.Events())

			if err != nil {
				if ctx.Err() != nil {
					status = models.WorkflowStatusCancelled

					break chain
				}

				logger.Error("Workflow link failed", "workflow", workflow.Name, "error", err)

				if s.isCritical(workflow.Name) {
					logger.Error("Critical workflow failed, stopping chain for client", "workflow", workflow.Name)

					status = models.WorkflowStatusFailed

					break
				}

				continue
			}

			logger.Info("Workflow link completed", "workflow", workflow.Name, "completed_steps", len(state.CompletedSteps))
		}

		if ctx.Err() == nil && client != "" {
			logger.Info("All workflows completed for client")
		}
	}

	master.EndWorkflow(string(status), nil)
	s.logger.Info("Workflow chain finished", "status", status, "duration", time.Since(startedAt).Round(time.Second))

	if err := s.persist(ctx, master, status, startedAt, clientLabel); err != nil {
		s.logger.Error("Failed to persist chain report", "error", err)
	}

	if status == models.WorkflowStatusCancelled {
		return status, context.Cause(ctx)
	}

	return status, nil
}

// shouldSkip applies the link's URL heuristics against the live page, so a
// chain resumed mid-session does not repeat login or navigation.
func (s *Session) shouldSkip(workflow *models.Workflow) bool {
	if len(workflow.SkipIfURLContains) == 0 {
		return false
	}

	current := strings.ToLower(s.page.URL())

	for _, fragment := range workflow.SkipIfURLContains {
		if !strings.Contains(current, strings.ToLower(fragment)) {
			return false
		}
	}

	return true
}

func (s *Session) isCritical(name string) bool {
	for _, critical := range s.Critical {
		if critical == name {
			return true
		}
	}

	return false
}

func (s *Session) persist(ctx context.Context, master *report.Recorder, status models.WorkflowStatus, startedAt time.Time, client string) error {
	if s.repository == nil {
		return nil
	}

	names := make([]string, 0, len(s.workflows))
	for _, workflow := range s.workflows {
		names = append(names, workflow.Name)
	}

	// Persist even after cancellation; use a fresh context so the write is
	// not aborted with the run.
	if ctx.Err() != nil {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	runReport := persistence.NewRunReport(client, string(status), names, startedAt, time.Now(), master.Events())

	return s.repository.SaveReport(ctx, runReport)
}

func (s *Session) runCleanup() {
	s.cleanupOnce.Do(func() {
		if s.cleanup != nil {
			s.cleanup()
		}
	})
}
