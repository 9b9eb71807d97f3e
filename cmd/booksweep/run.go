package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/booksweep/booksweep/pkg/browser/cdp"
	"github.com/booksweep/booksweep/pkg/chain"
	"github.com/booksweep/booksweep/pkg/cmd"
	"github.com/booksweep/booksweep/pkg/engine"
	"github.com/booksweep/booksweep/pkg/log"
	"github.com/booksweep/booksweep/pkg/models"
	"github.com/booksweep/booksweep/pkg/otelhelper"
	"github.com/booksweep/booksweep/pkg/registry"
	"github.com/booksweep/booksweep/pkg/workflow"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a chain of workflows against a running browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "workflows-dir",
				Usage:   "Directory containing workflow definitions",
				Value:   "./workflows",
				Sources: cli.EnvVars("WORKFLOWS_DIR"),
			},
			&cli.StringSliceFlag{
				Name:    "workflow",
				Aliases: []string{"w"},
				Usage:   "Workflow name to run, in chain order (repeatable; default: all, sorted)",
			},
			&cli.StringSliceFlag{
				Name:    "client",
				Aliases: []string{"c"},
				Usage:   "Client name to repeat the chain for (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "critical",
				Usage: "Workflow whose failure stops the chain (repeatable)",
			},
			&cli.StringFlag{
				Name:    "browser",
				Usage:   "Chrome remote debugging address",
				Value:   "127.0.0.1:9222",
				Sources: cli.EnvVars("BROWSER_ADDRESS"),
			},
			&cli.StringFlag{
				Name:    "downloads-dir",
				Usage:   "Directory exported files are saved into",
				Value:   "./downloads",
				Sources: cli.EnvVars("DOWNLOADS_DIR"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Report store URL (file path or postgres://)",
				Value:   "file://./reports",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("booksweep")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workflows, err := selectWorkflows(command.String("workflows-dir"), command.StringSlice("workflow"))
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "Loaded workflows", "count", len(workflows))

	downloadsDir, err := filepath.Abs(command.String("downloads-dir"))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(downloadsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create downloads directory: %w", err)
	}

	client, err := cdp.Connect(ctx, logger, command.String("browser"))
	if err != nil {
		return err
	}

	page, err := cdp.Attach(ctx, client, cdp.AttachOptions{DownloadsDir: downloadsDir})
	if err != nil {
		_ = client.Close()

		return err
	}

	eventBus, err := cmd.NewEventBus("gochannel", logger)
	if err != nil {
		_ = client.Close()

		return err
	}

	repository, err := cmd.NewRepository(ctx, logger, command.String("database-url"))
	if err != nil {
		_ = client.Close()

		return err
	}

	defer func() {
		if err := repository.Close(context.Background()); err != nil {
			logger.Error("Failed to close report store", "error", err)
		}
	}()

	eng := engine.NewEngine(logger, registry.NewDefaultRegistry(logger))
	eng.DownloadsDir = downloadsDir

	if command.Bool("tracing") {
		tracer, err := otelhelper.NewTracer(ctx, "booksweep")
		if err != nil {
			logger.WarnContext(ctx, "Tracing disabled, exporter unavailable", "error", err)
		} else {
			eng.WithTracer(tracer)
		}
	}

	session := chain.NewSession(logger, eng, workflows, page).
		WithRepository(repository).
		WithBus(eventBus).
		WithCleanup(func() {
			if err := eventBus.Close(); err != nil {
				logger.Error("Failed to close event bus", "error", err)
			}

			if err := client.Close(); err != nil {
				logger.Error("Failed to close browser connection", "error", err)
			}
		})
	session.Clients = command.StringSlice("client")
	session.Critical = command.StringSlice("critical")

	status, err := session.Run(ctx)
	if err != nil {
		return fmt.Errorf("chain finished with status %s: %w", status, err)
	}

	if status != models.WorkflowStatusCompleted {
		return fmt.Errorf("chain finished with status %s", status)
	}

	return nil
}

// selectWorkflows loads the chain's links: the named workflows in the given
// order, or every definition in the directory sorted by filename.
func selectWorkflows(dir string, names []string) ([]*models.Workflow, error) {
	if len(names) == 0 {
		workflows, err := workflow.LoadDir(dir)
		if err != nil {
			return nil, err
		}

		if len(workflows) == 0 {
			return nil, fmt.Errorf("no workflows found in %s", dir)
		}

		return workflows, nil
	}

	workflows := make([]*models.Workflow, 0, len(names))

	for _, name := range names {
		path, err := findWorkflowFile(dir, name)
		if err != nil {
			return nil, err
		}

		wf, err := workflow.LoadFile(path)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, wf)
	}

	return workflows, nil
}

func findWorkflowFile(dir, name string) (string, error) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("workflow %q not found in %s", name, dir)
}
