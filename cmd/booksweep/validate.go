package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/booksweep/booksweep/pkg/log"
	"github.com/booksweep/booksweep/pkg/workflow"
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate workflow definition files without running them",
		ArgsUsage: "[file ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "workflows-dir",
				Usage:   "Directory to validate when no files are given",
				Value:   "./workflows",
				Sources: cli.EnvVars("WORKFLOWS_DIR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: validateAction,
	}
}

func validateAction(_ context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	paths := command.Args().Slice()

	if len(paths) == 0 {
		workflows, err := workflow.LoadDir(command.String("workflows-dir"))
		if err != nil {
			return err
		}

		for _, wf := range workflows {
			fmt.Printf("ok: %s (%d steps)\n", wf.Name, len(wf.Steps))
		}

		return nil
	}

	failed := 0

	for _, path := range paths {
		wf, err := workflow.LoadFile(path)
		if err != nil {
			fmt.Printf("invalid: %v\n", err)

			failed++

			continue
		}

		fmt.Printf("ok: %s (%d steps)\n", wf.Name, len(wf.Steps))
	}

	if failed > 0 {
		return fmt.Errorf("%d workflow files failed validation", failed)
	}

	return nil
}
