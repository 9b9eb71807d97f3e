package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/booksweep/booksweep/pkg/cmd"
	"github.com/booksweep/booksweep/pkg/log"
)

func reportsCommand() *cli.Command {
	databaseFlag := &cli.StringFlag{
		Name:    "database-url",
		Usage:   "Report store URL (file path or postgres://)",
		Value:   "file://./reports",
		Sources: cli.EnvVars("DATABASE_URL"),
	}

	return &cli.Command{
		Name:  "reports",
		Usage: "Inspect stored run reports",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List stored run reports",
				Flags:  []cli.Flag{databaseFlag},
				Action: listReportsAction,
			},
			{
				Name:      "show",
				Usage:     "Print one run report as JSON",
				ArgsUsage: "<report-id>",
				Flags:     []cli.Flag{databaseFlag},
				Action:    showReportAction,
			},
		},
	}
}

func listReportsAction(ctx context.Context, command *cli.Command) error {
	log.Setup("warn")

	repository, err := cmd.NewRepository(ctx, log.WithModule("reports"), command.String("database-url"))
	if err != nil {
		return err
	}
	defer func() { _ = repository.Close(ctx) }()

	reports, err := repository.Reports(ctx)
	if err != nil {
		return err
	}

	for _, report := range reports {
		fmt.Printf("%s  %-20s %-10s %s  %d events\n",
			report.ID,
			report.Client,
			report.Status,
			report.StartedAt.Format("2006-01-02 15:04:05"),
			len(report.Events),
		)
	}

	return nil
}

func showReportAction(ctx context.Context, command *cli.Command) error {
	log.Setup("warn")

	if command.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one report id")
	}

	repository, err := cmd.NewRepository(ctx, log.WithModule("reports"), command.String("database-url"))
	if err != nil {
		return err
	}
	defer func() { _ = repository.Close(ctx) }()

	report, err := repository.ReportByID(ctx, command.Args().First())
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	return encoder.Encode(report)
}
