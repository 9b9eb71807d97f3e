package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "booksweep",
		Usage:                 "Run browser export workflows against an accounting web app",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			runCommand(),
			validateCommand(),
			reportsCommand(),
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
