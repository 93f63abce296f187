// Command snowetl is the bulk CSV/TSV ingestion engine's CLI entrypoint:
// load, delete, validate, check-duplicates, report, compare, and config
// migrate/generate, all wired through internal/cli.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"snowetl/internal/cli"
	"snowetl/internal/model"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	return model.KindOf(err).ExitCode()
}
