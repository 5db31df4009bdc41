// Package main provides the entry point for the gm CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version     = "0.1.0-dev"
	globalWorld string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:     "gm",
		Short:   "A deferred decision engine for AI-assisted tabletop game mastering",
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&globalWorld, "world", "w", "", "World to operate on (required)")

	rootCmd.AddCommand(
		newInitCmd(),
		newWorldsCmd(),
		newClockCmd(),
		newStagingCmd(),
		newDialogueCmd(),
		newMemoryCmd(),
		newAuditCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
