package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/gm-core/internal/infrastructure/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize gm configuration in the current directory",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if err := config.WriteDefault(cwd); err != nil {
		return err
	}

	fmt.Printf("Initialized gm in %s\n", config.ConfigDir(cwd))
	fmt.Println("Use 'gm worlds create NAME' to create a world.")
	return nil
}
