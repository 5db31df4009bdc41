package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ersonp/gm-core/internal/application/handlers"
	"github.com/ersonp/gm-core/internal/domain/entities"
)

func newClockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Manage the world's game clock",
		RunE:  runClockShow,
	}

	cmd.AddCommand(
		newClockShowCmd(),
		newClockAdvanceCmd(),
		newClockSetCmd(),
	)

	return cmd
}

func newClockShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current game time",
		Args:  cobra.NoArgs,
		RunE:  runClockShow,
	}
}

func runClockShow(cmd *cobra.Command, args []string) error {
	return withStore(func(sd *storeDeps) error {
		clock := handlers.NewClockHandler(sd.Store, sd.Config.GameCalendar())

		result, err := clock.Show(cmd.Context(), globalWorld)
		if err != nil {
			return err
		}

		printClock(result)
		return nil
	})
}

func newClockAdvanceCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "advance MINUTES",
		Short: "Advance the game clock by in-game minutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid minutes %q: %w", args[0], err)
			}

			return withStore(func(sd *storeDeps) error {
				clock := handlers.NewClockHandler(sd.Store, sd.Config.GameCalendar())

				result, err := clock.Advance(cmd.Context(), globalWorld, minutes, reason)
				if err != nil {
					return err
				}

				fmt.Printf("Advanced clock by %d minutes.\n", minutes)
				printClock(result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "manual advance", "Reason recorded in the audit log")

	return cmd
}

func newClockSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set MINUTES",
		Short: "Set the game clock to an absolute time in minutes since epoch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid minutes %q: %w", args[0], err)
			}

			return withStore(func(sd *storeDeps) error {
				clock := handlers.NewClockHandler(sd.Store, sd.Config.GameCalendar())

				result, err := clock.Set(cmd.Context(), globalWorld, entities.GameTime(minutes))
				if err != nil {
					return err
				}

				printClock(result)
				return nil
			})
		},
	}
}

func printClock(result *handlers.ClockResult) {
	fmt.Printf("Game time: %s (%s)\n", result.Formatted, result.Period)
	fmt.Printf("Raw:       %d minutes since epoch\n", int64(result.Time))
}
