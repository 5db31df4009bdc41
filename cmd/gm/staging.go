package main

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

func newStagingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staging",
		Short: "Resolve and inspect NPC presence for regions",
	}

	cmd.AddCommand(
		newStagingResolveCmd(),
		newStagingShowCmd(),
		newStagingHistoryCmd(),
		newStagingPrestageCmd(),
	)

	return cmd
}

func newStagingResolveCmd() *cobra.Command {
	var (
		decide string
		seed   int64
	)

	cmd := &cobra.Command{
		Use:   "resolve REGION",
		Short: "Resolve NPC presence for a region entry",
		Long: `Resolve NPC presence for a player entering a region. A live staging
record answers immediately; otherwise an approval request opens and the
command blocks until it is decided or times out.

With --decide, an in-process director accepts the rule-based or AI
candidate set as soon as the request opens. Without it, the request
waits for the deadline sweep.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStagingResolve(cmd.Context(), args[0], decide, seed)
		},
	}

	cmd.Flags().StringVar(&decide, "decide", "", "Auto-decide pending requests: rules or ai")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for probabilistic presence rules (0 = time-based)")

	return cmd
}

func runStagingResolve(ctx context.Context, regionID, decide string, seed int64) error {
	if decide != "" && decide != "rules" && decide != "ai" {
		return fmt.Errorf("invalid --decide value %q (want rules or ai)", decide)
	}

	return withDeps(func(deps *Deps) error {
		go deps.Registry.Run(ctx, deps.SweepInterval)

		if decide != "" {
			go runAutoDecider(ctx, deps, decide)
		}

		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))

		result, err := deps.Staging.EnterRegion(ctx, globalWorld, regionID, rng)
		if err != nil {
			return err
		}

		printStagingRecord(result.Record)
		if result.ApplyErr != nil {
			fmt.Printf("Warning: effects not delivered: %v\n", result.ApplyErr)
		}
		return nil
	})
}

// runAutoDecider polls for pending requests and decides them with the chosen
// candidate set. It stands in for an interactive director.
func runAutoDecider(ctx context.Context, deps *Deps, decide string) {
	kind := entities.DecisionUseRules
	if decide == "ai" {
		kind = entities.DecisionUseAI
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, req := range deps.Decision.Pending() {
				_, err := deps.Decision.Decide(ctx, req.ID, entities.Decision{
					Kind:      kind,
					DecidedBy: "cli",
				})
				if err != nil {
					fmt.Printf("Warning: deciding request %s: %v\n", req.ID, err)
				}
			}
		}
	}
}

func newStagingShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show REGION",
		Short: "Show the active staging record for a region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(sd *storeDeps) error {
				scope := entities.Scope{Kind: entities.ScopeRegion, WorldID: globalWorld, ID: args[0]}

				record, err := sd.Store.CurrentStaging(cmd.Context(), scope)
				if err != nil {
					return fmt.Errorf("loading staging record: %w", err)
				}
				if record == nil {
					fmt.Printf("No active staging for region %q.\n", args[0])
					return nil
				}

				printStagingRecord(record)
				return nil
			})
		},
	}
}

func newStagingHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history REGION",
		Short: "Show a region's staging history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(sd *storeDeps) error {
				scope := entities.Scope{Kind: entities.ScopeRegion, WorldID: globalWorld, ID: args[0]}

				records, err := sd.Store.StagingHistory(cmd.Context(), scope, limit)
				if err != nil {
					return fmt.Errorf("loading staging history: %w", err)
				}
				if len(records) == 0 {
					fmt.Printf("No staging history for region %q.\n", args[0])
					return nil
				}

				for i, record := range records {
					if i > 0 {
						fmt.Println()
					}
					printStagingRecord(&record)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Maximum number of records")

	return cmd
}

func newStagingPrestageCmd() *cobra.Command {
	var (
		npcSpecs []string
		stagedBy string
	)

	cmd := &cobra.Command{
		Use:   "prestage REGION",
		Short: "Stage a region's NPCs before any player arrives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			npcs, err := parseNPCSpecs(npcSpecs)
			if err != nil {
				return err
			}
			if len(npcs) == 0 {
				return fmt.Errorf("at least one --npc is required")
			}

			return withDeps(func(deps *Deps) error {
				record, err := deps.Staging.PreStage(cmd.Context(), globalWorld, args[0], npcs, stagedBy)
				if err != nil {
					return err
				}

				fmt.Println("Prestaged region.")
				printStagingRecord(record)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&npcSpecs, "npc", nil, "NPC to stage as ID:NAME[:MOOD], repeatable")
	cmd.Flags().StringVar(&stagedBy, "by", "director", "Who staged the region")

	return cmd
}

// parseNPCSpecs parses repeated ID:NAME[:MOOD] flags into staged NPCs.
func parseNPCSpecs(specs []string) ([]entities.StagedNPC, error) {
	npcs := make([]entities.StagedNPC, 0, len(specs))

	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --npc %q (want ID:NAME[:MOOD])", spec)
		}

		npc := entities.StagedNPC{
			CharacterID: parts[0],
			Name:        parts[1],
			Present:     true,
		}
		if len(parts) == 3 {
			npc.Mood = parts[2]
		}
		npcs = append(npcs, npc)
	}

	return npcs, nil
}

func printStagingRecord(record *entities.StagingRecord) {
	fmt.Printf("Staging %s (%s)\n", record.ID, record.Source)
	fmt.Printf("  Region:      %s\n", record.Scope.ID)
	fmt.Printf("  Approved by: %s\n", record.ApprovedBy)
	fmt.Printf("  Valid:       game minute %d until %d\n", int64(record.GameTime), int64(record.ValidUntil))
	fmt.Printf("  Active:      %v\n", record.Active)

	if len(record.NPCs) == 0 {
		fmt.Println("  NPCs:        none")
		return
	}
	fmt.Println("  NPCs:")
	for _, npc := range record.NPCs {
		state := "absent"
		switch {
		case npc.Present && npc.Hidden:
			state = "hidden"
		case npc.Present:
			state = "present"
		}
		line := fmt.Sprintf("    %-20s %s", npc.Name, state)
		if npc.Mood != "" {
			line += " (" + npc.Mood + ")"
		}
		fmt.Println(line)
		if npc.Reasoning != "" {
			fmt.Printf("      %s\n", npc.Reasoning)
		}
	}
}
