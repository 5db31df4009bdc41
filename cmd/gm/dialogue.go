package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

func newDialogueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dialogue",
		Short: "Run dialogue turns through draft and approval",
	}

	cmd.AddCommand(
		newDialogueSayCmd(),
		newDialogueShowCmd(),
	)

	return cmd
}

func newDialogueSayCmd() *cobra.Command {
	var (
		conversationID string
		accept         bool
	)

	cmd := &cobra.Command{
		Use:   "say REGION NPC_ID LINE",
		Short: "Speak to an NPC and wait for the approved response",
		Long: `Send a player line to an NPC. A draft response is generated and held
for approval; the command blocks until the turn is accepted, taken
over, or closed by the deadline sweep.

With --accept, an in-process director accepts each draft as soon as
it is ready. Without it, the turn waits for the deadline sweep.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			regionID, npcID, line := args[0], args[1], args[2]

			if conversationID == "" {
				conversationID = uuid.New().String()
			}

			return withDeps(func(deps *Deps) error {
				go deps.Registry.Run(ctx, deps.SweepInterval)

				if accept {
					go runAutoDecider(ctx, deps, "ai")
				}

				result, err := deps.Dialogue.StartTurn(ctx, globalWorld, regionID, conversationID, npcID, line)
				if err != nil {
					return err
				}

				printDialogueTurn(result.Turn)
				if result.Resolution != nil {
					fmt.Printf("Resolution:   %s (%s)\n", result.Resolution.ID, result.Resolution.Source)
					if result.Resolution.TimeCostMinutes > 0 {
						fmt.Printf("Time cost:    %d minutes\n", result.Resolution.TimeCostMinutes)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation ID (default: new)")
	cmd.Flags().BoolVar(&accept, "accept", false, "Auto-accept each draft as soon as it is ready")

	return cmd
}

func newDialogueShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show TURN_ID",
		Short: "Show a dialogue turn record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(sd *storeDeps) error {
				turn, err := sd.Store.FindDialogueTurn(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("loading dialogue turn: %w", err)
				}
				if turn == nil {
					fmt.Printf("No dialogue turn %q.\n", args[0])
					return nil
				}

				printDialogueTurn(turn)
				return nil
			})
		},
	}
}

func printDialogueTurn(turn *entities.DialogueTurnRecord) {
	fmt.Printf("Turn %s (%s)\n", turn.ID, turn.State)
	fmt.Printf("Conversation: %s\n", turn.ConversationID)
	npc := turn.NPCName
	if npc == "" {
		npc = turn.NPCID
	}
	fmt.Printf("Player:       %s\n", turn.PlayerLine)
	if turn.Draft != "" {
		fmt.Printf("%s:\n  %s\n", npc, turn.Draft)
	}
	if turn.Reasoning != "" {
		fmt.Printf("Reasoning:    %s\n", turn.Reasoning)
	}
	fmt.Printf("Attempt:      %d of %d\n", turn.Attempt+1, turn.MaxAttempts)
	if turn.Feedback != "" {
		fmt.Printf("Feedback:     %s\n", turn.Feedback)
	}
}
