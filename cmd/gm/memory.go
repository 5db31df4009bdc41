package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Record and recall world memory fragments",
	}

	cmd.AddCommand(
		newMemoryAddCmd(),
		newMemorySearchCmd(),
		newMemoryForgetCmd(),
	)

	return cmd
}

func newMemoryAddCmd() *cobra.Command {
	var (
		kind    string
		scopeID string
		speaker string
	)

	cmd := &cobra.Command{
		Use:   "add TEXT",
		Short: "Record a memory fragment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(deps *Deps) error {
				gameTime, err := deps.Clock.Show(cmd.Context(), globalWorld)
				if err != nil {
					return err
				}

				id, err := deps.Memory.Record(cmd.Context(), entities.MemoryFragment{
					WorldID:  globalWorld,
					Kind:     entities.MemoryKind(kind),
					ScopeID:  scopeID,
					Speaker:  speaker,
					Text:     args[0],
					GameTime: gameTime.Time,
				})
				if err != nil {
					return err
				}

				fmt.Printf("Recorded fragment %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(entities.MemoryLore), "Fragment kind: conversation, lore, or event")
	cmd.Flags().StringVar(&scopeID, "scope", "", "Region or conversation the fragment belongs to")
	cmd.Flags().StringVar(&speaker, "speaker", "", "Who said or did this")

	return cmd
}

func newMemorySearchCmd() *cobra.Command {
	var (
		kind  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search memory fragments semantically",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(deps *Deps) error {
				var (
					fragments []entities.MemoryFragment
					err       error
				)
				if kind != "" {
					fragments, err = deps.Memory.SearchByKind(cmd.Context(), globalWorld, args[0], entities.MemoryKind(kind), limit)
				} else {
					fragments, err = deps.Memory.Search(cmd.Context(), globalWorld, args[0], limit)
				}
				if err != nil {
					return err
				}

				if len(fragments) == 0 {
					fmt.Println("No matching fragments.")
					return nil
				}

				calendar := deps.Config.GameCalendar()
				for _, f := range fragments {
					fmt.Printf("[%s] %s", f.Kind, calendar.Format(f.GameTime))
					if f.Speaker != "" {
						fmt.Printf(" %s:", f.Speaker)
					}
					fmt.Printf("\n  %s\n  (%s)\n", f.Text, f.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Restrict to one fragment kind")
	cmd.Flags().IntVarP(&limit, "limit", "l", 5, "Maximum number of results")

	return cmd
}

func newMemoryForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget ID",
		Short: "Remove a memory fragment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(deps *Deps) error {
				if err := deps.Memory.Forget(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("Forgot fragment %s\n", args[0])
				return nil
			})
		},
	}
}
