package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

func newAuditCmd() *cobra.Command {
	var (
		action string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "audit [REQUEST_ID]",
		Short: "Show the decision audit trail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && action == "" {
				return fmt.Errorf("a request ID or --action is required")
			}

			return withStore(func(sd *storeDeps) error {
				var (
					entries []entities.AuditEntry
					err     error
				)
				if len(args) > 0 {
					entries, err = sd.Store.FindAuditLog(cmd.Context(), args[0])
				} else {
					entries, err = sd.Store.FindAuditLogByAction(cmd.Context(), action, limit)
				}
				if err != nil {
					return fmt.Errorf("loading audit log: %w", err)
				}

				if len(entries) == 0 {
					fmt.Println("No audit entries.")
					return nil
				}

				for _, entry := range entries {
					printAuditEntry(entry)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&action, "action", "a", "", "Filter by action instead of request ID")
	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum number of entries for --action queries")

	return cmd
}

func printAuditEntry(entry entities.AuditEntry) {
	fmt.Printf("%s  %-20s", entry.CreatedAt.Format(time.RFC3339), entry.Action)
	if entry.RequestID != "" {
		fmt.Printf("  request=%s", entry.RequestID)
	}
	fmt.Println()

	if len(entry.Details) > 0 {
		details, err := json.Marshal(entry.Details)
		if err == nil {
			fmt.Printf("  %s\n", details)
		}
	}
}
