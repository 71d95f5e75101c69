package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/veritail/veritail/client"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Read the audit ledger",
	}
	cmd.AddCommand(ledgerQueryCmd())
	cmd.AddCommand(ledgerLatestCmd())
	return cmd
}

func ledgerQueryCmd() *cobra.Command {
	var entityType, entityID, action, since string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query ledger entries, newest first",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts := &client.LedgerQueryOptions{
				EntityType: entityType,
				EntityID:   entityID,
				Action:     action,
				Limit:      limit,
				Offset:     offset,
			}
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					fatal("parse since", err)
				}
				opts.Since = &t
			}

			entries, hasMore, err := apiClient.Ledger.Query(context.Background(), opts)
			if err != nil {
				fatal("query ledger", err)
			}
			if hasMore && flagFmt != "json" {
				fmt.Println("more entries available; raise --limit or page with --offset")
			}
			output(entries, fmt.Sprintf("%d", len(entries)))
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "Only entries for this entity type")
	cmd.Flags().StringVar(&entityID, "id", "", "Only entries for this entity id")
	cmd.Flags().StringVar(&action, "action", "", "Only entries with this action")
	cmd.Flags().StringVar(&since, "since", "", "Only entries after this RFC3339 timestamp")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of entries (server default 100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of entries to skip")
	return cmd
}

func ledgerLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the id of the newest ledger entry",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			id, err := apiClient.Ledger.Latest(context.Background())
			if err != nil {
				fatal("read latest id", err)
			}
			output(map[string]int64{"latest_id": id}, strconv.FormatInt(id, 10))
		},
	}
}
