package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/veritail/veritail/client"
)

func newChangesCmd() *cobra.Command {
	var entityType, since string
	var limit int
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "List recent entity changes for catch-up sync",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts := &client.ChangeListOptions{EntityType: entityType, Limit: limit}
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					fatal("parse since", err)
				}
				opts.Since = &t
			}

			changes, err := apiClient.Changes.List(context.Background(), opts)
			if err != nil {
				fatal("list changes", err)
			}
			output(changes, fmt.Sprintf("%d", len(changes)))
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "Only changes to this entity type")
	cmd.Flags().StringVar(&since, "since", "", "Only changes after this RFC3339 timestamp")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of changes (server default 100)")
	return cmd
}
