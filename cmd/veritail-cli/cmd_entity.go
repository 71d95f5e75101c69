package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/veritail/veritail/client"
)

func newEntityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Inspect and mutate tracked entities",
	}
	cmd.AddCommand(entityGetCmd())
	cmd.AddCommand(entityCommitCmd())
	cmd.AddCommand(entityDeleteCmd())
	cmd.AddCommand(entityCheckCmd())
	cmd.AddCommand(entityMergeCmd())
	return cmd
}

func entityGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Get the tracked version of an entity",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			v, err := apiClient.Entities.GetVersion(context.Background(), args[0], args[1])
			if err != nil {
				fatal("get entity version", err)
			}
			output(v, strconv.FormatInt(v.Version, 10))
		},
	}
}

func entityCommitCmd() *cobra.Command {
	var dataJSON, originalJSON string
	var baseVersion int64
	cmd := &cobra.Command{
		Use:   "commit <type> <id>",
		Short: "Commit an entity mutation",
		Long:  "Commit entity data. With --base-version the server runs a conflict check first and returns the conflict record on rejection.",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			req := &client.CommitRequest{}
			if err := json.Unmarshal([]byte(dataJSON), &req.Data); err != nil {
				fatal("parse data", err)
			}
			if originalJSON != "" {
				if err := json.Unmarshal([]byte(originalJSON), &req.OriginalData); err != nil {
					fatal("parse original", err)
				}
			}
			if cmd.Flags().Changed("base-version") {
				req.BaseVersion = &baseVersion
			}
			if flagActor != "" {
				req.ActorID = &flagActor
			}

			v, err := apiClient.Entities.Commit(context.Background(), args[0], args[1], req)
			if err != nil {
				if conflict, ok := client.AsConflict(err); ok {
					fmt.Println("conflict: write rejected")
					output(conflict, fmt.Sprintf("conflict@v%d", conflict.ServerVersion))
					return
				}
				fatal("commit entity", err)
			}
			output(v, strconv.FormatInt(v.Version, 10))
		},
	}
	cmd.Flags().StringVar(&dataJSON, "data", "", "Entity data as JSON (required)")
	cmd.Flags().StringVar(&originalJSON, "original", "", "Shared base data as JSON, for three-way conflict checks")
	cmd.Flags().Int64Var(&baseVersion, "base-version", 0, "Version the client last saw; enables the conflict check")
	cmd.MarkFlagRequired("data") //nolint:errcheck // flag exists.
	return cmd
}

func entityDeleteCmd() *cobra.Command {
	var baseVersion int64
	cmd := &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Record a tracked deletion",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			opts := &client.DeleteOptions{}
			if cmd.Flags().Changed("base-version") {
				opts.BaseVersion = &baseVersion
			}
			if flagActor != "" {
				opts.ActorID = &flagActor
			}

			v, err := apiClient.Entities.Delete(context.Background(), args[0], args[1], opts)
			if err != nil {
				fatal("delete entity", err)
			}
			output(v, strconv.FormatInt(v.Version, 10))
		},
	}
	cmd.Flags().Int64Var(&baseVersion, "base-version", 0, "Version the client last saw; rejects a stale delete")
	return cmd
}

func entityCheckCmd() *cobra.Command {
	var dataJSON, originalJSON string
	var clientVersion int64
	cmd := &cobra.Command{
		Use:   "check <type> <id>",
		Short: "Run a standalone conflict check",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			req := &client.CheckRequest{ClientVersion: clientVersion}
			if err := json.Unmarshal([]byte(dataJSON), &req.ClientData); err != nil {
				fatal("parse data", err)
			}
			if originalJSON != "" {
				if err := json.Unmarshal([]byte(originalJSON), &req.OriginalData); err != nil {
					fatal("parse original", err)
				}
			}

			conflict, err := apiClient.Entities.Check(context.Background(), args[0], args[1], req)
			if err != nil {
				fatal("check conflict", err)
			}
			if conflict == nil {
				fmt.Println("no conflict")
				return
			}
			output(conflict, fmt.Sprintf("conflict@v%d", conflict.ServerVersion))
		},
	}
	cmd.Flags().StringVar(&dataJSON, "data", "", "Client data as JSON (required)")
	cmd.Flags().StringVar(&originalJSON, "original", "", "Shared base data as JSON")
	cmd.Flags().Int64Var(&clientVersion, "client-version", 0, "Version the client last saw")
	cmd.MarkFlagRequired("data") //nolint:errcheck // flag exists.
	return cmd
}

func entityMergeCmd() *cobra.Command {
	var conflictJSON, dataJSON, resolutionsJSON, strategy string
	cmd := &cobra.Command{
		Use:   "merge <type> <id>",
		Short: "Resolve a conflict record",
		Long:  "Merge a conflict with the given strategy. Nothing is persisted; commit the merged_data afterwards.",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			req := &client.MergeRequest{Strategy: strategy}
			if err := json.Unmarshal([]byte(conflictJSON), &req.Conflict); err != nil {
				fatal("parse conflict", err)
			}
			if err := json.Unmarshal([]byte(dataJSON), &req.ClientData); err != nil {
				fatal("parse data", err)
			}
			if resolutionsJSON != "" {
				if err := json.Unmarshal([]byte(resolutionsJSON), &req.ManualResolutions); err != nil {
					fatal("parse resolutions", err)
				}
			}

			result, err := apiClient.Entities.Merge(context.Background(), args[0], args[1], req)
			if err != nil {
				fatal("merge conflict", err)
			}
			output(result, result.StrategyUsed)
		},
	}
	cmd.Flags().StringVar(&conflictJSON, "conflict", "", "Conflict record as JSON, from a prior check (required)")
	cmd.Flags().StringVar(&dataJSON, "data", "", "Client data as JSON (required)")
	cmd.Flags().StringVar(&strategy, "strategy", client.StrategyKeepNewer, "Merge strategy: keep_local|keep_server|keep_newer|manual")
	cmd.Flags().StringVar(&resolutionsJSON, "resolutions", "", "Per-field values as JSON, required with --strategy manual")
	cmd.MarkFlagRequired("conflict") //nolint:errcheck // flag exists.
	cmd.MarkFlagRequired("data")     //nolint:errcheck // flag exists.
	return cmd
}
