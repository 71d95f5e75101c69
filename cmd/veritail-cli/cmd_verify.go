package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veritail/veritail/client"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the ledger hash chain",
	}
	cmd.AddCommand(verifyRunCmd())
	cmd.AddCommand(verifyStatusCmd())
	return cmd
}

func verifyRunCmd() *cobra.Command {
	var startID, endID int64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a verification pass over the ledger",
		Long:  "Walk the hash chain and report every broken link. Pass --start and --end to verify a subrange anchored at the entry before --start.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			var result *client.VerificationResult
			var err error
			if cmd.Flags().Changed("start") || cmd.Flags().Changed("end") {
				result, err = apiClient.Verify.RunRange(ctx, startID, endID)
			} else {
				result, err = apiClient.Verify.Run(ctx)
			}
			if err != nil {
				if client.IsVerificationRunning(err) {
					fatal("verify ledger", fmt.Errorf("a verification run is already in progress"))
				}
				fatal("verify ledger", err)
			}

			output(result, fmt.Sprintf("valid=%t checked=%d", result.Valid, result.CheckedCount))
			if !result.Valid {
				os.Exit(1)
			}
		},
	}
	cmd.Flags().Int64Var(&startID, "start", 0, "First entry id to verify")
	cmd.Flags().Int64Var(&endID, "end", 0, "Last entry id to verify")
	return cmd
}

func verifyStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the verifier's current state and last result",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			status, err := apiClient.Verify.Status(context.Background())
			if err != nil {
				fatal("read verify status", err)
			}
			quiet := "idle"
			if status.IsChecking {
				quiet = "checking"
			}
			output(status, quiet)
		},
	}
}
