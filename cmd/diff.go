package cmd

import (
	"fmt"

	"inventory-sync/feature/inventory"

	"github.com/spf13/cobra"
)

var diffJSON bool

// diffCmd reports the pending diff without writing anything.
var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show the diff between the snapshot and the database",
	Long: `Diff loads the inventory snapshot and the database and prints what a sync would do.
Nothing is written and no run is recorded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := bootstrap()
		if err != nil {
			return err
		}
		defer e.log.Sync()
		if err := e.connectStorage(syncSource); err != nil {
			return err
		}

		svc, err := e.service()
		if err != nil {
			return err
		}
		req := inventory.RunRequest{Job: syncJob, Source: syncSource, Flags: syncFlags(cmd, e.cfg.Sync.Flags)}
		diff, err := svc.Diff(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("failed to diff: %w", err)
		}

		if diffJSON {
			data, err := diff.JSON()
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		printDiffReport(e.log, diff)
		return nil
	},
}

func init() {
	addSyncFlags(diffCmd.Flags())
	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "Print the diff as JSON")
	RootCmd.AddCommand(diffCmd)
}
