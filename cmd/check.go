package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"inventory-sync/core/binding"
	"inventory-sync/feature/inventory"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// checkCmd verifies the database against the inventory bindings.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the database provides every bound table and column",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := bootstrap()
		if err != nil {
			return err
		}
		defer e.log.Sync()

		registry, err := inventory.NewRegistry()
		if err != nil {
			return fmt.Errorf("invalid inventory bindings: %w", err)
		}
		report, err := binding.CheckSchema(e.db, registry)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if !report.Matched {
			e.log.Error("Schema check failed", zap.Strings("errors", report.Errors))
			return errors.New("database schema does not match the inventory bindings")
		}
		e.log.Info("Schema check passed")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(checkCmd)
}
