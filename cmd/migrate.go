package cmd

import (
	"inventory-sync/feature/inventory/models"

	"github.com/spf13/cobra"
)

// migrateCmd creates or updates the inventory tables.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the inventory schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := bootstrap()
		if err != nil {
			return err
		}
		defer e.log.Sync()

		if err := models.AutoMigrate(e.db); err != nil {
			return err
		}
		e.log.Info("Inventory schema migrated")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
