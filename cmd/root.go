package cmd

import (
	"fmt"
	"os"

	"inventory-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// configPath is the directory searched for config.yaml and .env.
var configPath string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "inventory-sync",
	Short: "Inventory Sync Service",
	Long: `Inventory Sync reconciles a network inventory snapshot with the inventory database.
It diffs both sides record by record and applies creates, updates and deletes in
dependency order, with dry-run and audit support.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "Directory containing config.yaml and .env")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	err := RootCmd.Execute()
	if err == nil {
		return
	}

	l, logErr := logger.New(&logger.Config{Level: "debug", Format: "console"})
	if logErr != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	l.Error("Command failed", zap.String("command", commandName()), zap.Error(err))
	_ = l.Sync()
	os.Exit(1)
}

// commandName returns the subcommand named on the command line, if any.
func commandName() string {
	c, _, err := RootCmd.Find(os.Args[1:])
	if err != nil || c == RootCmd {
		return RootCmd.Name()
	}
	return c.Name()
}
