package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"inventory-sync/core/reconcile"
	"inventory-sync/feature/inventory"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	// Flags shared by sync and diff
	syncSource        string
	syncJob           string
	dryRunSync        bool
	continueOnFailure bool
	skipUnmatchedDst  bool
	logUnchanged      bool
	yesConfirm        bool
)

// syncCmd applies the snapshot to the database.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the inventory snapshot into the database",
	Long: `Sync loads the inventory snapshot and the database, reports the diff and applies it.

Creates and updates run parents first; deletes run last, children and leaf types first.
Flags default to the SYNC_* configuration.

Examples:
  # Report only
  sync --dry-run

  # Apply with interactive confirmation
  sync --source inventory.yaml

  # Apply from object storage, continue past failed records, no prompt
  sync --source s3://snapshots/site.yaml --continue-on-failure --yes

  # Create and update only, never delete
  sync --skip-unmatched-dst --yes`,
	RunE: runSync,
}

func init() {
	addSyncFlags(syncCmd.Flags())
	syncCmd.Flags().BoolVar(&dryRunSync, "dry-run", false, "Report the diff without writing (recorded as a dry-run run)")
	syncCmd.Flags().BoolVar(&continueOnFailure, "continue-on-failure", false, "Log failed records and continue")
	syncCmd.Flags().BoolVar(&logUnchanged, "log-unchanged", false, "Log unchanged records at info level")
	syncCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	RootCmd.AddCommand(syncCmd)
}

func addSyncFlags(fs *pflag.FlagSet) {
	fs.StringVar(&syncSource, "source", "", "Snapshot path or s3://bucket/key (default from config)")
	fs.StringVar(&syncJob, "job", inventory.DefaultJob, "Job name recorded on the run")
	fs.BoolVar(&skipUnmatchedDst, "skip-unmatched-dst", false, "Keep database records missing from the snapshot")
}

// syncFlags merges explicitly set command flags over the configured defaults.
func syncFlags(cmd *cobra.Command, defaults reconcile.Flags) reconcile.Flags {
	f := defaults
	set := func(name string, dst *bool, v bool) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("dry-run", &f.DryRun, dryRunSync)
	set("continue-on-failure", &f.ContinueOnFailure, continueOnFailure)
	set("skip-unmatched-dst", &f.SkipUnmatchedDst, skipUnmatchedDst)
	set("log-unchanged", &f.LogUnchanged, logUnchanged)
	return f
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

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

	// Step 1: Plan
	e.log.Info("Planning sync...")
	diff, err := svc.Diff(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to plan sync: %w", err)
	}
	printDiffReport(e.log, diff)

	if !diff.HasDiffs() {
		e.log.Info("No changes required.")
		return nil
	}

	// Step 2: Confirm destructive runs
	if !req.Flags.DryRun {
		if s := diff.Summary(); s.Delete > 0 || s.Update > 0 {
			if !confirmDestructiveAction() {
				e.log.Warn("Operation cancelled by user. No changes were made.")
				return nil
			}
		}
	}

	// Step 3: Apply. The run reloads both sides and stops before writing if the diff
	// no longer matches the confirmed plan.
	summary := diff.Summary()
	req.Expect = &summary
	report, err := svc.Run(ctx, req)
	if report != nil {
		e.log.Info("Sync run recorded",
			zap.String("run_id", report.Run.ID),
			zap.String("status", report.Run.Status),
			zap.Bool("dry_run", report.Run.DryRun),
			zap.Int("created", report.Run.Created),
			zap.Int("updated", report.Run.Updated),
			zap.Int("deleted", report.Run.Deleted),
			zap.Int("failed", report.Run.Failed),
		)
		for _, f := range report.Failures {
			e.log.Warn("Record failed",
				zap.String("type", f.Type),
				zap.String("unique_id", f.UniqueID),
				zap.String("action", string(f.Action)),
				zap.String("error", f.Error),
			)
		}
	}
	if errors.Is(err, reconcile.ErrPlanChanged) {
		return fmt.Errorf("snapshot or database changed after the plan was reviewed, nothing was applied; run sync again: %w", err)
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if req.Flags.DryRun {
		e.log.Info("Dry-run mode: No changes were made.")
	}
	return nil
}

// printDiffReport prints the diff summary and tree using logger.
func printDiffReport(l *zap.Logger, diff *reconcile.Diff) {
	s := diff.Summary()
	l.Info("Diff report",
		zap.Int("create", s.Create),
		zap.Int("update", s.Update),
		zap.Int("delete", s.Delete),
		zap.Int("unchanged", s.NoChange),
		zap.Int("skip", s.Skip),
	)
	if diff.HasDiffs() {
		fmt.Print(diff.String())
	}
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to apply updates and deletes: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	return strings.TrimSpace(response) == "yes"
}
