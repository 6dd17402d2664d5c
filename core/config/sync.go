package config

import "inventory-sync/core/reconcile"

// SyncConfig holds the defaults of a sync run. Request level options override them.
type SyncConfig struct {
	reconcile.Flags `mapstructure:",squash"`
	// Source is the snapshot location, a file path or s3://bucket/key.
	Source string `mapstructure:"source" default:"inventory.yaml"`
	// SnapshotDir holds the local snapshots an HTTP request may name. Empty allows only
	// object storage locations.
	SnapshotDir string `mapstructure:"snapshot_dir" default:""`
	// ReportPrefix is the object storage prefix for uploaded run reports.
	ReportPrefix string `mapstructure:"report_prefix" default:"reports"`
	// UploadReports stores every run report in object storage.
	UploadReports bool `mapstructure:"upload_reports" default:"false"`
}
