package models

import "time"

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// SyncRun is the audit row of one sync run.
type SyncRun struct {
	ID         string     `gorm:"column:id;primaryKey;size:36" json:"id"`
	Job        string     `gorm:"column:job;size:100;not null;index:idx_run_job,priority:1" json:"job"`
	Source     string     `gorm:"column:source;size:512" json:"source"`
	Status     string     `gorm:"column:status;size:20;not null" json:"status"`
	DryRun     bool       `gorm:"column:dry_run" json:"dry_run"`
	Flags      string     `gorm:"column:flags;type:text" json:"-"`
	Created    int        `gorm:"column:created" json:"created"`
	Updated    int        `gorm:"column:updated" json:"updated"`
	Deleted    int        `gorm:"column:deleted" json:"deleted"`
	Unchanged  int        `gorm:"column:unchanged" json:"unchanged"`
	Skipped    int        `gorm:"column:skipped" json:"skipped"`
	Failed     int        `gorm:"column:failed" json:"failed"`
	DiffJSON   string     `gorm:"column:diff;type:text" json:"-"`
	Failures   string     `gorm:"column:failures;type:text" json:"-"`
	Error      string     `gorm:"column:error;type:text" json:"error,omitempty"`
	ReportKey  string     `gorm:"column:report_key;size:512" json:"report_key,omitempty"`
	StartedAt  time.Time  `gorm:"column:started_at;not null;index:idx_run_job,priority:2" json:"started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

// TableName overrides the table name.
func (SyncRun) TableName() string { return "sync_runs" }

// Finished reports whether the run has left the running state.
func (r *SyncRun) Finished() bool {
	return r.Status != RunRunning
}
