package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sync"
	"time"

	"inventory-sync/core/binding"
	"inventory-sync/core/config"
	"inventory-sync/core/reconcile"
	"inventory-sync/core/storage"
	"inventory-sync/feature/inventory/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// DefaultJob names runs that do not set a job.
const DefaultJob = "inventory"

var (
	// ErrRunNotFound is returned when no sync run has the requested id.
	ErrRunNotFound = errors.New("sync run not found")
	// ErrRunInProgress is returned when a different request for the same job is running.
	ErrRunInProgress = errors.New("another sync run of this job is in progress")
	// ErrSourceNotAllowed is returned for request sources outside object storage and the snapshot directory.
	ErrSourceNotAllowed = errors.New("snapshot source is not allowed")
)

// RunRequest describes one sync run. Empty Job and Source fall back to the defaults.
// A set Expect aborts the run before any write when the diff no longer matches it.
type RunRequest struct {
	Job    string             `json:"job"`
	Source string             `json:"source"`
	Flags  reconcile.Flags    `json:"flags"`
	Expect *reconcile.Summary `json:"expect,omitempty"`
}

// RunReport is a sync run with its decoded diff and failures.
type RunReport struct {
	Run      *models.SyncRun     `json:"run"`
	Flags    reconcile.Flags     `json:"flags"`
	Diff     json.RawMessage     `json:"diff,omitempty"`
	Failures []reconcile.Failure `json:"failures,omitempty"`
}

// Service runs inventory syncs and keeps their audit trail.
type Service struct {
	db       *gorm.DB
	registry *binding.Registry
	client   storage.Client
	bucket   string
	cfg      config.SyncConfig
	recorder reconcile.Recorder
	logger   *zap.Logger
	group    singleflight.Group

	mu       sync.Mutex
	inflight map[string]*flight
}

// flight is the request a job is currently running and how many callers wait on it.
type flight struct {
	key     string
	callers int
}

// NewService creates a sync service. client and recorder may be nil.
func NewService(db *gorm.DB, registry *binding.Registry, client storage.Client, bucket string, cfg config.SyncConfig, recorder reconcile.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       db,
		registry: registry,
		client:   client,
		bucket:   bucket,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		inflight: make(map[string]*flight),
	}
}

// Defaults returns the configured flags, used when a request sets none.
func (s *Service) Defaults() reconcile.Flags {
	return s.cfg.Flags
}

func (s *Service) normalize(req RunRequest) RunRequest {
	if req.Job == "" {
		req.Job = DefaultJob
	}
	if req.Source == "" {
		req.Source = s.cfg.Source
	}
	return req
}

func (s *Service) adapters(req RunRequest, l *zap.Logger) (*SnapshotAdapter, *binding.Adapter) {
	return NewSnapshotAdapter(req.Source, s.registry, s.client, l), NewTargetAdapter(s.db, s.registry, l)
}

// Diff loads the snapshot and the database and returns their diff without applying it.
func (s *Service) Diff(ctx context.Context, req RunRequest) (*reconcile.Diff, error) {
	req = s.normalize(req)
	l := s.logger.With(zap.String("job", req.Job))
	src, dst := s.adapters(req, l)
	if err := reconcile.LoadAll(ctx, l, src, dst); err != nil {
		return nil, err
	}
	return reconcile.DiffAdapters(src, dst, req.Flags, l)
}

// RequestSource checks a source named by a remote caller. Object storage locations pass
// unchanged; local paths must be relative and resolve under the snapshot directory.
// An empty source selects the configured one.
func (s *Service) RequestSource(source string) (string, error) {
	if source == "" || storage.IsURI(source) {
		return source, nil
	}
	if s.cfg.SnapshotDir == "" || !filepath.IsLocal(source) {
		return "", fmt.Errorf("%w: %q", ErrSourceNotAllowed, source)
	}
	return filepath.Join(s.cfg.SnapshotDir, source), nil
}

// Run syncs the snapshot into the database and records the run. Identical concurrent
// requests share one run; a different request for a busy job fails with
// ErrRunInProgress. A failed sync still returns its report.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	req = s.normalize(req)
	key, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if err := s.join(req.Job, string(key)); err != nil {
		s.logger.Warn("Rejected sync run", zap.String("job", req.Job), zap.String("source", req.Source), zap.Error(err))
		return nil, err
	}
	defer s.leave(req.Job)

	v, err, shared := s.group.Do(string(key), func() (any, error) {
		return s.run(ctx, req)
	})
	if shared {
		s.logger.Info("Joined in-flight sync run", zap.String("job", req.Job))
	}
	report, _ := v.(*RunReport)
	return report, err
}

// join registers a caller of key on job. The job stays claimed until its last caller leaves.
func (s *Service) join(job, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.inflight[job]
	if ok && f.key != key {
		return fmt.Errorf("%w: %s", ErrRunInProgress, job)
	}
	if !ok {
		f = &flight{key: key}
		s.inflight[job] = f
	}
	f.callers++
	return nil
}

func (s *Service) leave(job string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.inflight[job]; ok {
		if f.callers--; f.callers == 0 {
			delete(s.inflight, job)
		}
	}
}

func (s *Service) run(ctx context.Context, req RunRequest) (*RunReport, error) {
	flags, err := json.Marshal(req.Flags)
	if err != nil {
		return nil, err
	}
	run := &models.SyncRun{
		ID:        uuid.NewString(),
		Job:       req.Job,
		Source:    req.Source,
		Status:    models.RunRunning,
		DryRun:    req.Flags.DryRun,
		Flags:     string(flags),
		StartedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to record sync run: %w", err)
	}

	l := s.logger.With(zap.String("run_id", run.ID), zap.String("job", req.Job))
	l.Info("Sync run started", zap.String("source", req.Source), zap.Bool("dry_run", req.Flags.DryRun))

	src, dst := s.adapters(req, l)
	opts := []reconcile.Option{reconcile.WithLogger(l)}
	if s.recorder != nil {
		opts = append(opts, reconcile.WithRecorder(s.recorder))
	}
	if req.Expect != nil {
		opts = append(opts, reconcile.WithExpected(*req.Expect))
	}
	diff, res, syncErr := reconcile.Run(ctx, src, dst, req.Flags, opts...)

	report := s.finish(context.WithoutCancel(ctx), l, run, req.Flags, diff, res, syncErr)
	return report, syncErr
}

// finish fills the run from the outcome, uploads the report and saves the run.
func (s *Service) finish(ctx context.Context, l *zap.Logger, run *models.SyncRun, flags reconcile.Flags, diff *reconcile.Diff, res *reconcile.Result, syncErr error) *RunReport {
	now := time.Now().UTC()
	run.FinishedAt = &now
	report := &RunReport{Run: run, Flags: flags}

	if diff != nil {
		if data, err := diff.JSON(); err != nil {
			l.Warn("Failed to encode diff", zap.Error(err))
		} else {
			run.DiffJSON = string(data)
			report.Diff = data
		}
	}
	if res != nil {
		run.Created, run.Updated, run.Deleted = res.Created, res.Updated, res.Deleted
		run.Unchanged, run.Skipped, run.Failed = res.Unchanged, res.Skipped, res.Failed
		report.Failures = res.Failures
		if len(res.Failures) > 0 {
			data, _ := json.Marshal(res.Failures)
			run.Failures = string(data)
		}
	}

	switch {
	case syncErr != nil:
		run.Status = models.RunFailed
		run.Error = syncErr.Error()
	case run.Failed > 0:
		run.Status = models.RunPartial
	default:
		run.Status = models.RunSucceeded
	}

	if s.cfg.UploadReports && s.client != nil {
		key := path.Join(s.cfg.ReportPrefix, run.Job, run.ID+".json")
		if data, err := json.Marshal(report); err != nil {
			l.Warn("Failed to encode run report", zap.Error(err))
		} else if err := storage.WriteObject(ctx, s.client, s.bucket, key, data, "application/json"); err != nil {
			l.Warn("Failed to upload run report", zap.String("key", key), zap.Error(err))
		} else {
			run.ReportKey = key
		}
	}

	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		l.Error("Failed to save sync run", zap.Error(err))
	}
	l.Info("Sync run finished",
		zap.String("status", run.Status),
		zap.Int("created", run.Created),
		zap.Int("updated", run.Updated),
		zap.Int("deleted", run.Deleted),
		zap.Int("failed", run.Failed),
	)
	return report
}

// ListRuns returns the latest runs, newest first. An empty job lists every job.
func (s *Service) ListRuns(ctx context.Context, job string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Model(&models.SyncRun{}).Order("started_at DESC").Limit(limit)
	if job != "" {
		q = q.Where("job = ?", job)
	}
	var runs []models.SyncRun
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its diff and failures.
func (s *Service) GetRun(ctx context.Context, id string) (*RunReport, error) {
	var run models.SyncRun
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}

	report := &RunReport{Run: &run}
	if run.DiffJSON != "" {
		report.Diff = json.RawMessage(run.DiffJSON)
	}
	if run.Flags != "" {
		if err := json.Unmarshal([]byte(run.Flags), &report.Flags); err != nil {
			return nil, fmt.Errorf("sync run %s: invalid flags: %w", id, err)
		}
	}
	if run.Failures != "" {
		if err := json.Unmarshal([]byte(run.Failures), &report.Failures); err != nil {
			return nil, fmt.Errorf("sync run %s: invalid failures: %w", id, err)
		}
	}
	return report, nil
}
