package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Outcome labels passed to a Recorder.
const (
	OutcomeApplied = "applied"
	OutcomePlanned = "planned"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Recorder observes record-level and run-level outcomes (e.g., for metrics).
type Recorder interface {
	ObserveRecord(typeName string, action Action, outcome string)
	ObserveRun(duration time.Duration, outcome string)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Synchronizer) { s.recorder = r }
}

// WithExpected makes Run stop before writing when the computed diff's summary is not want.
func WithExpected(want Summary) Option {
	return func(s *Synchronizer) { s.expected = &want }
}

// Synchronizer applies a Diff to the target adapter.
type Synchronizer struct {
	src      Adapter
	dst      Adapter
	flags    Flags
	logger   *zap.Logger
	recorder Recorder
	expected *Summary

	mutator  Mutator
	refs     *RefTable
	result   *Result
	typeRank map[string]int
	deletes  []deferredDelete
}

type deferredDelete struct {
	elem  *Element
	rank  int
	depth int
}

// NewSynchronizer creates a synchronizer from src to dst.
func NewSynchronizer(src, dst Adapter, flags Flags, opts ...Option) *Synchronizer {
	s := &Synchronizer{src: src, dst: dst, flags: flags, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync applies the diff in two phases: creates and updates walk the diff in order
// (parents before children), then deferred deletes run leaf types first and children
// before parents. With DryRun set nothing is written; counts report what would be done.
func (s *Synchronizer) Sync(ctx context.Context, diff *Diff) (*Result, error) {
	start := time.Now()
	s.result = &Result{DryRun: s.flags.DryRun}
	s.refs = RefTableFromStore(s.dst.Store())
	s.mutator, _ = s.dst.(Mutator)
	s.deletes = nil
	s.typeRank = make(map[string]int, len(diff.Types))
	for i, t := range diff.Types {
		s.typeRank[t] = i
	}

	err := s.run(ctx, diff)
	s.result.Duration = time.Since(start)

	outcome := OutcomeApplied
	switch {
	case err != nil:
		outcome = OutcomeFailed
	case s.flags.DryRun:
		outcome = OutcomePlanned
	}
	if s.recorder != nil {
		s.recorder.ObserveRun(s.result.Duration, outcome)
	}

	fields := []zap.Field{
		zap.String("source", s.src.Name()),
		zap.String("target", s.dst.Name()),
		zap.Bool("dry_run", s.flags.DryRun),
		zap.Int("created", s.result.Created),
		zap.Int("updated", s.result.Updated),
		zap.Int("deleted", s.result.Deleted),
		zap.Int("unchanged", s.result.Unchanged),
		zap.Int("skipped", s.result.Skipped),
		zap.Int("failed", s.result.Failed),
		zap.Duration("duration", s.result.Duration),
	}
	if err != nil {
		s.logger.Error("Sync aborted", append(fields, zap.Error(err))...)
		return s.result, err
	}
	s.logger.Info("Sync completed", fields...)
	return s.result, nil
}

func (s *Synchronizer) run(ctx context.Context, diff *Diff) error {
	for _, e := range diff.Elements {
		if err := s.apply(ctx, e, nil, s.typeRank[e.Type], 0, false); err != nil {
			return err
		}
	}

	// Leaf types first, then children before parents within a type.
	sort.SliceStable(s.deletes, func(i, j int) bool {
		if s.deletes[i].rank != s.deletes[j].rank {
			return s.deletes[i].rank > s.deletes[j].rank
		}
		return s.deletes[i].depth > s.deletes[j].depth
	})
	for _, d := range s.deletes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.delete(ctx, d.elem); err != nil {
			return err
		}
	}
	return nil
}

// apply handles one element and recurses into its children. blocked is set when an
// ancestor could not be created, so descendants cannot be created either.
func (s *Synchronizer) apply(ctx context.Context, e, parent *Element, rank, depth int, blocked bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch e.Action {
	case ActionDelete:
		s.deferDelete(e, rank, depth)
		return nil
	case ActionSkip:
		s.result.Skipped++
		s.observe(e, OutcomeSkipped)
		return nil
	case ActionNoChange:
		s.result.Unchanged++
	case ActionCreate:
		if blocked {
			s.result.Skipped++
			s.observe(e, OutcomeSkipped)
			s.logger.Warn("Parent was not created, skipping child",
				zap.String("type", e.Type),
				zap.String("unique_id", e.UniqueID),
			)
		} else {
			ok, err := s.create(ctx, e, parent)
			if err != nil {
				return err
			}
			blocked = !ok
		}
	case ActionUpdate:
		if err := s.update(ctx, e); err != nil {
			return err
		}
	}

	for _, c := range e.Children {
		if err := s.apply(ctx, c, e, rank, depth+1, blocked); err != nil {
			return err
		}
	}
	return nil
}

// deferDelete queues a deleted subtree in post-order.
func (s *Synchronizer) deferDelete(e *Element, rank, depth int) {
	for _, c := range e.Children {
		if c.Action == ActionDelete {
			s.deferDelete(c, rank, depth+1)
		}
	}
	s.deletes = append(s.deletes, deferredDelete{elem: e, rank: rank, depth: depth})
}

// create reports whether the record now exists in the target.
func (s *Synchronizer) create(ctx context.Context, e, parent *Element) (bool, error) {
	schema, ok := s.dst.Store().Registry().Schema(e.Type)
	if !ok {
		return false, s.fail(e, &ValidationError{Type: e.Type, Reason: "type is not registered in target"})
	}
	attrs := make(map[string]any, len(schema.Attributes))
	for _, a := range schema.Attributes {
		if v, ok := e.Source[a]; ok {
			attrs[a] = v
		}
	}
	rec, err := NewRecord(schema, e.Identifiers, attrs)
	if err != nil {
		return false, s.fail(e, err)
	}

	if s.flags.DryRun {
		s.result.Created++
		s.observe(e, OutcomePlanned)
		return true, nil
	}

	if s.mutator != nil {
		ref, err := s.mutator.Create(ctx, rec, s.refs)
		if err != nil {
			return false, s.fail(e, err)
		}
		if ref != nil {
			rec.SetRef(ref)
			s.refs.Set(e.Type, e.UniqueID, ref)
		}
	}

	store := s.dst.Store()
	if err := store.Add(rec); err != nil {
		return false, s.fail(e, err)
	}
	if parent != nil {
		if p, err := store.GetByID(parent.Type, parent.UniqueID); err == nil {
			if err := p.AddChild(rec); err != nil {
				s.logger.Warn("Could not link child to parent",
					zap.String("type", e.Type),
					zap.String("unique_id", e.UniqueID),
					zap.Error(err),
				)
			}
		}
	}

	s.result.Created++
	s.observe(e, OutcomeApplied)
	s.logger.Debug("Record created", zap.String("type", e.Type), zap.String("unique_id", e.UniqueID))
	return true, nil
}

func (s *Synchronizer) update(ctx context.Context, e *Element) error {
	rec, err := s.dst.Store().GetByID(e.Type, e.UniqueID)
	if err != nil {
		return s.fail(e, err)
	}
	changed := make(map[string]any, len(e.Changed))
	for attr, c := range e.Changed {
		changed[attr] = c.New
	}

	if s.flags.DryRun {
		s.result.Updated++
		s.observe(e, OutcomePlanned)
		return nil
	}

	if s.mutator != nil {
		if err := s.mutator.Update(ctx, rec, changed, s.refs); err != nil {
			return s.fail(e, err)
		}
	}
	if err := rec.Set(changed); err != nil {
		return s.fail(e, err)
	}

	s.result.Updated++
	s.observe(e, OutcomeApplied)
	s.logger.Debug("Record updated",
		zap.String("type", e.Type),
		zap.String("unique_id", e.UniqueID),
		zap.Any("changed", changed),
	)
	return nil
}

func (s *Synchronizer) delete(ctx context.Context, e *Element) error {
	rec, err := s.dst.Store().GetByID(e.Type, e.UniqueID)
	if err != nil {
		return s.fail(e, err)
	}

	if s.flags.DryRun {
		s.result.Deleted++
		s.observe(e, OutcomePlanned)
		return nil
	}

	if s.mutator != nil {
		if err := s.mutator.Delete(ctx, rec, s.refs); err != nil {
			return s.fail(e, err)
		}
	}
	if err := s.dst.Store().Remove(e.Type, e.UniqueID); err != nil {
		return s.fail(e, err)
	}
	s.refs.Delete(e.Type, e.UniqueID)

	s.result.Deleted++
	s.observe(e, OutcomeApplied)
	s.logger.Debug("Record deleted", zap.String("type", e.Type), zap.String("unique_id", e.UniqueID))
	return nil
}

// fail records a record-level failure. It returns nil when the run should continue.
func (s *Synchronizer) fail(e *Element, err error) error {
	s.result.Failed++
	s.result.Failures = append(s.result.Failures, Failure{
		Type:     e.Type,
		UniqueID: e.UniqueID,
		Action:   e.Action,
		Error:    err.Error(),
	})
	s.observe(e, OutcomeFailed)

	if s.flags.ContinueOnFailure {
		s.logger.Warn("Record sync failed, continuing",
			zap.String("type", e.Type),
			zap.String("unique_id", e.UniqueID),
			zap.String("action", string(e.Action)),
			zap.Error(err),
		)
		return nil
	}
	return &SyncError{Type: e.Type, UniqueID: e.UniqueID, Action: e.Action, Err: err}
}

func (s *Synchronizer) observe(e *Element, outcome string) {
	if s.recorder != nil {
		s.recorder.ObserveRecord(e.Type, e.Action, outcome)
	}
}

// Run loads both adapters, diffs them and applies the diff to dst.
// A load failure aborts before any diff is computed.
func Run(ctx context.Context, src, dst Adapter, flags Flags, opts ...Option) (*Diff, *Result, error) {
	s := NewSynchronizer(src, dst, flags, opts...)
	if err := LoadAll(ctx, s.logger, src, dst); err != nil {
		return nil, nil, err
	}
	diff, err := NewDiffer(flags, s.logger).Diff(src, dst)
	if err != nil {
		return nil, nil, fmt.Errorf("diff: %w", err)
	}
	if s.expected != nil {
		if got := diff.Summary(); got != *s.expected {
			s.logger.Error("Diff changed since it was planned", zap.Any("want", *s.expected), zap.Any("got", got))
			return diff, nil, &PlanChangedError{Want: *s.expected, Got: got}
		}
	}
	res, err := s.Sync(ctx, diff)
	return diff, res, err
}
