package reconcile

import (
	"errors"
	"reflect"

	"go.uber.org/zap"
)

// Differ compares a source store against a target store.
type Differ struct {
	flags    Flags
	logger   *zap.Logger
	src      *Store
	dst      *Store
	topLevel map[string]bool
	visited  map[string]struct{}
}

// NewDiffer creates a differ. A nil logger discards output.
func NewDiffer(flags Flags, logger *zap.Logger) *Differ {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Differ{flags: flags, logger: logger}
}

// Diff computes the elements that bring dst in line with src.
//
// Types are visited in the source's top-level order, followed by any top-level type only
// the target declares. Within a type, source records come first in insertion order
// (create, update or no-change), then target-only records (delete or skip).
func (d *Differ) Diff(src, dst Adapter) (*Diff, error) {
	d.src = src.Store()
	d.dst = dst.Store()
	d.visited = make(map[string]struct{})
	d.topLevel = make(map[string]bool)

	candidates := append(append([]string{}, src.TopLevel()...), dst.TopLevel()...)
	types := make([]string, 0, len(candidates))
	for _, t := range candidates {
		if d.topLevel[t] {
			continue
		}
		if _, ok := d.dst.Registry().Schema(t); !ok {
			return nil, &ValidationError{Type: t, Reason: "type is not registered in target " + dst.Name()}
		}
		if _, ok := d.src.Registry().Schema(t); !ok {
			return nil, &ValidationError{Type: t, Reason: "type is not registered in source " + src.Name()}
		}
		d.topLevel[t] = true
		types = append(types, t)
	}

	diff := &Diff{Types: types}
	for _, t := range types {
		for _, s := range d.src.GetAll(t) {
			dr, _ := d.dst.GetByID(t, s.UniqueID())
			if e := d.diffPair(t, s, dr); e != nil {
				diff.Elements = append(diff.Elements, e)
			}
		}
		for _, dr := range d.dst.GetAll(t) {
			if _, err := d.src.GetByID(t, dr.UniqueID()); err == nil {
				continue
			}
			if e := d.diffPair(t, nil, dr); e != nil {
				diff.Elements = append(diff.Elements, e)
			}
		}
	}

	sum := diff.Summary()
	d.logger.Info("Diff computed",
		zap.String("source", src.Name()),
		zap.String("target", dst.Name()),
		zap.Int("create", sum.Create),
		zap.Int("update", sum.Update),
		zap.Int("delete", sum.Delete),
		zap.Int("no_change", sum.NoChange),
		zap.Int("skip", sum.Skip),
	)
	return diff, nil
}

// diffPair builds the element for one record present on either or both sides.
// It returns nil when the record was already diffed through another path.
func (d *Differ) diffPair(typeName string, s, t *Record) *Element {
	var uid string
	var ids map[string]any
	if s != nil {
		uid, ids = s.UniqueID(), s.Identifiers()
	} else {
		uid, ids = t.UniqueID(), t.Identifiers()
	}
	key := typeName + "\x00" + uid
	if _, seen := d.visited[key]; seen {
		return nil
	}
	d.visited[key] = struct{}{}

	e := &Element{Type: typeName, UniqueID: uid, Identifiers: ids}
	if s != nil {
		e.Source = s.Attrs()
	}
	if t != nil {
		e.Dest = t.Attrs()
	}

	if (s != nil && s.Flags().Has(RecordFlagIgnore)) || (t != nil && t.Flags().Has(RecordFlagIgnore)) {
		e.Action = ActionSkip
		e.Reason = "ignored"
		d.logger.Debug("Record ignored", zap.String("type", typeName), zap.String("unique_id", uid))
		return e
	}

	switch {
	case s != nil && t != nil:
		e.Changed = changedAttrs(s, t)
		if len(e.Changed) > 0 {
			e.Action = ActionUpdate
		} else {
			e.Action = ActionNoChange
			e.Changed = nil
			if d.flags.LogUnchanged {
				d.logger.Info("Record unchanged", zap.String("type", typeName), zap.String("unique_id", uid))
			}
		}
		e.Children = d.diffChildren(s, t)

	case s != nil:
		e.Action = ActionCreate
		for _, ct := range s.ChildTypes() {
			if d.topLevel[ct] {
				continue
			}
			for _, cid := range s.Children(ct) {
				child, ok := d.lookup(d.src, ct, cid)
				if !ok {
					continue
				}
				if ce := d.diffPair(ct, child, nil); ce != nil {
					e.Children = append(e.Children, ce)
				}
			}
		}

	default:
		if d.flags.SkipUnmatchedDst || t.Flags().Has(RecordFlagSkipUnmatchedDst) {
			e.Action = ActionSkip
			e.Reason = "absent from source, kept"
			d.logger.Debug("Unmatched target record kept", zap.String("type", typeName), zap.String("unique_id", uid))
			return e
		}
		e.Action = ActionDelete
		for _, ct := range t.ChildTypes() {
			if d.topLevel[ct] {
				continue
			}
			for _, cid := range t.Children(ct) {
				child, ok := d.lookup(d.dst, ct, cid)
				if !ok {
					continue
				}
				if ce := d.diffPair(ct, nil, child); ce != nil {
					e.Children = append(e.Children, ce)
				}
			}
		}
	}
	return e
}

// diffChildren compares the children of two matched records.
// Child types that are also top-level are diffed on their own.
func (d *Differ) diffChildren(s, t *Record) []*Element {
	var out []*Element
	for _, ct := range s.ChildTypes() {
		if d.topLevel[ct] {
			continue
		}
		srcIDs := s.Children(ct)
		inSource := make(map[string]struct{}, len(srcIDs))
		for _, cid := range srcIDs {
			inSource[cid] = struct{}{}
			sc, ok := d.lookup(d.src, ct, cid)
			if !ok {
				continue
			}
			tc, _ := d.dst.GetByID(ct, cid)
			if ce := d.diffPair(ct, sc, tc); ce != nil {
				out = append(out, ce)
			}
		}
		for _, cid := range t.Children(ct) {
			if _, ok := inSource[cid]; ok {
				continue
			}
			tc, ok := d.lookup(d.dst, ct, cid)
			if !ok {
				continue
			}
			sc, _ := d.src.GetByID(ct, cid)
			if ce := d.diffPair(ct, sc, tc); ce != nil {
				out = append(out, ce)
			}
		}
	}
	return out
}

func (d *Differ) lookup(store *Store, typeName, uid string) (*Record, bool) {
	r, err := store.GetByID(typeName, uid)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			d.logger.Warn("Child listed but not indexed, dropping edge",
				zap.String("type", typeName),
				zap.String("unique_id", uid),
			)
		}
		return nil, false
	}
	return r, true
}

// changedAttrs returns the attributes whose values differ, keyed by attribute name.
// Attributes the target schema does not declare are ignored.
func changedAttrs(s, t *Record) map[string]Change {
	changed := make(map[string]Change)
	tAttrs := t.Attrs()
	for attr, sv := range s.Attrs() {
		tv, ok := tAttrs[attr]
		if !ok {
			continue
		}
		if !reflect.DeepEqual(sv, tv) {
			changed[attr] = Change{Old: tv, New: sv}
		}
	}
	return changed
}

// DiffAdapters is a shorthand for NewDiffer(flags, logger).Diff(src, dst).
func DiffAdapters(src, dst Adapter, flags Flags, logger *zap.Logger) (*Diff, error) {
	return NewDiffer(flags, logger).Diff(src, dst)
}
