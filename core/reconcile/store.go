package reconcile

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// typeIndex keeps records of one type in insertion order.
type typeIndex struct {
	keys    []string
	records map[string]*Record
}

// Store is the in-memory index of one adapter's snapshot.
// It is not safe for concurrent mutation.
type Store struct {
	registry *Registry
	order    []string
	types    map[string]*typeIndex
}

// NewStore creates an empty store bound to a schema registry.
func NewStore(registry *Registry) *Store {
	return &Store{
		registry: registry,
		types:    make(map[string]*typeIndex),
	}
}

// Registry returns the schemas the store was built with.
func (s *Store) Registry() *Registry { return s.registry }

func (s *Store) index(typeName string, create bool) *typeIndex {
	idx, ok := s.types[typeName]
	if !ok && create {
		idx = &typeIndex{records: make(map[string]*Record)}
		s.types[typeName] = idx
		s.order = append(s.order, typeName)
	}
	return idx
}

// Add indexes a record. A colliding (type, unique id) returns *DuplicateRecordError
// and leaves the existing record in place.
func (s *Store) Add(r *Record) error {
	if _, ok := s.registry.Schema(r.TypeName()); !ok {
		return &ValidationError{Type: r.TypeName(), Reason: "type is not registered with this store"}
	}
	uid := r.UniqueID()
	idx := s.index(r.TypeName(), true)
	if _, exists := idx.records[uid]; exists {
		return &DuplicateRecordError{Type: r.TypeName(), UniqueID: uid}
	}
	idx.records[uid] = r
	idx.keys = append(idx.keys, uid)
	return nil
}

// AddLenient adds a record, logging and dropping duplicates instead of failing.
// It reports whether the record was added. Non-duplicate errors are returned.
func (s *Store) AddLenient(r *Record, logger *zap.Logger) (bool, error) {
	err := s.Add(r)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrDuplicateRecord) {
		if logger != nil {
			logger.Warn("Duplicate record skipped, keeping first",
				zap.String("type", r.TypeName()),
				zap.String("unique_id", r.UniqueID()),
			)
		}
		return false, nil
	}
	return false, err
}

// Get looks a record up by its identifier values.
func (s *Store) Get(typeName string, ids map[string]any) (*Record, error) {
	schema, ok := s.registry.Schema(typeName)
	if !ok {
		return nil, &RecordNotFoundError{Type: typeName, UniqueID: fmt.Sprint(ids)}
	}
	uid, err := UniqueIDFor(schema, ids)
	if err != nil {
		return nil, err
	}
	return s.GetByID(typeName, uid)
}

// GetByID looks a record up by unique id.
func (s *Store) GetByID(typeName, uid string) (*Record, error) {
	if idx := s.index(typeName, false); idx != nil {
		if r, ok := idx.records[uid]; ok {
			return r, nil
		}
	}
	return nil, &RecordNotFoundError{Type: typeName, UniqueID: uid}
}

// GetAll returns all records of a type in insertion order.
func (s *Store) GetAll(typeName string) []*Record {
	idx := s.index(typeName, false)
	if idx == nil {
		return nil
	}
	out := make([]*Record, 0, len(idx.keys))
	for _, k := range idx.keys {
		out = append(out, idx.records[k])
	}
	return out
}

// GetOrInstantiate returns the existing record for ids, or builds and adds one.
// created is true when a new record was added.
func (s *Store) GetOrInstantiate(typeName string, ids, attrs map[string]any) (*Record, bool, error) {
	schema, ok := s.registry.Schema(typeName)
	if !ok {
		return nil, false, &ValidationError{Type: typeName, Reason: "type is not registered with this store"}
	}
	uid, err := UniqueIDFor(schema, ids)
	if err != nil {
		return nil, false, err
	}
	if existing, err := s.GetByID(typeName, uid); err == nil {
		return existing, false, nil
	}
	r, err := NewRecord(schema, ids, attrs)
	if err != nil {
		return nil, false, err
	}
	if err := s.Add(r); err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// Update overwrites attributes of an indexed record.
func (s *Store) Update(typeName, uid string, attrs map[string]any) (*Record, error) {
	r, err := s.GetByID(typeName, uid)
	if err != nil {
		return nil, err
	}
	if err := r.Set(attrs); err != nil {
		return nil, err
	}
	return r, nil
}

// Remove drops a record and unlinks it from its parent's children list.
func (s *Store) Remove(typeName, uid string) error {
	idx := s.index(typeName, false)
	if idx == nil {
		return &RecordNotFoundError{Type: typeName, UniqueID: uid}
	}
	if _, ok := idx.records[uid]; !ok {
		return &RecordNotFoundError{Type: typeName, UniqueID: uid}
	}
	delete(idx.records, uid)
	for i, k := range idx.keys {
		if k == uid {
			idx.keys = append(idx.keys[:i:i], idx.keys[i+1:]...)
			break
		}
	}
	if parentType, ok := s.registry.Parent(typeName); ok {
		for _, p := range s.GetAll(parentType) {
			if p.RemoveChild(typeName, uid) {
				break
			}
		}
	}
	return nil
}

// Count returns the number of records of a type.
func (s *Store) Count(typeName string) int {
	if idx := s.index(typeName, false); idx != nil {
		return len(idx.keys)
	}
	return 0
}

// Types returns the type names present, in first-insertion order.
func (s *Store) Types() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Dump renders the store as type -> unique id -> fields, for debugging and tests.
func (s *Store) Dump() map[string]map[string]map[string]any {
	out := make(map[string]map[string]map[string]any, len(s.order))
	for _, t := range s.order {
		records := s.GetAll(t)
		if len(records) == 0 {
			continue
		}
		byID := make(map[string]map[string]any, len(records))
		for _, r := range records {
			fields := r.Identifiers()
			for k, v := range r.Attrs() {
				fields[k] = v
			}
			byID[r.UniqueID()] = fields
		}
		out[t] = byID
	}
	return out
}

// ParentOf resolves the parent record of child through the child schema's ParentFields.
func (s *Store) ParentOf(child *Record) (*Record, error) {
	parentType, ok := s.registry.Parent(child.TypeName())
	if !ok {
		return nil, nil
	}
	fields := child.Schema().ParentFields
	if len(fields) == 0 {
		return nil, nil
	}
	ids := make(map[string]any, len(fields))
	for childField, parentField := range fields {
		v, _ := child.Get(childField)
		ids[parentField] = v
	}
	return s.Get(parentType, ids)
}

// LinkChild adds child to the store and to its parent's children list. A child whose
// parent is not loaded is logged and not added. It reports whether the child was added.
func (s *Store) LinkChild(child *Record, logger *zap.Logger) (bool, error) {
	parent, err := s.ParentOf(child)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrValidation) {
			if logger != nil {
				logger.Warn("Parent not loaded, skipping child record",
					zap.String("type", child.TypeName()),
					zap.String("unique_id", child.UniqueID()),
					zap.Error(err),
				)
			}
			return false, nil
		}
		return false, err
	}
	added, err := s.AddLenient(child, logger)
	if err != nil || !added {
		return false, err
	}
	if parent != nil {
		if err := parent.AddChild(child); err != nil {
			return false, err
		}
	}
	return true, nil
}
