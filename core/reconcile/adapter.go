package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Adapter populates one side of a sync.
// Each adapter owns exactly one Store; Load has no side effect other than filling it.
type Adapter interface {
	// Name returns a short label used in logs and reports (e.g., "snapshot", "nautobot").
	Name() string

	// TopLevel returns the root record types in dependency order.
	// Types earlier in the list are created before later ones and deleted after them.
	TopLevel() []string

	// Store returns the adapter's record index.
	Store() *Store

	// Load fills the store with every top-level record and its declared children.
	// Any returned error is fatal to the sync run.
	Load(ctx context.Context) error
}

// Mutator applies record-level changes to the backing system behind an adapter.
// Adapters that do not implement Mutator are synced in memory only.
type Mutator interface {
	// Create persists a new record and returns its backing-store identifier.
	Create(ctx context.Context, rec *Record, refs *RefTable) (any, error)

	// Update writes only the changed attributes of an existing record.
	Update(ctx context.Context, rec *Record, changed map[string]any, refs *RefTable) error

	// Delete removes an existing record.
	Delete(ctx context.Context, rec *Record, refs *RefTable) error
}

// RefTable maps (type, unique id) to backing-store identifiers known during one sync run.
type RefTable struct {
	refs map[string]map[string]any
}

// NewRefTable returns an empty table.
func NewRefTable() *RefTable {
	return &RefTable{refs: make(map[string]map[string]any)}
}

// Set registers a backing identifier.
func (t *RefTable) Set(typeName, uid string, ref any) {
	byID, ok := t.refs[typeName]
	if !ok {
		byID = make(map[string]any)
		t.refs[typeName] = byID
	}
	byID[uid] = ref
}

// Lookup returns the backing identifier for a record, if known.
func (t *RefTable) Lookup(typeName, uid string) (any, bool) {
	if t == nil {
		return nil, false
	}
	ref, ok := t.refs[typeName][uid]
	return ref, ok
}

// Delete forgets a backing identifier.
func (t *RefTable) Delete(typeName, uid string) {
	if byID, ok := t.refs[typeName]; ok {
		delete(byID, uid)
	}
}

// Len returns the number of registered identifiers.
func (t *RefTable) Len() int {
	n := 0
	for _, byID := range t.refs {
		n += len(byID)
	}
	return n
}

// RefTableFromStore seeds a table with every record that carries a Ref.
func RefTableFromStore(s *Store) *RefTable {
	t := NewRefTable()
	for _, typeName := range s.Types() {
		for _, r := range s.GetAll(typeName) {
			if r.Ref() != nil {
				t.Set(typeName, r.UniqueID(), r.Ref())
			}
		}
	}
	return t
}

// LoadAll loads the adapters concurrently. Adapters share no state, so the resulting
// stores are the same as with sequential loading.
func LoadAll(ctx context.Context, logger *zap.Logger, adapters ...Adapter) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range adapters {
		g.Go(func() error {
			logger.Info("Loading adapter", zap.String("adapter", a.Name()))
			if err := a.Load(gctx); err != nil {
				return fmt.Errorf("load %s: %w", a.Name(), err)
			}
			for _, t := range a.Store().Types() {
				logger.Debug("Adapter loaded",
					zap.String("adapter", a.Name()),
					zap.String("type", t),
					zap.Int("count", a.Store().Count(t)),
				)
			}
			return nil
		})
	}
	return g.Wait()
}
