package binding

import (
	"context"
	"fmt"

	"inventory-sync/core/reconcile"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Adapter is a reconcile adapter backed by a database through bound models.
// Writes go through the embedded CRUD binding.
type Adapter struct {
	*CRUD

	name     string
	db       *gorm.DB
	registry *Registry
	topLevel []string
	store    *reconcile.Store
	logger   *zap.Logger
}

// NewAdapter creates a database adapter. topLevel lists the root types in dependency order.
func NewAdapter(name string, db *gorm.DB, registry *Registry, topLevel []string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("adapter", name))
	return &Adapter{
		CRUD:     NewCRUD(db, registry, logger),
		name:     name,
		db:       db,
		registry: registry,
		topLevel: topLevel,
		store:    reconcile.NewStore(registry.Schemas()),
		logger:   logger,
	}
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) TopLevel() []string { return a.topLevel }

func (a *Adapter) Store() *reconcile.Store { return a.store }

// Registry returns the bound models.
func (a *Adapter) Registry() *Registry { return a.registry }

// Load reads every bound model, parents before children, and links children to their
// parents through the schema's parent fields.
func (a *Adapter) Load(ctx context.Context) error {
	loader := NewLoader(a.db, a.registry, a.logger)
	order, err := a.loadOrder()
	if err != nil {
		return err
	}

	schemas := a.registry.Schemas()
	for _, typeName := range order {
		records, err := loader.Records(ctx, typeName)
		if err != nil {
			return err
		}
		_, hasParent := schemas.Parent(typeName)
		for _, rec := range records {
			if hasParent {
				_, err = a.store.LinkChild(rec, a.logger)
			} else {
				_, err = a.store.AddLenient(rec, a.logger)
			}
			if err != nil {
				return err
			}
		}
		a.logger.Debug("Model loaded", zap.String("type", typeName), zap.Int("count", a.store.Count(typeName)))
	}
	return nil
}

// loadOrder returns the top-level types followed by the remaining bound types, each
// child type after its parent.
func (a *Adapter) loadOrder() ([]string, error) {
	schemas := a.registry.Schemas()
	done := make(map[string]bool)
	var order []string
	for _, t := range a.topLevel {
		if _, ok := a.registry.Model(t); !ok {
			return nil, &reconcile.ValidationError{Type: t, Reason: "top-level type is not bound"}
		}
		if !done[t] {
			done[t] = true
			order = append(order, t)
		}
	}

	pending := a.registry.Types()
	for len(pending) > 0 {
		var next []string
		for _, t := range pending {
			if done[t] {
				continue
			}
			if p, ok := schemas.Parent(t); ok && !done[p] {
				next = append(next, t)
				continue
			}
			done[t] = true
			order = append(order, t)
		}
		if len(next) == len(pending) {
			return nil, fmt.Errorf("cannot order types %v: parent cycle", next)
		}
		pending = next
	}
	return order, nil
}
