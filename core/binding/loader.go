package binding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"inventory-sync/core/reconcile"
	"inventory-sync/core/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Loader evaluates field descriptors against database rows. Related tables, join tables
// and association rows are read once and cached, so a Loader serves a single load pass.
type Loader struct {
	db       *gorm.DB
	registry *Registry
	logger   *zap.Logger

	rows   map[string]map[string]map[string]any
	order  map[string][]string
	joins  map[string]map[string][]string
	assocs []RelationshipAssociation
	loaded bool
}

// NewLoader creates a loader. A nil logger discards output.
func NewLoader(db *gorm.DB, registry *Registry, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		db:       db,
		registry: registry,
		logger:   logger,
		rows:     make(map[string]map[string]map[string]any),
		order:    make(map[string][]string),
		joins:    make(map[string]map[string][]string),
	}
}

// Records reads every row of a model and builds its records, with the primary key as ref.
func (l *Loader) Records(ctx context.Context, typeName string) ([]*reconcile.Record, error) {
	m, ok := l.registry.Model(typeName)
	if !ok {
		return nil, &reconcile.ValidationError{Type: typeName, Reason: "type is not bound"}
	}
	rows, order, err := l.table(ctx, m)
	if err != nil {
		return nil, err
	}

	out := make([]*reconcile.Record, 0, len(order))
	for _, pk := range order {
		ids, attrs, err := l.Fields(ctx, m, rows[pk])
		if err != nil {
			return nil, err
		}
		rec, err := reconcile.NewRecord(m.Schema, ids, attrs)
		if errors.Is(err, reconcile.ErrValidation) {
			l.logger.Warn("Skipping unreadable row",
				zap.String("table", m.Table),
				zap.String("pk", pk),
				zap.Error(err),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("row %s of %s: %w", pk, m.Table, err)
		}
		rec.SetRef(pk)
		out = append(out, rec)
	}
	return out, nil
}

// Fields evaluates every descriptor of m on one row.
func (l *Loader) Fields(ctx context.Context, m *Model, row map[string]any) (ids, attrs map[string]any, err error) {
	ids = make(map[string]any, len(m.Schema.Identifiers))
	attrs = make(map[string]any, len(m.Schema.Attributes))
	for _, name := range m.Schema.Identifiers {
		if ids[name], err = l.value(ctx, m, row, name); err != nil {
			return nil, nil, err
		}
	}
	for _, name := range m.Schema.Attributes {
		if attrs[name], err = l.value(ctx, m, row, name); err != nil {
			return nil, nil, err
		}
	}
	return ids, attrs, nil
}

func (l *Loader) value(ctx context.Context, m *Model, row map[string]any, name string) (any, error) {
	f, ok := m.Field(name)
	if !ok {
		return nil, &reconcile.ValidationError{Type: m.TypeName(), Field: name, Reason: "unknown field"}
	}
	pk := utils.ToString(row[m.PK])

	switch f.Kind {
	case Scalar:
		return f.Type.Normalize(row[f.Column]), nil

	case ForeignKey:
		fk := row[f.Column]
		if fk == nil {
			return nil, nil
		}
		relatedType := f.Related
		if relatedType == "" {
			relatedType = utils.ToString(row[f.TypeColumn])
		}
		_, path := f.Slot()
		if path == ModelKey {
			return relatedType, nil
		}
		rm, ok := l.registry.Model(relatedType)
		if !ok {
			return nil, &reconcile.ValidationError{Type: m.TypeName(), Field: name, Reason: fmt.Sprintf("related type %q is not bound", relatedType)}
		}
		related, err := l.row(ctx, rm, utils.ToString(fk))
		if err != nil {
			return nil, err
		}
		if related == nil {
			l.logger.Warn("Dangling foreign key, reading as null",
				zap.String("type", m.TypeName()),
				zap.String("field", name),
				zap.String("pk", pk),
				zap.Any("related_pk", fk),
			)
			return nil, nil
		}
		return l.value(ctx, rm, related, path)

	case Custom:
		bag, err := customBag(row[m.CustomColumn])
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", m.Table, pk, err)
		}
		return f.Type.Normalize(bag[f.Key]), nil

	case ManyToMany:
		rm, _ := l.registry.Model(f.Related)
		related, err := l.joined(ctx, f, pk)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(related))
		for _, rpk := range related {
			dict, err := l.identify(ctx, rm, rpk, f.Keys)
			if err != nil {
				return nil, err
			}
			if dict != nil {
				out = append(out, dict)
			}
		}
		return out, nil

	case Association:
		peers, err := l.peers(ctx, m, f, pk)
		if err != nil {
			return nil, err
		}
		rm, _ := l.registry.Model(f.Related)
		dicts := make([]any, 0, len(peers))
		for _, ppk := range peers {
			dict, err := l.identify(ctx, rm, ppk, f.Keys)
			if err != nil {
				return nil, err
			}
			if dict != nil {
				dicts = append(dicts, dict)
			}
		}
		if f.Many {
			return dicts, nil
		}
		switch len(dicts) {
		case 0:
			return nil, nil
		case 1:
			return dicts[0], nil
		default:
			return nil, &reconcile.AssociationError{Type: m.TypeName(), Field: name, Relationship: f.Relationship, Rows: len(dicts)}
		}
	}
	return nil, nil
}

// identify builds the identifying dict of a related row.
func (l *Loader) identify(ctx context.Context, m *Model, pk string, keys []string) (map[string]any, error) {
	row, err := l.row(ctx, m, pk)
	if err != nil || row == nil {
		return nil, err
	}
	dict := make(map[string]any, len(keys))
	for _, k := range keys {
		v, err := l.value(ctx, m, row, k)
		if err != nil {
			return nil, err
		}
		dict[k] = v
	}
	return dict, nil
}

func (l *Loader) table(ctx context.Context, m *Model) (map[string]map[string]any, []string, error) {
	if rows, ok := l.rows[m.TypeName()]; ok {
		return rows, l.order[m.TypeName()], nil
	}
	var list []map[string]any
	if err := l.db.WithContext(ctx).Table(m.Table).Order(m.PK).Find(&list).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", m.Table, err)
	}
	rows := make(map[string]map[string]any, len(list))
	order := make([]string, 0, len(list))
	for _, row := range list {
		pk := utils.ToString(row[m.PK])
		rows[pk] = row
		order = append(order, pk)
	}
	l.rows[m.TypeName()] = rows
	l.order[m.TypeName()] = order
	return rows, order, nil
}

func (l *Loader) row(ctx context.Context, m *Model, pk string) (map[string]any, error) {
	rows, _, err := l.table(ctx, m)
	if err != nil {
		return nil, err
	}
	return rows[pk], nil
}

func (l *Loader) joined(ctx context.Context, f *Field, owner string) ([]string, error) {
	key := f.JoinTable + "." + f.OwnerColumn + "." + f.RelatedColumn
	byOwner, ok := l.joins[key]
	if !ok {
		var list []map[string]any
		if err := l.db.WithContext(ctx).Table(f.JoinTable).Select(f.OwnerColumn, f.RelatedColumn).Find(&list).Error; err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.JoinTable, err)
		}
		byOwner = make(map[string][]string)
		for _, row := range list {
			o := utils.ToString(row[f.OwnerColumn])
			byOwner[o] = append(byOwner[o], utils.ToString(row[f.RelatedColumn]))
		}
		l.joins[key] = byOwner
	}
	return byOwner[owner], nil
}

func (l *Loader) peers(ctx context.Context, m *Model, f *Field, pk string) ([]string, error) {
	if !l.loaded {
		if err := l.db.WithContext(ctx).Order("id").Find(&l.assocs).Error; err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", AssociationTable, err)
		}
		l.loaded = true
	}
	var out []string
	for _, a := range l.assocs {
		if a.Relationship != f.Relationship {
			continue
		}
		if f.Side == SideDestination {
			if a.DestinationType == m.TypeName() && a.DestinationID == pk && a.SourceType == f.Related {
				out = append(out, a.SourceID)
			}
			continue
		}
		if a.SourceType == m.TypeName() && a.SourceID == pk && a.DestinationType == f.Related {
			out = append(out, a.DestinationID)
		}
	}
	return out, nil
}

// customBag decodes the JSON custom field column. NULL and empty read as an empty bag.
func customBag(raw any) (map[string]any, error) {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, fmt.Errorf("unexpected custom field column type %T", raw)
	}
	bag := map[string]any{}
	if len(data) == 0 {
		return bag, nil
	}
	if err := json.Unmarshal(data, &bag); err != nil {
		return nil, fmt.Errorf("invalid custom field data: %w", err)
	}
	if bag == nil {
		bag = map[string]any{}
	}
	return bag, nil
}
