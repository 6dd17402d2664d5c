package binding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"inventory-sync/core/reconcile"
	"inventory-sync/core/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CRUD writes records through the field descriptors. Every record is saved in one
// transaction: own columns and foreign keys first, then the row, then many-to-many and
// association rows, which need the row's primary key.
type CRUD struct {
	db       *gorm.DB
	registry *Registry
	logger   *zap.Logger
}

// NewCRUD creates a CRUD binding. A nil logger discards output.
func NewCRUD(db *gorm.DB, registry *Registry, logger *zap.Logger) *CRUD {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CRUD{db: db, registry: registry, logger: logger}
}

// Create inserts a record and returns its generated primary key.
func (c *CRUD) Create(ctx context.Context, rec *reconcile.Record, refs *reconcile.RefTable) (any, error) {
	m, err := c.model(rec)
	if err != nil {
		return nil, err
	}
	values := recordValues(rec)
	touched := fieldNames(m)
	pk := uuid.NewString()

	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cols, err := c.columns(ctx, tx, m, values, touched, refs, map[string]any{})
		if err != nil {
			return err
		}
		cols[m.PK] = pk
		if err := tx.Table(m.Table).Create(cols).Error; err != nil {
			return fmt.Errorf("failed to insert into %s: %w", m.Table, err)
		}
		return c.relations(ctx, tx, m, pk, values, touched, refs)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Row created", zap.String("table", m.Table), zap.String("pk", pk), zap.String("record", rec.String()))
	return pk, nil
}

// Update writes only the changed fields of an existing record.
func (c *CRUD) Update(ctx context.Context, rec *reconcile.Record, changed map[string]any, refs *reconcile.RefTable) error {
	m, err := c.model(rec)
	if err != nil {
		return err
	}
	values := recordValues(rec)
	touched := make([]string, 0, len(changed))
	for name, v := range changed {
		values[name] = v
		touched = append(touched, name)
	}

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pk, err := c.primaryKey(ctx, tx, m, rec, refs)
		if err != nil {
			return err
		}
		var bag map[string]any
		if touchesKind(m, touched, Custom) {
			if bag, err = c.currentBag(tx, m, pk); err != nil {
				return err
			}
		}
		cols, err := c.columns(ctx, tx, m, values, touched, refs, bag)
		if err != nil {
			return err
		}
		if len(cols) > 0 {
			res := tx.Table(m.Table).Where(clause.Eq{Column: clause.Column{Name: m.PK}, Value: pk}).Updates(cols)
			if res.Error != nil {
				return fmt.Errorf("failed to update %s %s: %w", m.Table, pk, res.Error)
			}
		}
		return c.relations(ctx, tx, m, pk, values, touched, refs)
	})
}

// Delete removes a record's join and association rows, then the row itself.
func (c *CRUD) Delete(ctx context.Context, rec *reconcile.Record, refs *reconcile.RefTable) error {
	m, err := c.model(rec)
	if err != nil {
		return err
	}
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pk, err := c.primaryKey(ctx, tx, m, rec, refs)
		if err != nil {
			return err
		}
		for _, name := range c.registry.Types() {
			other, _ := c.registry.Model(name)
			for i := range other.Fields {
				f := &other.Fields[i]
				if f.Kind != ManyToMany {
					continue
				}
				if other == m {
					if err := deleteWhere(tx, f.JoinTable, f.OwnerColumn, pk); err != nil {
						return err
					}
				}
				if f.Related == m.TypeName() {
					if err := deleteWhere(tx, f.JoinTable, f.RelatedColumn, pk); err != nil {
						return err
					}
				}
			}
		}
		err = tx.Where("(source_type = ? AND source_id = ?) OR (destination_type = ? AND destination_id = ?)",
			m.TypeName(), pk, m.TypeName(), pk).Delete(&RelationshipAssociation{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete associations of %s %s: %w", m.TypeName(), pk, err)
		}
		res := tx.Exec("DELETE FROM ? WHERE ? = ?", clause.Table{Name: m.Table}, clause.Column{Name: m.PK}, pk)
		if res.Error != nil {
			return fmt.Errorf("failed to delete %s %s: %w", m.Table, pk, res.Error)
		}
		if res.RowsAffected == 0 {
			return &reconcile.RecordNotFoundError{Type: m.TypeName(), UniqueID: rec.UniqueID()}
		}
		c.logger.Debug("Row deleted", zap.String("table", m.Table), zap.String("pk", pk))
		return nil
	})
}

func (c *CRUD) model(rec *reconcile.Record) (*Model, error) {
	m, ok := c.registry.Model(rec.TypeName())
	if !ok {
		return nil, &reconcile.ValidationError{Type: rec.TypeName(), Reason: "type is not bound to a table"}
	}
	return m, nil
}

// primaryKey returns the backing key of an existing record: its ref, the run's RefTable,
// or a lookup by identifiers.
func (c *CRUD) primaryKey(ctx context.Context, tx *gorm.DB, m *Model, rec *reconcile.Record, refs *reconcile.RefTable) (string, error) {
	if ref := rec.Ref(); ref != nil {
		return utils.ToString(ref), nil
	}
	if ref, ok := refs.Lookup(m.TypeName(), rec.UniqueID()); ok {
		return utils.ToString(ref), nil
	}
	return c.resolve(ctx, tx, m, rec.Identifiers(), refs, m.TypeName(), m.PK)
}

// columns computes the own-table column values for the touched fields.
// bag is the current custom field bag; it is only read when a custom field is touched.
func (c *CRUD) columns(ctx context.Context, tx *gorm.DB, m *Model, values map[string]any, touched []string, refs *reconcile.RefTable, bag map[string]any) (map[string]any, error) {
	cols := make(map[string]any)
	slots := make(map[string]bool)
	customTouched := false

	for _, name := range touched {
		f, ok := m.Field(name)
		if !ok {
			return nil, &reconcile.ValidationError{Type: m.TypeName(), Field: name, Reason: "unknown field"}
		}
		switch f.Kind {
		case Scalar:
			cols[f.Column] = f.Type.Normalize(values[name])
		case ForeignKey:
			slot, _ := f.Slot()
			slots[slot] = true
		case Custom:
			customTouched = true
		}
	}

	for _, slot := range m.SlotNames() {
		if !slots[slot] {
			continue
		}
		fields := m.Slot(slot)
		lookup := make(map[string]any, len(fields))
		for _, f := range fields {
			_, path := f.Slot()
			lookup[path] = values[f.Name]
		}
		head := fields[0]
		if allNil(lookup) {
			cols[head.Column] = nil
			if head.TypeColumn != "" {
				cols[head.TypeColumn] = nil
			}
			continue
		}
		relatedType := head.Related
		if relatedType == "" {
			relatedType = utils.ToString(lookup[ModelKey])
			delete(lookup, ModelKey)
			cols[head.TypeColumn] = relatedType
		}
		rm, ok := c.registry.Model(relatedType)
		if !ok {
			return nil, &reconcile.ValidationError{Type: m.TypeName(), Field: slot, Reason: fmt.Sprintf("related type %q is not bound", relatedType)}
		}
		rpk, err := c.resolve(ctx, tx, rm, lookup, refs, m.TypeName(), slot)
		if err != nil {
			return nil, err
		}
		cols[head.Column] = rpk
	}

	if customTouched {
		merged := make(map[string]any, len(bag))
		for k, v := range bag {
			merged[k] = v
		}
		for _, name := range touched {
			f, _ := m.Field(name)
			if f.Kind != Custom {
				continue
			}
			if v := values[name]; v != nil {
				merged[f.Key] = v
			} else {
				delete(merged, f.Key)
			}
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("failed to encode custom fields of %s: %w", m.TypeName(), err)
		}
		cols[m.CustomColumn] = string(raw)
	}
	return cols, nil
}

// relations writes the many-to-many and association fields among touched.
func (c *CRUD) relations(ctx context.Context, tx *gorm.DB, m *Model, pk string, values map[string]any, touched []string, refs *reconcile.RefTable) error {
	for _, name := range touched {
		f, _ := m.Field(name)
		switch f.Kind {
		case ManyToMany:
			if err := c.replaceJoin(ctx, tx, m, f, pk, values[name], refs); err != nil {
				return err
			}
		case Association:
			if err := c.writeAssociation(ctx, tx, m, f, pk, values[name], refs); err != nil {
				return err
			}
		}
	}
	return nil
}

// replaceJoin leaves exactly the given related objects in the join table.
func (c *CRUD) replaceJoin(ctx context.Context, tx *gorm.DB, m *Model, f *Field, pk string, value any, refs *reconcile.RefTable) error {
	desired, err := c.resolveList(ctx, tx, m, f, value, refs)
	if err != nil {
		return err
	}

	var current []string
	err = tx.Table(f.JoinTable).
		Where(clause.Eq{Column: clause.Column{Name: f.OwnerColumn}, Value: pk}).
		Pluck(f.RelatedColumn, &current).Error
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.JoinTable, err)
	}

	have := make(map[string]bool, len(current))
	for _, rpk := range current {
		have[rpk] = true
		if !desired.has(rpk) {
			res := tx.Exec("DELETE FROM ? WHERE ? = ? AND ? = ?",
				clause.Table{Name: f.JoinTable},
				clause.Column{Name: f.OwnerColumn}, pk,
				clause.Column{Name: f.RelatedColumn}, rpk)
			if res.Error != nil {
				return fmt.Errorf("failed to unlink %s from %s: %w", rpk, f.JoinTable, res.Error)
			}
		}
	}
	for _, rpk := range desired.order {
		if have[rpk] {
			continue
		}
		row := map[string]any{f.OwnerColumn: pk, f.RelatedColumn: rpk}
		if err := tx.Table(f.JoinTable).Create(row).Error; err != nil {
			return fmt.Errorf("failed to link %s in %s: %w", rpk, f.JoinTable, err)
		}
	}
	return nil
}

// writeAssociation updates or creates the association rows of one field.
func (c *CRUD) writeAssociation(ctx context.Context, tx *gorm.DB, m *Model, f *Field, pk string, value any, refs *reconcile.RefTable) error {
	ownType, ownID, peerType, _ := f.ends()
	var rows []RelationshipAssociation
	err := tx.Where(map[string]any{
		"relationship": f.Relationship,
		ownType:        m.TypeName(),
		ownID:          pk,
		peerType:       f.Related,
	}).Order("id").Find(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", AssociationTable, err)
	}

	if !f.Many {
		if len(rows) > 1 {
			return &reconcile.AssociationError{Type: m.TypeName(), Field: f.Name, Relationship: f.Relationship, Rows: len(rows)}
		}
		if value == nil {
			return deleteAssociations(tx, rows)
		}
		lookup, ok := value.(map[string]any)
		if !ok {
			return &reconcile.ValidationError{Type: m.TypeName(), Field: f.Name, Reason: fmt.Sprintf("association value must be an identifying dict, got %T", value)}
		}
		rm, _ := c.registry.Model(f.Related)
		ppk, err := c.resolve(ctx, tx, rm, lookup, refs, m.TypeName(), f.Name)
		if err != nil {
			return err
		}
		if len(rows) == 1 {
			row := rows[0]
			if peerOf(f, row) == ppk {
				return nil
			}
			setPeer(f, &row, ppk)
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("failed to update association %s: %w", row.ID, err)
			}
			return nil
		}
		row := newAssociation(m, f, pk, ppk)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create association: %w", err)
		}
		return nil
	}

	desired, err := c.resolveList(ctx, tx, m, f, value, refs)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(rows))
	var stale []RelationshipAssociation
	for _, row := range rows {
		peer := peerOf(f, row)
		if desired.has(peer) && !have[peer] {
			have[peer] = true
			continue
		}
		stale = append(stale, row)
	}
	if err := deleteAssociations(tx, stale); err != nil {
		return err
	}
	for _, ppk := range desired.order {
		if have[ppk] {
			continue
		}
		row := newAssociation(m, f, pk, ppk)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create association: %w", err)
		}
	}
	return nil
}

type keySet struct {
	order []string
	set   map[string]bool
}

func (k *keySet) has(pk string) bool { return k.set[pk] }

// resolveList resolves a list of identifying dicts, each to exactly one related key.
func (c *CRUD) resolveList(ctx context.Context, tx *gorm.DB, m *Model, f *Field, value any, refs *reconcile.RefTable) (*keySet, error) {
	out := &keySet{set: make(map[string]bool)}
	if value == nil {
		return out, nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil, &reconcile.ValidationError{Type: m.TypeName(), Field: f.Name, Reason: fmt.Sprintf("value must be a list of identifying dicts, got %T", value)}
	}
	rm, _ := c.registry.Model(f.Related)
	for _, item := range list {
		lookup, ok := item.(map[string]any)
		if !ok {
			return nil, &reconcile.ValidationError{Type: m.TypeName(), Field: f.Name, Reason: fmt.Sprintf("list item must be an identifying dict, got %T", item)}
		}
		rpk, err := c.resolve(ctx, tx, rm, lookup, refs, m.TypeName(), f.Name)
		if err != nil {
			return nil, err
		}
		if !out.set[rpk] {
			out.set[rpk] = true
			out.order = append(out.order, rpk)
		}
	}
	return out, nil
}

// resolve finds the primary key of the single m row matching lookup. Lookup keys are
// fields of m; foreign-key fields are resolved recursively on their related model.
// Records created earlier in the run are found through refs without a query.
func (c *CRUD) resolve(ctx context.Context, tx *gorm.DB, m *Model, lookup map[string]any, refs *reconcile.RefTable, owner, field string) (string, error) {
	if len(lookup) == 0 {
		return "", &reconcile.ValidationError{Type: owner, Field: field, Reason: "empty lookup for " + m.TypeName()}
	}
	if ref, ok := fromRefs(m, lookup, refs); ok {
		return ref, nil
	}

	var conds []clause.Expression
	slots := make(map[string]map[string]any)
	for key, v := range lookup {
		f, ok := m.Field(key)
		if !ok {
			return "", &reconcile.ValidationError{Type: owner, Field: field, Reason: fmt.Sprintf("%s has no field %q", m.TypeName(), key)}
		}
		switch f.Kind {
		case Scalar:
			if v != nil {
				v = f.Type.Normalize(v)
			}
			conds = append(conds, clause.Eq{Column: clause.Column{Name: f.Column}, Value: v})
		case ForeignKey:
			slot, path := f.Slot()
			if slots[slot] == nil {
				slots[slot] = make(map[string]any)
			}
			slots[slot][path] = v
		default:
			return "", &reconcile.ValidationError{Type: owner, Field: field, Reason: fmt.Sprintf("%s.%s cannot be used in a lookup", m.TypeName(), key)}
		}
	}

	for slot, sub := range slots {
		head := m.Slot(slot)[0]
		relatedType := head.Related
		if relatedType == "" {
			relatedType = utils.ToString(sub[ModelKey])
			delete(sub, ModelKey)
			conds = append(conds, clause.Eq{Column: clause.Column{Name: head.TypeColumn}, Value: relatedType})
		}
		if allNil(sub) {
			conds = append(conds, clause.Eq{Column: clause.Column{Name: head.Column}, Value: nil})
			continue
		}
		rm, ok := c.registry.Model(relatedType)
		if !ok {
			return "", &reconcile.ValidationError{Type: owner, Field: field, Reason: fmt.Sprintf("related type %q is not bound", relatedType)}
		}
		rpk, err := c.resolve(ctx, tx, rm, sub, refs, owner, field)
		if err != nil {
			return "", err
		}
		conds = append(conds, clause.Eq{Column: clause.Column{Name: head.Column}, Value: rpk})
	}

	var pks []string
	err := tx.WithContext(ctx).Table(m.Table).Clauses(clause.Where{Exprs: conds}).Limit(2).Pluck(m.PK, &pks).Error
	if err != nil {
		return "", fmt.Errorf("failed to look up %s: %w", m.TypeName(), err)
	}
	if len(pks) != 1 {
		return "", &reconcile.ReferenceError{Type: owner, Field: field, Related: m.TypeName(), Lookup: lookup, Matches: len(pks)}
	}
	return pks[0], nil
}

func (c *CRUD) currentBag(tx *gorm.DB, m *Model, pk string) (map[string]any, error) {
	row := map[string]any{}
	err := tx.Table(m.Table).Select(m.CustomColumn).Where(clause.Eq{Column: clause.Column{Name: m.PK}, Value: pk}).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &reconcile.RecordNotFoundError{Type: m.TypeName(), UniqueID: pk}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read custom fields of %s %s: %w", m.Table, pk, err)
	}
	return customBag(row[m.CustomColumn])
}

// fromRefs checks the run's RefTable when lookup holds exactly the identifiers of m.
func fromRefs(m *Model, lookup map[string]any, refs *reconcile.RefTable) (string, bool) {
	if refs == nil || len(lookup) != len(m.Schema.Identifiers) {
		return "", false
	}
	uid, err := reconcile.UniqueIDFor(m.Schema, lookup)
	if err != nil {
		return "", false
	}
	ref, ok := refs.Lookup(m.TypeName(), uid)
	if !ok {
		return "", false
	}
	return utils.ToString(ref), true
}

func recordValues(rec *reconcile.Record) map[string]any {
	values := rec.Identifiers()
	for k, v := range rec.Attrs() {
		values[k] = v
	}
	return values
}

func fieldNames(m *Model) []string {
	out := make([]string, len(m.Fields))
	for i := range m.Fields {
		out[i] = m.Fields[i].Name
	}
	return out
}

func touchesKind(m *Model, names []string, kind Kind) bool {
	for _, name := range names {
		if f, ok := m.Field(name); ok && f.Kind == kind {
			return true
		}
	}
	return false
}

func allNil(m map[string]any) bool {
	for _, v := range m {
		if v != nil {
			return false
		}
	}
	return true
}

func deleteWhere(tx *gorm.DB, table, column, value string) error {
	res := tx.Exec("DELETE FROM ? WHERE ? = ?", clause.Table{Name: table}, clause.Column{Name: column}, value)
	if res.Error != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, res.Error)
	}
	return nil
}

func deleteAssociations(tx *gorm.DB, rows []RelationshipAssociation) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	if err := tx.Where("id IN ?", ids).Delete(&RelationshipAssociation{}).Error; err != nil {
		return fmt.Errorf("failed to delete associations: %w", err)
	}
	return nil
}

func newAssociation(m *Model, f *Field, pk, peer string) RelationshipAssociation {
	row := RelationshipAssociation{ID: uuid.NewString(), Relationship: f.Relationship}
	if f.Side == SideDestination {
		row.SourceType, row.SourceID = f.Related, peer
		row.DestinationType, row.DestinationID = m.TypeName(), pk
	} else {
		row.SourceType, row.SourceID = m.TypeName(), pk
		row.DestinationType, row.DestinationID = f.Related, peer
	}
	return row
}

func peerOf(f *Field, row RelationshipAssociation) string {
	if f.Side == SideDestination {
		return row.SourceID
	}
	return row.DestinationID
}

func setPeer(f *Field, row *RelationshipAssociation, peer string) {
	if f.Side == SideDestination {
		row.SourceID = peer
	} else {
		row.DestinationID = peer
	}
}
