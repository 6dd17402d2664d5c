package binding

import (
	"fmt"
	"strings"

	"inventory-sync/core/reconcile"
	"inventory-sync/core/utils"
)

// Kind selects how a record field maps onto the database.
type Kind int

const (
	// Scalar maps a field to a column of the model's own table.
	Scalar Kind = iota
	// ForeignKey maps a "<slot>__<path>" field onto a related row through a key column.
	ForeignKey
	// ManyToMany maps a list of identifying dicts onto a join table.
	ManyToMany
	// Custom maps a field onto a key of the model's JSON custom field column.
	Custom
	// Association maps a field onto rows of the relationship association table.
	Association
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case ForeignKey:
		return "foreign-key"
	case ManyToMany:
		return "many-to-many"
	case Custom:
		return "custom"
	case Association:
		return "association"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ValueType drives normalization of values read back from the database.
type ValueType int

const (
	String ValueType = iota
	Int
	Bool
	Float
)

// Normalize converts a driver value to the canonical Go type of t. nil stays nil.
func (t ValueType) Normalize(v any) any {
	if v == nil {
		return nil
	}
	switch t {
	case Int:
		return utils.ToInt64(v)
	case Bool:
		return utils.ToBool(v)
	case Float:
		return utils.ToFloat(v)
	default:
		return utils.ToString(v)
	}
}

// Side is the end of an association the model sits on.
type Side int

const (
	SideSource Side = iota
	SideDestination
)

// ModelKey is the foreign-key path element naming the related type of a polymorphic slot.
const ModelKey = "_model"

// Field describes how one record field is read and written.
type Field struct {
	// Name is the record field name, e.g. "status" or "location__name".
	Name string
	Kind Kind
	// Type normalizes scalar and custom values on read.
	Type ValueType

	// Column is the table column for Scalar fields (defaults to Name), or the local
	// key column holding the related primary key for ForeignKey fields.
	Column string
	// TypeColumn stores the related type name of a polymorphic ForeignKey slot.
	TypeColumn string

	// Related is the related model type for ForeignKey, ManyToMany and Association
	// fields. Empty on a ForeignKey field marks a polymorphic slot.
	Related string
	// Keys are the related model fields that make up one identifying dict.
	Keys []string

	// JoinTable, OwnerColumn and RelatedColumn describe a ManyToMany join table.
	JoinTable     string
	OwnerColumn   string
	RelatedColumn string

	// Key is the custom field key (defaults to Name).
	Key string

	// Relationship is the association slug; Side is the end this model sits on.
	Relationship string
	Side         Side
	// Many marks a multi-valued association.
	Many bool
}

// Slot returns the foreign-key slot and the path evaluated on the related object.
func (f *Field) Slot() (slot, path string) {
	slot, path, _ = strings.Cut(f.Name, reconcile.IDSeparator)
	return slot, path
}

// Model binds a record schema to a table.
type Model struct {
	Schema *reconcile.Schema
	Table  string
	// PK is the primary key column (defaults to "id"). Keys are generated UUID strings.
	PK string
	// CustomColumn holds the JSON custom field bag (defaults to "custom_field_data").
	CustomColumn string
	Fields       []Field

	fields map[string]*Field
	slots  map[string][]*Field
}

// TypeName returns the bound record type.
func (m *Model) TypeName() string { return m.Schema.TypeName }

// Field returns the descriptor of a record field.
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.fields[name]
	return f, ok
}

// Slot returns the fields of one foreign-key slot.
func (m *Model) Slot(slot string) []*Field {
	return m.slots[slot]
}

// SlotNames returns the foreign-key slots in declaration order.
func (m *Model) SlotNames() []string {
	var out []string
	seen := make(map[string]bool)
	for i := range m.Fields {
		f := &m.Fields[i]
		if f.Kind != ForeignKey {
			continue
		}
		slot, _ := f.Slot()
		if !seen[slot] {
			seen[slot] = true
			out = append(out, slot)
		}
	}
	return out
}

// hasCustom reports whether any field lives in the custom field bag.
func (m *Model) hasCustom() bool {
	for i := range m.Fields {
		if m.Fields[i].Kind == Custom {
			return true
		}
	}
	return false
}

// Registry holds the bound models, in declaration order.
type Registry struct {
	order  []string
	models map[string]*Model
	schema *reconcile.Registry
}

// NewRegistry validates every descriptor once and indexes the models by type name.
func NewRegistry(models ...*Model) (*Registry, error) {
	r := &Registry{models: make(map[string]*Model, len(models))}
	schemas := make([]*reconcile.Schema, 0, len(models))

	for _, m := range models {
		if m == nil || m.Schema == nil {
			return nil, &reconcile.ValidationError{Type: "model", Reason: "schema is required"}
		}
		name := m.TypeName()
		if m.Table == "" {
			return nil, &reconcile.ValidationError{Type: name, Reason: "table is required"}
		}
		if _, exists := r.models[name]; exists {
			return nil, &reconcile.ValidationError{Type: name, Reason: "model declared twice"}
		}
		if m.PK == "" {
			m.PK = "id"
		}
		if m.CustomColumn == "" {
			m.CustomColumn = "custom_field_data"
		}
		if err := m.index(); err != nil {
			return nil, err
		}
		r.models[name] = m
		r.order = append(r.order, name)
		schemas = append(schemas, m.Schema)
	}

	for _, name := range r.order {
		if err := r.validateRelations(r.models[name]); err != nil {
			return nil, err
		}
	}

	sr, err := reconcile.NewRegistry(schemas...)
	if err != nil {
		return nil, err
	}
	r.schema = sr
	return r, nil
}

func (m *Model) index() error {
	name := m.TypeName()
	m.fields = make(map[string]*Field, len(m.Fields))
	m.slots = make(map[string][]*Field)

	for i := range m.Fields {
		f := &m.Fields[i]
		if f.Name == "" {
			return &reconcile.ValidationError{Type: name, Reason: "field name is required"}
		}
		if _, dup := m.fields[f.Name]; dup {
			return &reconcile.ValidationError{Type: name, Field: f.Name, Reason: "field declared twice"}
		}
		invalid := func(reason string) error {
			return &reconcile.ValidationError{Type: name, Field: f.Name, Reason: reason}
		}

		switch f.Kind {
		case Scalar:
			if strings.Contains(f.Name, reconcile.IDSeparator) {
				return invalid("scalar field names cannot contain " + reconcile.IDSeparator)
			}
			if f.Column == "" {
				f.Column = f.Name
			}
		case ForeignKey:
			slot, path := f.Slot()
			if slot == "" || path == "" {
				return invalid("foreign key fields are named <slot>__<path>")
			}
			if f.Column == "" {
				return invalid("foreign key column is required")
			}
			if f.Related == "" && f.TypeColumn == "" {
				return invalid("polymorphic foreign key needs a type column")
			}
			if path == ModelKey && f.Related != "" {
				return invalid(ModelKey + " is only valid on polymorphic slots")
			}
			for _, other := range m.slots[slot] {
				if other.Column != f.Column || other.Related != f.Related || other.TypeColumn != f.TypeColumn {
					return invalid(fmt.Sprintf("inconsistent with %s in slot %s", other.Name, slot))
				}
			}
			m.slots[slot] = append(m.slots[slot], f)
		case ManyToMany:
			if f.Related == "" || len(f.Keys) == 0 {
				return invalid("many-to-many needs a related type and keys")
			}
			if f.JoinTable == "" || f.OwnerColumn == "" || f.RelatedColumn == "" {
				return invalid("many-to-many needs a join table with owner and related columns")
			}
		case Custom:
			if f.Key == "" {
				f.Key = f.Name
			}
		case Association:
			if f.Relationship == "" || f.Related == "" || len(f.Keys) == 0 {
				return invalid("association needs a relationship, a related type and keys")
			}
		default:
			return invalid("unknown field kind " + f.Kind.String())
		}
		m.fields[f.Name] = f
	}

	for slot, fields := range m.slots {
		if fields[0].Related != "" {
			continue
		}
		found := false
		for _, f := range fields {
			if _, path := f.Slot(); path == ModelKey {
				found = true
			}
		}
		if !found {
			return &reconcile.ValidationError{Type: name, Field: slot, Reason: "polymorphic slot needs a " + slot + reconcile.IDSeparator + ModelKey + " field"}
		}
	}

	for _, id := range m.Schema.Identifiers {
		if _, ok := m.fields[id]; !ok {
			return &reconcile.ValidationError{Type: name, Field: id, Reason: "identifier has no field descriptor"}
		}
	}
	for _, attr := range m.Schema.Attributes {
		if _, ok := m.fields[attr]; !ok {
			return &reconcile.ValidationError{Type: name, Field: attr, Reason: "attribute has no field descriptor"}
		}
	}
	for fname, f := range m.fields {
		if !contains(m.Schema.Identifiers, fname) && !contains(m.Schema.Attributes, fname) {
			return &reconcile.ValidationError{Type: name, Field: fname, Reason: "field is not declared by the schema"}
		}
		if (f.Kind == ManyToMany || (f.Kind == Association && f.Many)) && !contains(m.Schema.SetAttributes, fname) {
			return &reconcile.ValidationError{Type: name, Field: fname, Reason: "multi-valued fields must be set attributes"}
		}
	}
	return nil
}

func (r *Registry) validateRelations(m *Model) error {
	name := m.TypeName()
	for i := range m.Fields {
		f := &m.Fields[i]
		if f.Related == "" {
			continue
		}
		related, ok := r.models[f.Related]
		if !ok {
			return &reconcile.ValidationError{Type: name, Field: f.Name, Reason: fmt.Sprintf("related type %q is not bound", f.Related)}
		}
		var paths []string
		switch f.Kind {
		case ForeignKey:
			_, path := f.Slot()
			paths = []string{path}
		case ManyToMany, Association:
			paths = f.Keys
		}
		for _, p := range paths {
			if err := related.checkPath(p); err != nil {
				return &reconcile.ValidationError{Type: name, Field: f.Name, Reason: err.Error()}
			}
		}
	}
	return nil
}

// checkPath verifies that path names a queryable field of m. Nested foreign keys are
// resolved when the related slot is visited.
func (m *Model) checkPath(path string) error {
	f, ok := m.fields[path]
	if !ok {
		return fmt.Errorf("%s has no field %q", m.TypeName(), path)
	}
	switch f.Kind {
	case Scalar, ForeignKey:
		return nil
	default:
		return fmt.Errorf("%s.%s is a %s field and cannot identify a related object", m.TypeName(), path, f.Kind)
	}
}

// Model returns the bound model for a type.
func (r *Registry) Model(typeName string) (*Model, bool) {
	m, ok := r.models[typeName]
	return m, ok
}

// Types returns the bound type names in declaration order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Schemas returns the reconcile registry built from the bound schemas.
func (r *Registry) Schemas() *reconcile.Registry { return r.schema }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
