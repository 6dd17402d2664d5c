package reconcile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"inventory-sync/core/utils"
)

// IDSeparator joins identifier values into a record's unique id.
const IDSeparator = "__"

// RecordFlags control how the Differ treats a single record.
// They are fixed when the record is constructed.
type RecordFlags uint8

const (
	// RecordFlagIgnore excludes the record from diffing; its element is reported as skip.
	RecordFlagIgnore RecordFlags = 1 << iota
	// RecordFlagSkipUnmatchedDst keeps a target record that has no source counterpart.
	RecordFlagSkipUnmatchedDst
)

// Has reports whether all bits of f are set.
func (r RecordFlags) Has(f RecordFlags) bool { return r&f == f }

// Schema declares the shape of one record type.
type Schema struct {
	// TypeName identifies the record type, e.g. "device".
	TypeName string
	// Identifiers are the natural-key fields, in unique id order.
	Identifiers []string
	// Attributes are the non-identifying fields compared by the Differ.
	Attributes []string
	// Children maps a child type name to the field holding those children.
	Children map[string]string
	// ParentFields maps a field of this (child) type to the parent identifier it mirrors.
	// The parent type is the one declaring this type in its Children.
	ParentFields map[string]string
	// References maps an attribute to the record type it points at.
	References map[string]string
	// SetAttributes are list-valued attributes compared as sets.
	SetAttributes []string
	// Flags are applied to every record of this type.
	Flags RecordFlags
}

func (s *Schema) isIdentifier(field string) bool {
	for _, id := range s.Identifiers {
		if id == field {
			return true
		}
	}
	return false
}

func (s *Schema) isAttribute(field string) bool {
	for _, a := range s.Attributes {
		if a == field {
			return true
		}
	}
	return false
}

func (s *Schema) isSet(field string) bool {
	for _, a := range s.SetAttributes {
		if a == field {
			return true
		}
	}
	return false
}

// Registry holds the schemas of one adapter, in declaration order.
type Registry struct {
	order   []string
	schemas map[string]*Schema
	parents map[string]string
}

// NewRegistry validates the schemas and indexes them by type name.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	r := &Registry{
		schemas: make(map[string]*Schema, len(schemas)),
		parents: make(map[string]string),
	}
	for _, s := range schemas {
		if s == nil || s.TypeName == "" {
			return nil, &ValidationError{Type: "schema", Reason: "type name is required"}
		}
		if _, exists := r.schemas[s.TypeName]; exists {
			return nil, &ValidationError{Type: s.TypeName, Reason: "schema declared twice"}
		}
		if len(s.Identifiers) == 0 {
			return nil, &ValidationError{Type: s.TypeName, Reason: "at least one identifier is required"}
		}
		for _, attr := range s.Attributes {
			if s.isIdentifier(attr) {
				return nil, &ValidationError{Type: s.TypeName, Field: attr, Reason: "field is both identifier and attribute"}
			}
		}
		for _, set := range s.SetAttributes {
			if !s.isAttribute(set) {
				return nil, &ValidationError{Type: s.TypeName, Field: set, Reason: "set attribute is not a declared attribute"}
			}
		}
		r.schemas[s.TypeName] = s
		r.order = append(r.order, s.TypeName)
	}

	for _, name := range r.order {
		s := r.schemas[name]
		for child := range s.Children {
			if _, ok := r.schemas[child]; !ok {
				return nil, &ValidationError{Type: name, Field: child, Reason: "child type is not registered"}
			}
			if prev, ok := r.parents[child]; ok && prev != name {
				return nil, &ValidationError{Type: child, Reason: fmt.Sprintf("declared as child of both %s and %s", prev, name)}
			}
			r.parents[child] = name
		}
		for attr, target := range s.References {
			if !s.isAttribute(attr) && !s.isIdentifier(attr) {
				return nil, &ValidationError{Type: name, Field: attr, Reason: "reference field is not declared"}
			}
			if _, ok := r.schemas[target]; !ok {
				return nil, &ValidationError{Type: name, Field: attr, Reason: fmt.Sprintf("reference points at unknown type %q", target)}
			}
		}
	}

	for _, name := range r.order {
		s := r.schemas[name]
		if len(s.ParentFields) == 0 {
			continue
		}
		parent, ok := r.parents[name]
		if !ok {
			return nil, &ValidationError{Type: name, Reason: "parent fields declared but no type lists it as a child"}
		}
		ps := r.schemas[parent]
		for field, parentField := range s.ParentFields {
			if !s.isIdentifier(field) && !s.isAttribute(field) {
				return nil, &ValidationError{Type: name, Field: field, Reason: "parent field is not declared"}
			}
			if !ps.isIdentifier(parentField) {
				return nil, &ValidationError{Type: name, Field: field, Reason: fmt.Sprintf("%s has no identifier %q", parent, parentField)}
			}
		}
	}
	return r, nil
}

// Schema returns the schema for a type name.
func (r *Registry) Schema(typeName string) (*Schema, bool) {
	s, ok := r.schemas[typeName]
	return s, ok
}

// Types returns all registered type names in declaration order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Parent returns the type that declares typeName as a child.
func (r *Registry) Parent(typeName string) (string, bool) {
	p, ok := r.parents[typeName]
	return p, ok
}

// Record is one identified, typed unit of data.
type Record struct {
	schema   *Schema
	ids      map[string]any
	attrs    map[string]any
	children map[string][]string
	ref      any
	flags    RecordFlags
}

// NewRecord builds a record, validating identifiers and attributes against the schema.
func NewRecord(schema *Schema, ids, attrs map[string]any) (*Record, error) {
	return NewRecordWithFlags(schema, ids, attrs, schema.Flags)
}

// NewRecordWithFlags is NewRecord with explicit per-record flags.
func NewRecordWithFlags(schema *Schema, ids, attrs map[string]any, flags RecordFlags) (*Record, error) {
	if schema == nil {
		return nil, &ValidationError{Type: "record", Reason: "schema is required"}
	}
	r := &Record{
		schema:   schema,
		ids:      make(map[string]any, len(schema.Identifiers)),
		attrs:    make(map[string]any, len(schema.Attributes)),
		children: make(map[string][]string),
		flags:    flags,
	}

	for key := range ids {
		if !schema.isIdentifier(key) {
			return nil, &ValidationError{Type: schema.TypeName, Field: key, Reason: "unknown identifier", Fields: ids}
		}
	}
	for _, key := range schema.Identifiers {
		raw, ok := ids[key]
		if !ok || raw == nil {
			return nil, &ValidationError{Type: schema.TypeName, Field: key, Reason: "identifier is required", Fields: ids, Err: ErrMissingIdentifier}
		}
		v, err := normalizeValue(raw)
		if err != nil {
			return nil, &ValidationError{Type: schema.TypeName, Field: key, Reason: err.Error(), Fields: ids}
		}
		if !isPrimitive(v) {
			return nil, &ValidationError{Type: schema.TypeName, Field: key, Reason: fmt.Sprintf("identifier must be a primitive, got %T", raw), Fields: ids}
		}
		r.ids[key] = v
	}

	for _, key := range schema.Attributes {
		r.attrs[key] = nil
		if schema.isSet(key) {
			r.attrs[key] = []any{}
		}
	}
	if err := r.Set(attrs); err != nil {
		return nil, err
	}
	return r, nil
}

// TypeName returns the record's type.
func (r *Record) TypeName() string { return r.schema.TypeName }

// Schema returns the record's schema.
func (r *Record) Schema() *Schema { return r.schema }

// Flags returns the per-record flags.
func (r *Record) Flags() RecordFlags { return r.flags }

// Identifiers returns a copy of the identifier values.
func (r *Record) Identifiers() map[string]any {
	out := make(map[string]any, len(r.ids))
	for k, v := range r.ids {
		out[k] = v
	}
	return out
}

// Attrs returns a copy of the attribute values.
func (r *Record) Attrs() map[string]any {
	out := make(map[string]any, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}

// Get returns an identifier or attribute value.
func (r *Record) Get(field string) (any, bool) {
	if v, ok := r.ids[field]; ok {
		return v, true
	}
	v, ok := r.attrs[field]
	return v, ok
}

// UniqueID joins the identifier values in declared order.
func (r *Record) UniqueID() string {
	return uniqueID(r.schema, r.ids)
}

// Set overwrites the given attributes. Identifiers cannot be changed.
func (r *Record) Set(attrs map[string]any) error {
	normalized := make(map[string]any, len(attrs))
	for key, raw := range attrs {
		if !r.schema.isAttribute(key) {
			return &ValidationError{Type: r.schema.TypeName, Field: key, Reason: "unknown attribute", Fields: attrs}
		}
		v, err := normalizeValue(raw)
		if err != nil {
			return &ValidationError{Type: r.schema.TypeName, Field: key, Reason: err.Error(), Fields: attrs}
		}
		if r.schema.isSet(key) {
			v, err = canonicalSet(v)
			if err != nil {
				return &ValidationError{Type: r.schema.TypeName, Field: key, Reason: err.Error(), Fields: attrs}
			}
		}
		normalized[key] = v
	}
	for k, v := range normalized {
		r.attrs[k] = v
	}
	return nil
}

// AddChild appends child's unique id under its type.
func (r *Record) AddChild(child *Record) error {
	if _, ok := r.schema.Children[child.TypeName()]; !ok {
		return &InvalidChildTypeError{Parent: r.TypeName(), Child: child.TypeName()}
	}
	uid := child.UniqueID()
	for _, existing := range r.children[child.TypeName()] {
		if existing == uid {
			return &DuplicateRecordError{Type: child.TypeName(), UniqueID: uid}
		}
	}
	r.children[child.TypeName()] = append(r.children[child.TypeName()], uid)
	return nil
}

// RemoveChild drops a child id. It reports whether the id was present.
func (r *Record) RemoveChild(typeName, uid string) bool {
	list := r.children[typeName]
	for i, existing := range list {
		if existing == uid {
			r.children[typeName] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Children returns the unique ids of children of the given type, in insertion order.
func (r *Record) Children(typeName string) []string {
	list := r.children[typeName]
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// ChildTypes returns the declared child types in a stable order.
func (r *Record) ChildTypes() []string {
	types := make([]string, 0, len(r.schema.Children))
	for t := range r.schema.Children {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Ref returns the opaque backing-store identifier, if any.
func (r *Record) Ref() any { return r.ref }

// SetRef records the backing-store identifier.
func (r *Record) SetRef(ref any) { r.ref = ref }

// Clone returns a deep copy with no children.
func (r *Record) Clone() *Record {
	c := &Record{
		schema:   r.schema,
		ids:      r.Identifiers(),
		attrs:    make(map[string]any, len(r.attrs)),
		children: make(map[string][]string),
		ref:      r.ref,
		flags:    r.flags,
	}
	for k, v := range r.attrs {
		c.attrs[k] = copyValue(v)
	}
	return c
}

// String renders the record as "type:uid".
func (r *Record) String() string {
	return r.TypeName() + ":" + r.UniqueID()
}

// UniqueIDFor computes the unique id a record with these identifiers would have.
func UniqueIDFor(schema *Schema, ids map[string]any) (string, error) {
	normalized := make(map[string]any, len(schema.Identifiers))
	for _, key := range schema.Identifiers {
		raw, ok := ids[key]
		if !ok || raw == nil {
			return "", &ValidationError{Type: schema.TypeName, Field: key, Reason: "identifier is required", Fields: ids, Err: ErrMissingIdentifier}
		}
		v, err := normalizeValue(raw)
		if err != nil {
			return "", &ValidationError{Type: schema.TypeName, Field: key, Reason: err.Error(), Fields: ids}
		}
		normalized[key] = v
	}
	return uniqueID(schema, normalized), nil
}

func uniqueID(schema *Schema, ids map[string]any) string {
	parts := make([]string, len(schema.Identifiers))
	for i, key := range schema.Identifiers {
		parts[i] = utils.ToString(ids[key])
	}
	return strings.Join(parts, IDSeparator)
}

// normalizeValue maps loader output onto a small set of canonical types so that both
// sides of a diff compare with plain equality.
func normalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, int64, float64:
		return t, nil
	case int, int8, int16, int32, uint, uint8, uint16, uint32, uint64:
		return int64(utils.ToInt(t)), nil
	case float32:
		return float64(t), nil
	case []byte:
		return string(t), nil
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			n, err := normalizeValue(m)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := normalizeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			n, err := normalizeValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case string, bool, int64, float64:
		return true
	}
	return false
}

// canonicalSet sorts and de-duplicates a list value by its JSON encoding.
func canonicalSet(v any) (any, error) {
	if v == nil {
		return []any{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("set attribute must be a list, got %T", v)
	}
	type keyed struct {
		key string
		val any
	}
	seen := make(map[string]struct{}, len(list))
	items := make([]keyed, 0, len(list))
	for _, e := range list {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		k := string(b)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		items = append(items, keyed{key: k, val: e})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].key < items[j].key })
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it.val
	}
	return out, nil
}

func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
