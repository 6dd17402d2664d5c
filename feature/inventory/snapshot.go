package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path"
	"reflect"
	"sort"
	"strings"

	"inventory-sync/core/binding"
	"inventory-sync/core/reconcile"
	"inventory-sync/core/storage"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SnapshotAdapter is a read-only source adapter over an inventory document.
//
// The document maps each top-level type to a list of records. A record lists its
// fields by name; child records are nested under the child type name and inherit
// their parent fields:
//
//	device:
//	  - name: edge-fw
//	    tags: [core]
//	    interface:
//	      - name: mgmt0
type SnapshotAdapter struct {
	location string
	client   storage.Client
	registry *binding.Registry
	store    *reconcile.Store
	logger   *zap.Logger
}

// NewSnapshotAdapter creates a snapshot source. location is a file path or s3://bucket/key;
// client is only needed for the latter.
func NewSnapshotAdapter(location string, registry *binding.Registry, client storage.Client, logger *zap.Logger) *SnapshotAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotAdapter{
		location: location,
		client:   client,
		registry: registry,
		store:    reconcile.NewStore(registry.Schemas()),
		logger:   logger.With(zap.String("adapter", "snapshot"), zap.String("location", location)),
	}
}

func (a *SnapshotAdapter) Name() string { return "snapshot" }

func (a *SnapshotAdapter) TopLevel() []string { return TopLevel }

func (a *SnapshotAdapter) Store() *reconcile.Store { return a.store }

// Load reads and decodes the document, then fills the store.
func (a *SnapshotAdapter) Load(ctx context.Context) error {
	data, err := a.read(ctx)
	if err != nil {
		return err
	}
	doc, err := Decode(data, a.location)
	if err != nil {
		return err
	}
	return a.LoadDocument(doc)
}

func (a *SnapshotAdapter) read(ctx context.Context) ([]byte, error) {
	if storage.IsURI(a.location) {
		if a.client == nil {
			return nil, fmt.Errorf("snapshot %s: object storage is not configured", a.location)
		}
		bucket, key, err := storage.ParseURI(a.location)
		if err != nil {
			return nil, err
		}
		return storage.ReadObject(ctx, a.client, bucket, key)
	}
	data, err := os.ReadFile(a.location)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot document. JSON is chosen by a .json extension, YAML otherwise.
func Decode(data []byte, name string) (map[string]any, error) {
	doc := map[string]any{}
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse snapshot: %w", err)
		}
		return plainNumbers(doc).(map[string]any), nil
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse snapshot: %w", err)
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("parse snapshot: unsupported extension %q", path.Ext(name))
	}
}

// LoadDocument fills the store from a decoded document. Duplicates are logged and the
// first occurrence is kept.
func (a *SnapshotAdapter) LoadDocument(doc map[string]any) error {
	top := make(map[string]bool, len(TopLevel))
	for _, t := range TopLevel {
		top[t] = true
	}
	for key := range doc {
		if !top[key] {
			return &reconcile.ValidationError{Type: key, Reason: "not a top-level record type"}
		}
	}

	for _, typeName := range TopLevel {
		items, err := records(typeName, doc[typeName])
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := a.add(typeName, item, nil); err != nil {
				return err
			}
		}
		a.logger.Debug("Snapshot type loaded", zap.String("type", typeName), zap.Int("count", a.store.Count(typeName)))
	}
	return nil
}

func (a *SnapshotAdapter) add(typeName string, item map[string]any, parent *reconcile.Record) error {
	m, ok := a.registry.Model(typeName)
	if !ok {
		return &reconcile.ValidationError{Type: typeName, Reason: "type is not bound"}
	}
	schema := m.Schema

	ids := make(map[string]any, len(schema.Identifiers))
	attrs := make(map[string]any, len(schema.Attributes))
	nested := make(map[string]any)
	for key, raw := range item {
		if _, isChild := schema.Children[key]; isChild {
			nested[key] = raw
			continue
		}
		f, ok := m.Field(key)
		if !ok {
			return &reconcile.ValidationError{Type: typeName, Field: key, Reason: "unknown field"}
		}
		v, err := fieldValue(typeName, f, raw)
		if err != nil {
			return err
		}
		if contains(schema.Identifiers, key) {
			ids[key] = v
		} else {
			attrs[key] = v
		}
	}

	if parent != nil {
		for field, parentField := range schema.ParentFields {
			want, _ := parent.Get(parentField)
			target := attrs
			if contains(schema.Identifiers, field) {
				target = ids
			}
			if got, set := target[field]; set && !reflect.DeepEqual(got, want) {
				return &reconcile.ValidationError{Type: typeName, Field: field,
					Reason: fmt.Sprintf("nested under %s %v but names %v", parent.TypeName(), want, got)}
			}
			target[field] = want
		}
	}

	rec, err := reconcile.NewRecord(schema, ids, attrs)
	if errors.Is(err, reconcile.ErrMissingIdentifier) {
		a.logger.Warn("Skipping snapshot record without identity",
			zap.String("type", typeName),
			zap.Error(err),
		)
		return nil
	}
	if err != nil {
		return err
	}
	if parent != nil {
		_, err = a.store.LinkChild(rec, a.logger)
	} else {
		_, err = a.store.AddLenient(rec, a.logger)
	}
	if err != nil {
		return err
	}

	// Children of a duplicate attach to the record that was kept.
	kept, err := a.store.GetByID(typeName, rec.UniqueID())
	if err != nil {
		return nil
	}
	childTypes := make([]string, 0, len(nested))
	for t := range nested {
		childTypes = append(childTypes, t)
	}
	sort.Strings(childTypes)
	for _, childType := range childTypes {
		items, err := records(childType, nested[childType])
		if err != nil {
			return err
		}
		for _, child := range items {
			if err := a.add(childType, child, kept); err != nil {
				return err
			}
		}
	}
	return nil
}

// fieldValue converts a document value to the canonical value of field f.
func fieldValue(typeName string, f *binding.Field, raw any) (any, error) {
	switch f.Kind {
	case binding.Scalar, binding.Custom:
		v := f.Type.Normalize(raw)
		if s, ok := v.(string); ok {
			if canon, ok := canonicalizers[typeName][f.Name]; ok {
				c, err := canon(s)
				if err != nil {
					return nil, &reconcile.ValidationError{Type: typeName, Field: f.Name, Reason: err.Error()}
				}
				return c, nil
			}
		}
		return v, nil
	case binding.ManyToMany:
		return identifyingList(typeName, f, raw)
	case binding.Association:
		if f.Many {
			return identifyingList(typeName, f, raw)
		}
		return identifyingDict(typeName, f, raw)
	default:
		return raw, nil
	}
}

// identifyingList accepts a list of dicts, or of bare values when the related type has
// a single key.
func identifyingList(typeName string, f *binding.Field, raw any) (any, error) {
	if raw == nil {
		return []any{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &reconcile.ValidationError{Type: typeName, Field: f.Name, Reason: fmt.Sprintf("expected a list, got %T", raw)}
	}
	out := make([]any, 0, len(list))
	for _, e := range list {
		d, err := identifyingDict(typeName, f, e)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func identifyingDict(typeName string, f *binding.Field, raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		for k := range v {
			if !contains(f.Keys, k) {
				return nil, &reconcile.ValidationError{Type: typeName, Field: f.Name, Reason: fmt.Sprintf("unexpected key %q", k)}
			}
		}
		return v, nil
	default:
		if len(f.Keys) != 1 {
			return nil, &reconcile.ValidationError{Type: typeName, Field: f.Name, Reason: fmt.Sprintf("expected keys %v", f.Keys)}
		}
		return map[string]any{f.Keys[0]: v}, nil
	}
}

func records(typeName string, raw any) ([]map[string]any, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &reconcile.ValidationError{Type: typeName, Reason: fmt.Sprintf("expected a list of records, got %T", raw)}
	}
	out := make([]map[string]any, 0, len(list))
	for i, e := range list {
		item, ok := e.(map[string]any)
		if !ok {
			return nil, &reconcile.ValidationError{Type: typeName, Reason: fmt.Sprintf("entry %d is not a mapping", i)}
		}
		out = append(out, item)
	}
	return out, nil
}

// canonicalizers rewrite IP fields so that equal networks compare equal.
var canonicalizers = map[string]map[string]func(string) (string, error){
	TypePrefix:    {"prefix": canonicalNetwork},
	TypeIPAddress: {"address": canonicalAddress},
}

// canonicalNetwork masks host bits: 10.0.0.7/24 becomes 10.0.0.0/24.
func canonicalNetwork(s string) (string, error) {
	p, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid network: %w", err)
	}
	return p.Masked().String(), nil
}

// canonicalAddress keeps host bits; a bare address gets a host-length mask.
func canonicalAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return "", fmt.Errorf("invalid address: %w", err)
		}
		return netip.PrefixFrom(addr, addr.BitLen()).String(), nil
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return "", fmt.Errorf("invalid address: %w", err)
	}
	return p.String(), nil
}

// plainNumbers replaces json.Number with int64 or float64.
func plainNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = plainNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = plainNumbers(e)
		}
		return t
	default:
		return v
	}
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
