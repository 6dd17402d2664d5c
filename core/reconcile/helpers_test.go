package reconcile

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	deviceSchema = &Schema{
		TypeName:      "device",
		Identifiers:   []string{"name"},
		Attributes:    []string{"role", "tags"},
		Children:      map[string]string{"interface": "interfaces"},
		SetAttributes: []string{"tags"},
	}
	interfaceSchema = &Schema{
		TypeName:     "interface",
		Identifiers:  []string{"name", "device"},
		ParentFields: map[string]string{"device": "name"},
	}
	prefixSchema = &Schema{
		TypeName:    "prefix",
		Identifiers: []string{"prefix", "namespace"},
		Attributes:  []string{"tenant"},
	}
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(deviceSchema, interfaceSchema, prefixSchema)
	require.NoError(t, err)
	return reg
}

// memAdapter is an in-memory adapter whose Load replays a fixed set of records.
type memAdapter struct {
	name     string
	topLevel []string
	store    *Store
	loadFunc func(s *Store) error
}

func newMemAdapter(t *testing.T, name string, load func(s *Store) error) *memAdapter {
	return &memAdapter{
		name:     name,
		topLevel: []string{"device", "prefix"},
		store:    NewStore(testRegistry(t)),
		loadFunc: load,
	}
}

func (m *memAdapter) Name() string       { return m.name }
func (m *memAdapter) TopLevel() []string { return m.topLevel }
func (m *memAdapter) Store() *Store      { return m.store }

func (m *memAdapter) Load(ctx context.Context) error {
	if m.loadFunc == nil {
		return nil
	}
	return m.loadFunc(m.store)
}

// mutatingAdapter records every write and can reject some of them.
type mutatingAdapter struct {
	*memAdapter
	calls   []string
	nextID  int
	failFor map[string]error
	// requireParent rejects creating a child whose parent ref is not resolvable.
	requireParent bool
}

func newMutatingAdapter(t *testing.T, load func(s *Store) error) *mutatingAdapter {
	return &mutatingAdapter{memAdapter: newMemAdapter(t, "target", load), failFor: map[string]error{}}
}

func (m *mutatingAdapter) Create(ctx context.Context, rec *Record, refs *RefTable) (any, error) {
	m.calls = append(m.calls, "create "+rec.String())
	if err, ok := m.failFor[rec.String()]; ok {
		return nil, err
	}
	if m.requireParent && rec.TypeName() == "interface" {
		dev, _ := rec.Get("device")
		if _, ok := refs.Lookup("device", fmt.Sprint(dev)); !ok {
			return nil, fmt.Errorf("device %v is not resolvable", dev)
		}
	}
	m.nextID++
	return m.nextID, nil
}

func (m *mutatingAdapter) Update(ctx context.Context, rec *Record, changed map[string]any, refs *RefTable) error {
	m.calls = append(m.calls, "update "+rec.String())
	if err, ok := m.failFor[rec.String()]; ok {
		return err
	}
	return nil
}

func (m *mutatingAdapter) Delete(ctx context.Context, rec *Record, refs *RefTable) error {
	m.calls = append(m.calls, "delete "+rec.String())
	if err, ok := m.failFor[rec.String()]; ok {
		return err
	}
	return nil
}

func addDevice(s *Store, name string, attrs map[string]any, interfaces ...string) error {
	schema, _ := s.Registry().Schema("device")
	dev, err := NewRecord(schema, map[string]any{"name": name}, attrs)
	if err != nil {
		return err
	}
	if err := s.Add(dev); err != nil {
		return err
	}
	ifSchema, _ := s.Registry().Schema("interface")
	for _, ifName := range interfaces {
		child, err := NewRecord(ifSchema, map[string]any{"name": ifName, "device": name}, nil)
		if err != nil {
			return err
		}
		if _, err := s.LinkChild(child, nil); err != nil {
			return err
		}
	}
	return nil
}

func addPrefix(s *Store, prefix, namespace, tenant string) error {
	schema, _ := s.Registry().Schema("prefix")
	rec, err := NewRecord(schema, map[string]any{"prefix": prefix, "namespace": namespace}, map[string]any{"tenant": tenant})
	if err != nil {
		return err
	}
	return s.Add(rec)
}
