package binding

import (
	"context"
	"testing"

	"inventory-sync/core/database"
	"inventory-sync/core/reconcile"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixtureDDL = []string{
	"CREATE TABLE tenants (id TEXT PRIMARY KEY, name TEXT NOT NULL)",
	"CREATE TABLE locations (id TEXT PRIMARY KEY, name TEXT NOT NULL, tenant_id TEXT)",
	"CREATE TABLE tags (id TEXT PRIMARY KEY, name TEXT NOT NULL)",
	"CREATE TABLE devices (id TEXT PRIMARY KEY, name TEXT NOT NULL, status TEXT, location_id TEXT, custom_field_data TEXT)",
	"CREATE TABLE device_tags (device_id TEXT NOT NULL, tag_id TEXT NOT NULL, PRIMARY KEY (device_id, tag_id))",
	"CREATE TABLE interfaces (id TEXT PRIMARY KEY, name TEXT NOT NULL, device_id TEXT NOT NULL)",
	"CREATE TABLE ip_addresses (id TEXT PRIMARY KEY, address TEXT NOT NULL)",
	"CREATE TABLE notes (id TEXT PRIMARY KEY, body TEXT NOT NULL, assigned_type TEXT, assigned_id TEXT)",
}

func fixtureModels() []*Model {
	return []*Model{
		{
			Schema: &reconcile.Schema{TypeName: "tenant", Identifiers: []string{"name"}},
			Table:  "tenants",
			Fields: []Field{{Name: "name", Kind: Scalar}},
		},
		{
			Schema: &reconcile.Schema{TypeName: "location", Identifiers: []string{"name"}, Attributes: []string{"tenant__name"}},
			Table:  "locations",
			Fields: []Field{
				{Name: "name", Kind: Scalar},
				{Name: "tenant__name", Kind: ForeignKey, Column: "tenant_id", Related: "tenant"},
			},
		},
		{
			Schema: &reconcile.Schema{TypeName: "tag", Identifiers: []string{"name"}},
			Table:  "tags",
			Fields: []Field{{Name: "name", Kind: Scalar}},
		},
		{
			Schema: &reconcile.Schema{
				TypeName:      "device",
				Identifiers:   []string{"name"},
				Attributes:    []string{"status", "location__name", "tags", "serial", "rack_units"},
				Children:      map[string]string{"interface": "interfaces"},
				SetAttributes: []string{"tags"},
			},
			Table: "devices",
			Fields: []Field{
				{Name: "name", Kind: Scalar},
				{Name: "status", Kind: Scalar},
				{Name: "location__name", Kind: ForeignKey, Column: "location_id", Related: "location"},
				{Name: "tags", Kind: ManyToMany, Related: "tag", Keys: []string{"name"}, JoinTable: "device_tags", OwnerColumn: "device_id", RelatedColumn: "tag_id"},
				{Name: "serial", Kind: Custom},
				{Name: "rack_units", Kind: Custom, Key: "u_height", Type: Int},
			},
		},
		{
			Schema: &reconcile.Schema{
				TypeName:     "interface",
				Identifiers:  []string{"name", "device__name"},
				ParentFields: map[string]string{"device__name": "name"},
			},
			Table: "interfaces",
			Fields: []Field{
				{Name: "name", Kind: Scalar},
				{Name: "device__name", Kind: ForeignKey, Column: "device_id", Related: "device"},
			},
		},
		{
			Schema: &reconcile.Schema{TypeName: "ip_address", Identifiers: []string{"address"}, Attributes: []string{"interface"}},
			Table:  "ip_addresses",
			Fields: []Field{
				{Name: "address", Kind: Scalar},
				{Name: "interface", Kind: Association, Relationship: "interface_ip", Side: SideDestination, Related: "interface", Keys: []string{"name", "device__name"}},
			},
		},
		{
			Schema: &reconcile.Schema{TypeName: "note", Identifiers: []string{"body"}, Attributes: []string{"assigned__name", "assigned___model"}},
			Table:  "notes",
			Fields: []Field{
				{Name: "body", Kind: Scalar},
				{Name: "assigned__name", Kind: ForeignKey, Column: "assigned_id", TypeColumn: "assigned_type"},
				{Name: "assigned___model", Kind: ForeignKey, Column: "assigned_id", TypeColumn: "assigned_type"},
			},
		},
	}
}

var fixtureTopLevel = []string{"tenant", "tag", "location", "device", "ip_address", "note"}

func setupDB(t *testing.T) (*gorm.DB, *Registry) {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	for _, ddl := range fixtureDDL {
		require.NoError(t, db.Exec(ddl).Error)
	}
	require.NoError(t, db.AutoMigrate(&RelationshipAssociation{}))

	reg, err := NewRegistry(fixtureModels()...)
	require.NoError(t, err)
	return db, reg
}

// memSource is a store-only source adapter over the fixture schemas.
type memSource struct {
	store *reconcile.Store
}

func newMemSource(reg *Registry) *memSource {
	return &memSource{store: reconcile.NewStore(reg.Schemas())}
}

func (m *memSource) Name() string                   { return "memory" }
func (m *memSource) TopLevel() []string             { return fixtureTopLevel }
func (m *memSource) Store() *reconcile.Store        { return m.store }
func (m *memSource) Load(ctx context.Context) error { return nil }

func (m *memSource) add(t *testing.T, typeName string, ids, attrs map[string]any) {
	t.Helper()
	schema, ok := m.store.Registry().Schema(typeName)
	require.True(t, ok)
	rec, err := reconcile.NewRecord(schema, ids, attrs)
	require.NoError(t, err)
	if _, hasParent := m.store.Registry().Parent(typeName); hasParent {
		added, err := m.store.LinkChild(rec, nil)
		require.NoError(t, err)
		require.True(t, added)
		return
	}
	require.NoError(t, m.store.Add(rec))
}

// seedSource fills a source with one of every fixture type.
func seedSource(t *testing.T, reg *Registry) *memSource {
	src := newMemSource(reg)
	src.add(t, "tenant", map[string]any{"name": "acme"}, nil)
	src.add(t, "tag", map[string]any{"name": "a"}, nil)
	src.add(t, "tag", map[string]any{"name": "b"}, nil)
	src.add(t, "tag", map[string]any{"name": "c"}, nil)
	src.add(t, "location", map[string]any{"name": "dc1"}, map[string]any{"tenant__name": "acme"})
	src.add(t, "device", map[string]any{"name": "edge"}, map[string]any{
		"status":         "active",
		"location__name": "dc1",
		"tags":           []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}},
		"serial":         "SN1",
		"rack_units":     2,
	})
	src.add(t, "interface", map[string]any{"name": "mgmt0", "device__name": "edge"}, nil)
	src.add(t, "interface", map[string]any{"name": "eth0", "device__name": "edge"}, nil)
	src.add(t, "ip_address", map[string]any{"address": "10.0.0.1/24"}, map[string]any{
		"interface": map[string]any{"name": "mgmt0", "device__name": "edge"},
	})
	src.add(t, "note", map[string]any{"body": "rack note"}, map[string]any{"assigned__name": "dc1", "assigned___model": "location"})
	return src
}

// syncInto runs a full sync from src into a fresh database adapter.
func syncInto(t *testing.T, db *gorm.DB, reg *Registry, src reconcile.Adapter, flags reconcile.Flags) (*reconcile.Diff, *reconcile.Result, *Adapter) {
	t.Helper()
	dst := NewAdapter("database", db, reg, fixtureTopLevel, nil)
	diff, res, err := reconcile.Run(context.Background(), src, dst, flags)
	require.NoError(t, err)
	return diff, res, dst
}

func reload(t *testing.T, db *gorm.DB, reg *Registry) *Adapter {
	t.Helper()
	a := NewAdapter("database", db, reg, fixtureTopLevel, nil)
	require.NoError(t, a.Load(context.Background()))
	return a
}

func count(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Table(table).Count(&n).Error)
	return n
}
