package inventory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"inventory-sync/core/reconcile"
	"inventory-sync/core/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func loadSnapshot(t *testing.T, location string) *SnapshotAdapter {
	t.Helper()
	a := NewSnapshotAdapter(location, newRegistry(t), nil, nil)
	require.NoError(t, a.Load(context.Background()))
	return a
}

func TestSnapshotAdapter_LoadYAML(t *testing.T) {
	a := loadSnapshot(t, "testdata/inventory.yaml")
	store := a.Store()

	counts := map[string]int{
		TypeTenant: 1, TypeTag: 2, TypeLocation: 1, TypeNamespace: 1,
		TypeDevice: 2, TypeInterface: 2, TypePrefix: 1, TypeIPAddress: 2,
	}
	for typeName, want := range counts {
		assert.Equal(t, want, store.Count(typeName), typeName)
	}

	fw, err := store.GetByID(TypeDevice, "edge-fw")
	require.NoError(t, err)
	tags, _ := fw.Get("tags")
	assert.Equal(t, []any{map[string]any{"name": "core"}, map[string]any{"name": "edge"}}, tags)
	serial, _ := fw.Get("serial")
	assert.Equal(t, "4711", serial)
	assert.ElementsMatch(t, []string{"mgmt0__edge-fw", "eth0__edge-fw"}, fw.Children(TypeInterface))

	mgmt, err := store.GetByID(TypeInterface, "mgmt0__edge-fw")
	require.NoError(t, err)
	mtu, _ := mgmt.Get("mtu")
	enabled, _ := mgmt.Get("enabled")
	assert.Equal(t, int64(1500), mtu)
	assert.Equal(t, true, enabled)

	eth, err := store.GetByID(TypeInterface, "eth0__edge-fw")
	require.NoError(t, err)
	mtu, _ = eth.Get("mtu")
	assert.Nil(t, mtu)

	_, err = store.GetByID(TypePrefix, "10.0.0.0/24__global")
	assert.NoError(t, err, "prefix is masked to its network")

	ip, err := store.GetByID(TypeIPAddress, "10.0.0.1/24__global")
	require.NoError(t, err)
	iface, _ := ip.Get("interface")
	assert.Equal(t, map[string]any{"name": "mgmt0", "device__name": "edge-fw"}, iface)

	bare, err := store.GetByID(TypeIPAddress, "10.0.0.2/32__global")
	require.NoError(t, err, "bare address gets a host mask")
	iface, _ = bare.Get("interface")
	assert.Nil(t, iface)
}

func TestSnapshotAdapter_LoadJSON(t *testing.T) {
	a := loadSnapshot(t, "testdata/inventory.json")
	store := a.Store()

	mgmt, err := store.GetByID(TypeInterface, "mgmt0__edge-fw")
	require.NoError(t, err)
	mtu, _ := mgmt.Get("mtu")
	assert.Equal(t, int64(9000), mtu)

	_, err = store.GetByID(TypePrefix, "2001:db8::/64__global")
	assert.NoError(t, err)
}

func TestSnapshotAdapter_Duplicates(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	path := writeSnapshot(t, "dup.yaml", `
tenant:
  - name: acme
  - name: initech
location:
  - name: dc1
    tenant__name: acme
  - name: dc1
    tenant__name: initech
`)
	a := NewSnapshotAdapter(path, newRegistry(t), nil, zap.New(core))
	require.NoError(t, a.Load(context.Background()))

	assert.Equal(t, 1, a.Store().Count(TypeLocation))
	dc1, err := a.Store().GetByID(TypeLocation, "dc1")
	require.NoError(t, err)
	tenant, _ := dc1.Get("tenant__name")
	assert.Equal(t, "acme", tenant, "first occurrence is kept")
	assert.Equal(t, 1, logs.FilterMessage("Duplicate record skipped, keeping first").Len())
}

func TestSnapshotAdapter_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"UnknownType", "router:\n  - name: r1\n", ""},
		{"UnknownField", "tenant:\n  - name: acme\n    color: red\n", "color"},
		{"InvalidPrefix", "namespace:\n  - name: g\nprefix:\n  - prefix: 10.0.0.0/33\n    namespace__name: g\n", "prefix"},
		{"InvalidAddress", "ip_address:\n  - address: not-an-ip\n    namespace__name: g\n", "address"},
		{"ParentMismatch", "device:\n  - name: fw\n    interface:\n      - name: eth0\n        device__name: other\n", "device__name"},
		{"NotAList", "tenant:\n  name: acme\n", ""},
		{"UnexpectedKey", "device:\n  - name: fw\n    tags:\n      - {label: core}\n", "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSnapshot(t, "bad.yaml", tt.content)
			err := NewSnapshotAdapter(path, newRegistry(t), nil, nil).Load(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, reconcile.ErrValidation)

			var verr *reconcile.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSnapshotAdapter_SkipsRecordWithoutIdentity(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	path := writeSnapshot(t, "partial.yaml", `
tenant:
  - name: acme
  - {}
device:
  - status: active
    interface:
      - name: eth0
  - name: edge-fw
`)
	a := NewSnapshotAdapter(path, newRegistry(t), nil, zap.New(core))
	require.NoError(t, a.Load(context.Background()))

	assert.Equal(t, 1, a.Store().Count(TypeTenant))
	assert.Equal(t, 1, a.Store().Count(TypeDevice))
	assert.Equal(t, 0, a.Store().Count(TypeInterface), "children of a skipped record are skipped with it")

	skipped := logs.FilterMessage("Skipping snapshot record without identity").All()
	require.Len(t, skipped, 2)
	assert.Equal(t, TypeTenant, skipped[0].ContextMap()["type"])
	assert.Equal(t, TypeDevice, skipped[1].ContextMap()["type"])
}

func TestSnapshotAdapter_ObjectStorage(t *testing.T) {
	client := new(mocks.Client)
	client.On("GetObject", mock.Anything, "snapshots", "site.yaml", mock.Anything).
		Return(io.NopCloser(strings.NewReader("tenant:\n  - name: acme\n")), nil)

	a := NewSnapshotAdapter("s3://snapshots/site.yaml", newRegistry(t), client, nil)
	require.NoError(t, a.Load(context.Background()))
	assert.Equal(t, 1, a.Store().Count(TypeTenant))
	client.AssertExpectations(t)
}

func TestSnapshotAdapter_ReadErrors(t *testing.T) {
	reg := newRegistry(t)

	err := NewSnapshotAdapter("s3://snapshots/site.yaml", reg, nil, nil).Load(context.Background())
	assert.ErrorContains(t, err, "object storage is not configured")

	err = NewSnapshotAdapter("testdata/missing.yaml", reg, nil, nil).Load(context.Background())
	assert.ErrorContains(t, err, "read snapshot")

	err = NewSnapshotAdapter(writeSnapshot(t, "inv.toml", "x = 1"), reg, nil, nil).Load(context.Background())
	assert.ErrorContains(t, err, "unsupported extension")
}

func TestCanonicalAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"10.0.0.1/24", "10.0.0.1/24"},
		{" 10.0.0.1 ", "10.0.0.1/32"},
		{"2001:DB8::1", "2001:db8::1/128"},
		{"2001:db8:0:0::1/64", "2001:db8::1/64"},
	}
	for _, tt := range tests {
		got, err := canonicalAddress(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
