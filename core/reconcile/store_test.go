package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStore_AddRejectsDuplicates(t *testing.T) {
	s := NewStore(testRegistry(t))
	require.NoError(t, addDevice(s, "edge", map[string]any{"role": "core"}))

	err := addDevice(s, "edge", map[string]any{"role": "leaf"})
	var dup *DuplicateRecordError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "edge", dup.UniqueID)

	rec, err := s.GetByID("device", "edge")
	require.NoError(t, err)
	assert.Equal(t, "core", rec.Attrs()["role"], "first record must be kept")
}

func TestStore_AddLenient(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)
	s := NewStore(testRegistry(t))

	first, _ := NewRecord(deviceSchema, map[string]any{"name": "edge"}, map[string]any{"role": "core"})
	second, _ := NewRecord(deviceSchema, map[string]any{"name": "edge"}, map[string]any{"role": "leaf"})

	added, err := s.AddLenient(first, logger)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddLenient(second, logger)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, logs.FilterMessage("Duplicate record skipped, keeping first").Len())
	assert.Equal(t, 1, s.Count("device"))
}

func TestStore_Lookups(t *testing.T) {
	s := NewStore(testRegistry(t))
	require.NoError(t, addPrefix(s, "10.1.1.0/24", "Global", "A"))
	require.NoError(t, addPrefix(s, "10.0.0.0/8", "Global", "A"))

	rec, err := s.Get("prefix", map[string]any{"prefix": "10.1.1.0/24", "namespace": "Global"})
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.0/24__Global", rec.UniqueID())

	_, err = s.GetByID("prefix", "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	all := s.GetAll("prefix")
	require.Len(t, all, 2)
	assert.Equal(t, "10.1.1.0/24__Global", all[0].UniqueID())
	assert.Equal(t, "10.0.0.0/8__Global", all[1].UniqueID())
	assert.Nil(t, s.GetAll("device"))
}

func TestStore_GetOrInstantiate(t *testing.T) {
	s := NewStore(testRegistry(t))
	ids := map[string]any{"prefix": "10.1.1.0/24", "namespace": "Global"}

	rec, created, err := s.GetOrInstantiate("prefix", ids, map[string]any{"tenant": "A"})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := s.GetOrInstantiate("prefix", ids, map[string]any{"tenant": "B"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, rec, again)
	assert.Equal(t, "A", again.Attrs()["tenant"])
}

func TestStore_UpdateAndRemove(t *testing.T) {
	s := NewStore(testRegistry(t))
	require.NoError(t, addDevice(s, "edge", nil, "mgmt0", "eth0"))

	_, err := s.Update("device", "edge", map[string]any{"role": "spine"})
	require.NoError(t, err)
	dev, _ := s.GetByID("device", "edge")
	assert.Equal(t, "spine", dev.Attrs()["role"])

	require.NoError(t, s.Remove("interface", "mgmt0__edge"))
	assert.Equal(t, []string{"eth0__edge"}, dev.Children("interface"))
	assert.Equal(t, 1, s.Count("interface"))

	assert.ErrorIs(t, s.Remove("interface", "mgmt0__edge"), ErrRecordNotFound)
}

func TestStore_LinkChildWithoutParent(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := NewStore(testRegistry(t))

	orphan, err := NewRecord(interfaceSchema, map[string]any{"name": "mgmt0", "device": "ghost"}, nil)
	require.NoError(t, err)

	added, err := s.LinkChild(orphan, zap.New(core))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 0, s.Count("interface"))
	assert.Equal(t, 1, logs.FilterMessage("Parent not loaded, skipping child record").Len())
}

func TestStore_Dump(t *testing.T) {
	s := NewStore(testRegistry(t))
	require.NoError(t, addPrefix(s, "10.1.1.0/24", "Global", "A"))

	assert.Equal(t, map[string]map[string]map[string]any{
		"prefix": {
			"10.1.1.0/24__Global": {"prefix": "10.1.1.0/24", "namespace": "Global", "tenant": "A"},
		},
	}, s.Dump())
}
