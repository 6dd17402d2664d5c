package reconcile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name    string
		schemas []*Schema
		field   string
	}{
		{
			name:    "missing identifiers",
			schemas: []*Schema{{TypeName: "tag"}},
		},
		{
			name:    "identifier also attribute",
			schemas: []*Schema{{TypeName: "tag", Identifiers: []string{"name"}, Attributes: []string{"name"}}},
			field:   "name",
		},
		{
			name:    "unknown child type",
			schemas: []*Schema{{TypeName: "device", Identifiers: []string{"name"}, Children: map[string]string{"interface": "interfaces"}}},
			field:   "interface",
		},
		{
			name: "parent field not an identifier of parent",
			schemas: []*Schema{
				{TypeName: "device", Identifiers: []string{"name"}, Children: map[string]string{"interface": "interfaces"}},
				{TypeName: "interface", Identifiers: []string{"name", "device"}, ParentFields: map[string]string{"device": "serial"}},
			},
			field: "device",
		},
		{
			name:    "duplicate schema",
			schemas: []*Schema{{TypeName: "tag", Identifiers: []string{"name"}}, {TypeName: "tag", Identifiers: []string{"name"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.schemas...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestRegistry_Parent(t *testing.T) {
	reg := testRegistry(t)

	parent, ok := reg.Parent("interface")
	assert.True(t, ok)
	assert.Equal(t, "device", parent)

	_, ok = reg.Parent("device")
	assert.False(t, ok)
	assert.Equal(t, []string{"device", "interface", "prefix"}, reg.Types())
}

func TestNewRecord(t *testing.T) {
	t.Run("unique id joins identifiers in declared order", func(t *testing.T) {
		rec, err := NewRecord(prefixSchema, map[string]any{"namespace": "Global", "prefix": "10.1.1.0/24"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "10.1.1.0/24__Global", rec.UniqueID())
		assert.Equal(t, map[string]any{"tenant": nil}, rec.Attrs())
	})

	t.Run("integer identifiers are normalized", func(t *testing.T) {
		schema := &Schema{TypeName: "vlan", Identifiers: []string{"vid", "group"}}
		rec, err := NewRecord(schema, map[string]any{"vid": 100, "group": "core"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "100__core", rec.UniqueID())
		v, _ := rec.Get("vid")
		assert.Equal(t, int64(100), v)
	})

	t.Run("missing identifier", func(t *testing.T) {
		_, err := NewRecord(deviceSchema, map[string]any{}, nil)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "name", verr.Field)
		assert.ErrorIs(t, err, ErrValidation)
		assert.ErrorIs(t, err, ErrMissingIdentifier)
	})

	t.Run("non primitive identifier", func(t *testing.T) {
		_, err := NewRecord(deviceSchema, map[string]any{"name": []any{"a"}}, nil)
		assert.ErrorIs(t, err, ErrValidation)
		assert.NotErrorIs(t, err, ErrMissingIdentifier)
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, err := NewRecord(deviceSchema, map[string]any{"name": "edge"}, map[string]any{"colour": "red"})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "colour", verr.Field)
	})

	t.Run("unsupported value type", func(t *testing.T) {
		_, err := NewRecord(deviceSchema, map[string]any{"name": "edge"}, map[string]any{"role": struct{}{}})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("set attributes are canonical", func(t *testing.T) {
		a, err := NewRecord(deviceSchema, map[string]any{"name": "edge"}, map[string]any{"tags": []string{"b", "a", "b"}})
		require.NoError(t, err)
		b, err := NewRecord(deviceSchema, map[string]any{"name": "edge"}, map[string]any{"tags": []any{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, a.Attrs(), b.Attrs())
		assert.Equal(t, []any{"a", "b"}, a.Attrs()["tags"])
	})

	t.Run("unset set attribute is empty list", func(t *testing.T) {
		rec, err := NewRecord(deviceSchema, map[string]any{"name": "edge"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []any{}, rec.Attrs()["tags"])
	})
}

func TestRecord_Children(t *testing.T) {
	dev, err := NewRecord(deviceSchema, map[string]any{"name": "edge"}, nil)
	require.NoError(t, err)
	ifc, err := NewRecord(interfaceSchema, map[string]any{"name": "mgmt0", "device": "edge"}, nil)
	require.NoError(t, err)

	require.NoError(t, dev.AddChild(ifc))
	assert.Equal(t, []string{"mgmt0__edge"}, dev.Children("interface"))
	assert.ErrorIs(t, dev.AddChild(ifc), ErrDuplicateRecord)

	pfx, err := NewRecord(prefixSchema, map[string]any{"prefix": "10.0.0.0/8", "namespace": "Global"}, nil)
	require.NoError(t, err)
	err = dev.AddChild(pfx)
	var cerr *InvalidChildTypeError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "prefix", cerr.Child)

	assert.True(t, dev.RemoveChild("interface", "mgmt0__edge"))
	assert.False(t, dev.RemoveChild("interface", "mgmt0__edge"))
	assert.Empty(t, dev.Children("interface"))
}

func TestRecord_CloneIsDeep(t *testing.T) {
	rec, err := NewRecord(deviceSchema, map[string]any{"name": "edge"}, map[string]any{"tags": []string{"a"}})
	require.NoError(t, err)
	rec.SetRef(42)

	clone := rec.Clone()
	clone.attrs["tags"].([]any)[0] = "z"

	assert.Equal(t, []any{"a"}, rec.Attrs()["tags"])
	assert.Equal(t, 42, clone.Ref())
	assert.Equal(t, rec.UniqueID(), clone.UniqueID())
}
