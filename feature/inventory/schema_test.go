package inventory

import (
	"testing"

	"inventory-sync/core/binding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	for _, typeName := range append(TopLevel, TypeInterface) {
		_, ok := reg.Model(typeName)
		assert.True(t, ok, typeName)
	}

	parent, ok := reg.Schemas().Parent(TypeInterface)
	require.True(t, ok)
	assert.Equal(t, TypeDevice, parent)

	ip, _ := reg.Model(TypeIPAddress)
	f, ok := ip.Field("interface")
	require.True(t, ok)
	assert.Equal(t, binding.Association, f.Kind)
	assert.Equal(t, RelationshipInterfaceIP, f.Relationship)
}

func TestCheckSchema_Migrated(t *testing.T) {
	db := setupDB(t)
	report, err := binding.CheckSchema(db, newRegistry(t))
	require.NoError(t, err)
	assert.True(t, report.Matched, "%+v", report.Tables)
}
