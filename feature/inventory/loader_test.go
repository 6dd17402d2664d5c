package inventory

import (
	"testing"

	"inventory-sync/core/config"
	"inventory-sync/core/storage/mocks"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLoader(t *testing.T) {
	db := setupDB(t)
	feature := NewFeature(db, new(mocks.Client), "inventory", config.SyncConfig{}, nil, zap.NewNop())

	assert.Equal(t, "inventory", feature.Name())
	assert.True(t, feature.IsEnabled())
	assert.NotNil(t, feature.Service())

	app := fiber.New()
	assert.NoError(t, feature.Load(app))
}

func TestLoader_NoDatabase(t *testing.T) {
	feature := NewFeature(nil, nil, "inventory", config.SyncConfig{}, nil, zap.NewNop())
	assert.False(t, feature.IsEnabled())
}
