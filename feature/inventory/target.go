package inventory

import (
	"inventory-sync/core/binding"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewTargetAdapter returns the database adapter over the inventory tables.
func NewTargetAdapter(db *gorm.DB, registry *binding.Registry, logger *zap.Logger) *binding.Adapter {
	return binding.NewAdapter("database", db, registry, TopLevel, logger)
}
