package models

import (
	"fmt"

	"inventory-sync/core/binding"

	"gorm.io/gorm"
)

// All returns every table model in creation order.
func All() []any {
	return []any{
		&Tenant{},
		&Tag{},
		&Location{},
		&Namespace{},
		&Device{},
		&DeviceTag{},
		&Interface{},
		&Prefix{},
		&IPAddress{},
		&binding.RelationshipAssociation{},
		&SyncRun{},
	}
}

// AutoMigrate creates or updates every inventory table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("failed to migrate inventory schema: %w", err)
	}
	return nil
}
