package inventory

import (
	"fmt"

	"inventory-sync/core/config"
	"inventory-sync/core/reconcile"
	"inventory-sync/core/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
	err     error
}

// NewFeature creates the inventory sync feature. Without a database the feature is disabled.
func NewFeature(db *gorm.DB, client storage.Client, bucket string, cfg config.SyncConfig, recorder reconcile.Recorder, logger *zap.Logger) *Feature {
	registry, err := NewRegistry()
	if err != nil {
		return &Feature{err: fmt.Errorf("invalid inventory bindings: %w", err)}
	}
	svc := NewService(db, registry, client, bucket, cfg, recorder, logger)
	return &Feature{service: svc, handler: NewHandler(svc)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "inventory"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return f.err != nil || (f.service != nil && f.service.db != nil)
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	if f.err != nil {
		return f.err
	}
	f.handler.RegisterRoutes(app)
	return nil
}

// Service returns the feature's sync service.
func (f *Feature) Service() *Service {
	return f.service
}
