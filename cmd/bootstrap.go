package cmd

import (
	"fmt"

	"inventory-sync/core/config"
	"inventory-sync/core/database"
	"inventory-sync/core/logger"
	"inventory-sync/core/storage"
	"inventory-sync/feature/inventory"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// env is what every CLI command needs: configuration, logger, database and storage.
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *gorm.DB
	client storage.Client
}

// bootstrap loads configuration, builds the logger and connects to the database.
func bootstrap() (*env, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &env{cfg: cfg, log: l, db: db}, nil
}

// connectStorage creates the storage client when the snapshot lives in object
// storage or run reports are uploaded.
func (e *env) connectStorage(source string) error {
	if source == "" {
		source = e.cfg.Sync.Source
	}
	if !storage.IsURI(source) && !e.cfg.Sync.UploadReports {
		return nil
	}
	client, err := storage.NewClient(e.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}
	e.client = client
	return nil
}

// service builds the inventory sync service.
func (e *env) service() (*inventory.Service, error) {
	registry, err := inventory.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("invalid inventory bindings: %w", err)
	}
	return inventory.NewService(e.db, registry, e.client, e.cfg.Storage.Bucket, e.cfg.Sync, nil, logger.Named(e.log, "sync")), nil
}
