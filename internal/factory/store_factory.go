package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/adapters/store"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/config"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"go.uber.org/zap"
)

// StoreFactory creates profile stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateProfileStore creates a profile store based on the configuration
func (f *StoreFactory) CreateProfileStore() (core.ProfileStore, error) {
	storageCfg := f.cfg.GetStorage()

	switch storageCfg.Type {
	case "memory":
		return store.NewMemoryStore(f.logger), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(storageCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(storageCfg.SQLitePath, f.logger)
	case "mysql":
		return store.NewMySQLStore(storageCfg.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageCfg.Type)
	}
}
