package factory

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/adapters/store"
	"github.com/mikey/promo-sweeper/internal/config"
	"github.com/mikey/promo-sweeper/internal/core"
)

// ErrEphemeralStore is returned when a command needs decisions archived by an
// earlier run but the store does not outlive the process
var ErrEphemeralStore = errors.New("the memory store does not keep decisions between runs; set store.type to sqlite, mysql or postgres")

// StoreFactory creates decision repositories based on configuration
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

// CreateDecisionRepository creates a decision repository based on the configuration
func (f *StoreFactory) CreateDecisionRepository() (core.DecisionRepository, error) {
	sc := f.cfg.GetStore()

	switch sc.Type {
	case "memory":
		return store.NewMemoryStore(f.logger, sc.Retention, sc.CleanupFrequency), nil
	case "sqlite":
		return store.NewSQLiteStore(sc.SQLitePath, f.logger, sc.Retention, sc.CleanupFrequency)
	case "mysql":
		return store.NewMySQLStore(sc.MySQLDSN, f.logger, sc.Retention, sc.CleanupFrequency)
	case "postgres":
		return store.NewPostgresStore(sc.PostgresDSN, f.logger, sc.Retention, sc.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}

// RequirePersistent fails with ErrEphemeralStore for the memory store
func (f *StoreFactory) RequirePersistent() error {
	if f.cfg.GetStore().Type == "memory" {
		return ErrEphemeralStore
	}
	return nil
}
