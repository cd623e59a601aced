// Package storage selects the check-in store backend.
package storage

import (
	"context"
	"fmt"

	"labcheckin/internal/config"
	"labcheckin/internal/infra/persistence/memory"
	"labcheckin/internal/infra/persistence/postgres"
	"labcheckin/internal/infra/persistence/sqlite"
	"labcheckin/internal/uniqueness"
	"labcheckin/pkg/domain"
)

// Store is the contract shared by every backend: it accepts submissions,
// answers barcode lookups for the uniqueness pass and reports occupied cells
// to the catalog.
type Store interface {
	domain.CheckInSink
	uniqueness.BarcodeIndex
	LocationOccupied(locationID string) bool
	Containers() []domain.Container
	Close() error
}

type memoryStore struct {
	*memory.Store
}

func (memoryStore) Close() error { return nil }

var (
	_ Store = memoryStore{}
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

// Open builds the backend named by cfg.Driver; empty means sqlite.
func Open(ctx context.Context, cfg config.StorageConfig, engine *domain.RulesEngine) (Store, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return memoryStore{memory.NewStore(engine)}, nil
	case "", config.StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case config.StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
