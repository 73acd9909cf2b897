// Package storage picks the persistence adapter named by the configuration.
package storage

import (
	"context"
	"fmt"

	"brainrotMarket/config"
	"brainrotMarket/internal/adapters/mongostore"
	"brainrotMarket/internal/adapters/sqlite"
	"brainrotMarket/internal/ports"
)

// Store is everything the binaries need from a persistence adapter.
type Store interface {
	ports.CatalogRepository
	ports.TradeRepository
	ports.UserRepository
	ports.NotificationRepository
}

// CloseFunc releases the store.
type CloseFunc func(ctx context.Context) error

// Open connects the adapter selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config, logger ports.Logger) (Store, CloseFunc, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		store, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			Timeout:  cfg.MongoTimeout,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.DriverSQLite, "":
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		return repo, func(context.Context) error { return repo.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q: %w", cfg.StoreDriver, ports.ErrConfigurationError)
	}
}
