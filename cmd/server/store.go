package main

import (
	"context"
	"fmt"
	"log"

	"skilltrack-backend/internal/config"
	"skilltrack-backend/internal/database"
	"skilltrack-backend/internal/repository"
	"skilltrack-backend/internal/services"
)

// openStore connects the backend named by STORE_DRIVER and prepares its schema.
// The returned func releases the connection.
func openStore(ctx context.Context, cfg *config.Config) (services.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL, int32(cfg.DBMaxConns))
		if err != nil {
			return nil, nil, fmt.Errorf("PostgreSQL connection failed: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, "migrations"); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("database migration failed: %w", err)
		}
		log.Println("✓ PostgreSQL connected, migrations applied")
		return repository.NewPostgresStore(pool), pool.Close, nil

	case config.StoreSQLite:
		db, err := database.NewSQLiteDB(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("SQLite open failed: %w", err)
		}
		store := repository.NewSQLiteStore(db)
		if err := store.InitSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Printf("✓ SQLite store ready at %s", cfg.SQLitePath)
		return store, func() { db.Close() }, nil

	case config.StoreMemory:
		log.Println("⚠ Using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
