package storage

import (
	"fmt"

	"aurafeed/internal/cache"
	"aurafeed/internal/config"
	"aurafeed/internal/database"
)

// Open builds the Store selected by cfg.LedgerBackend, scoped to cfg.Origin.
// The returned close func releases any connection Open created.
func Open(cfg *config.Config) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.LedgerBackend {
	case "memory":
		return NewMemoryStore(), noop, nil
	case "file", "":
		s, err := NewFileStore(cfg.LedgerPath, cfg.Origin)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case "redis":
		rdb := cache.GetClient()
		if rdb == nil {
			rdb = cache.InitRedis(cfg.RedisURL)
		}
		if rdb == nil {
			return nil, nil, fmt.Errorf("redis ledger backend unavailable at %s", cfg.RedisURL)
		}
		return NewRedisStore(rdb, cfg.Origin), noop, nil
	case "sqlite", "postgres":
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := Migrate(db); err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return NewSQLStore(db, cfg.Origin), sqlDB.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}
