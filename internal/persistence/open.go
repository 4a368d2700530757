package persistence

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"oct-review-service/internal/config"
	"oct-review-service/internal/domain/repositories"
)

// Open builds the patient repository selected by cfg.Store.Driver. The
// returned close func releases any connection the driver opened.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.PatientRepositoryContract, func() error, error) {
	noop := func() error { return nil }
	seeds := SeedPatients()

	switch cfg.Store.Driver {
	case "memory":
		repo, err := NewDocumentPatientRepository(ctx, NewMemoryKV(), cfg.Store.DocumentKey, seeds, logger)
		return repo, noop, err

	case "file":
		kv, err := NewFileKV(cfg.Store.Dir)
		if err != nil {
			return nil, nil, err
		}
		repo, err := NewDocumentPatientRepository(ctx, kv, cfg.Store.DocumentKey, seeds, logger)
		return repo, noop, err

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		repo, err := NewDocumentPatientRepository(ctx, NewRedisKV(client), cfg.Store.DocumentKey, seeds, logger)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return repo, client.Close, nil

	case "postgres":
		db, err := OpenPostgres(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		repo, err := NewGormPatientRepository(ctx, db, seeds, logger)
		if err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		return repo, sqlDB.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
