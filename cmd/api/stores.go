package main

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/linkgate/internal/config"
	"github.com/SergeiKhy/linkgate/internal/repository"
	"go.uber.org/zap"
)

// stores набор репозиториев, выбранный конфигурацией
type stores struct {
	links    repository.LinkRepository
	ads      repository.AdRepository
	events   repository.EventRepository
	sessions repository.SessionRepository
	cache    repository.CacheRepository

	db    *repository.PostgresDB
	redis *repository.RedisDB
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	st := &stores{}

	if cfg.Storage.Driver == config.DriverPostgres {
		db, err := repository.NewPostgresDB(ctx, repository.DSN(cfg.DB))
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		st.db = db
		logger.Info("Connected to PostgreSQL")

		if err := db.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}

		st.links = repository.NewLinkRepository(db)
		st.ads = repository.NewAdRepository(db)
		st.events = repository.NewEventRepository(db)
	} else {
		st.links = repository.NewMemoryLinkRepository()
		st.ads = repository.NewMemoryAdRepository()
		st.events = repository.NewMemoryEventRepository()
	}

	if cfg.UsesRedis() {
		redis, err := repository.NewRedisClient(cfg.Redis)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		st.redis = redis
		st.cache = repository.NewCacheRepository(redis)
		logger.Info("Connected to Redis")
	} else {
		st.cache = repository.NewMemoryCacheRepository()
	}

	switch cfg.Storage.SessionStore {
	case config.DriverPostgres:
		st.sessions = repository.NewSessionRepository(st.db)
	case config.DriverRedis:
		st.sessions = repository.NewRedisSessionRepository(st.redis)
	default:
		st.sessions = repository.NewMemorySessionRepository()
	}

	return st, nil
}

func (st *stores) Close() {
	if st.redis != nil {
		_ = st.redis.Close()
	}
	if st.db != nil {
		st.db.Close()
	}
}
