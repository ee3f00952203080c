package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/redis/go-redis/v9"
)

// tombstoneValue метка удалённой ссылки. JSON ссылки с ней не совпадает.
const tombstoneValue = "-"

// CacheRepository кэш ссылок для горячего пути воронки
type CacheRepository interface {
	// Get возвращает ErrCacheMiss и для отсутствующей записи, и для метки удаления
	Get(ctx context.Context, id string) (*models.Link, error)
	// Set кладёт ссылку, только если ключ свободен. Метку удаления не перезаписывает.
	Set(ctx context.Context, link *models.Link, ttl time.Duration) error
	// Invalidate ставит метку удаления на ttl, вытесняя закэшированную ссылку
	Invalidate(ctx context.Context, id string, ttl time.Duration) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func (r *cacheRepository) Get(ctx context.Context, id string) (*models.Link, error) {
	data, err := r.redis.Client.Get(ctx, linkCacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	if string(data) == tombstoneValue {
		return nil, ErrCacheMiss
	}

	var link models.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal link: %w", err)
	}

	return &link, nil
}

func (r *cacheRepository) Set(ctx context.Context, link *models.Link, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	return r.redis.Client.SetNX(ctx, linkCacheKey(link.ID), data, ttl).Err()
}

func (r *cacheRepository) Invalidate(ctx context.Context, id string, ttl time.Duration) error {
	return r.redis.Client.Set(ctx, linkCacheKey(id), tombstoneValue, ttl).Err()
}
