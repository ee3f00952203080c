package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/linkgate/internal/config"
	"github.com/redis/go-redis/v9"
)

// Префиксы ключей Redis
const (
	keyPrefixLink    = "linkgate:link:"
	keyPrefixSession = "linkgate:session:"
)

func linkCacheKey(id string) string {
	return keyPrefixLink + id
}

func sessionKey(id string) string {
	return keyPrefixSession + id
}

func sessionStepsKey(id string) string {
	return keyPrefixSession + id + ":steps"
}

type RedisDB struct {
	Client *redis.Client
}

func NewRedisClient(cfg config.RedisConfig) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     100,
		MinIdleConns: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDB{Client: client}, nil
}

func (db *RedisDB) Close() error {
	return db.Client.Close()
}
