package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"flightbook/internal/config"
	"flightbook/internal/domain"
	"flightbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

// RedisDeadLetter keeps a copy of every item that exhausted its retries.
type RedisDeadLetter struct {
	client *redis.Client
	key    string
}

var _ domain.DeadLetter = (*RedisDeadLetter)(nil)

func NewRedisDeadLetter(client *redis.Client, key string) *RedisDeadLetter {
	return &RedisDeadLetter{client: client, key: key}
}

func (r *RedisDeadLetter) Push(ctx context.Context, item *models.QueueItem) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	if err := r.client.LPush(ctx, r.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter: %w", err)
	}
	return nil
}

// List returns dead letters newest first.
func (r *RedisDeadLetter) List(ctx context.Context, limit int64) ([]*models.QueueItem, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if limit <= 0 {
		limit = 100
	}
	raw, err := r.client.LRange(ctx, r.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}
	out := make([]*models.QueueItem, 0, len(raw))
	for _, s := range raw {
		var it models.QueueItem
		if err := json.Unmarshal([]byte(s), &it); err != nil {
			continue
		}
		out = append(out, &it)
	}
	return out, nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
