package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"scanstation/internal/config"
	"scanstation/internal/models"

	"github.com/redis/go-redis/v9"
)

const historyKey = "scan_history"

// RedisStore shares the feed between screens of the same station through a
// capped redis list. Entries expire with the TTL, keeping the feed transient.
type RedisStore struct {
	client *redis.Client
	cap    int
	ttl    time.Duration
}

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

func NewRedisStore(client *redis.Client, capacity int, ttl time.Duration) *RedisStore {
	if capacity <= 0 {
		capacity = models.HistoryLimit
	}
	return &RedisStore{client: client, cap: capacity, ttl: ttl}
}

func (s *RedisStore) Append(ctx context.Context, entry models.ScanHistoryEntry) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	if err := s.client.LPush(ctx, historyKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push history entry: %w", err)
	}
	if err := s.client.LTrim(ctx, historyKey, 0, int64(s.cap-1)).Err(); err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	if s.ttl > 0 {
		s.client.Expire(ctx, historyKey, s.ttl)
	}
	return nil
}

func (s *RedisStore) Recent(ctx context.Context, limit int) ([]models.ScanHistoryEntry, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	if limit <= 0 || limit > s.cap {
		limit = s.cap
	}

	raw, err := s.client.LRange(ctx, historyKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	entries := make([]models.ScanHistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry models.ScanHistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}
