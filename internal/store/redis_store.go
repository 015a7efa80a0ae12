package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps every document under a single key
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

func NewRedisStore(redisClient *redis.Client, prefix string) *RedisStore {
	return &RedisStore{redis: redisClient, prefix: prefix}
}

// Load decodes the document into v
func (s *RedisStore) Load(ctx context.Context, doc string, v any) error {
	data, err := s.redis.Get(ctx, s.prefix+doc).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load %s: %w", doc, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", doc, err)
	}
	return nil
}

// Save overwrites the document; documents never expire
func (s *RedisStore) Save(ctx context.Context, doc string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", doc, err)
	}
	return s.redis.Set(ctx, s.prefix+doc, data, 0).Err()
}
