package csrf

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenPrefix = "csrf:"

// RedisStore implements Store on Redis; token expiry rides on key TTLs.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed CSRF token store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SaveToken(ctx context.Context, token string, expiresIn time.Duration) error {
	if token == "" {
		return ErrInvalidToken
	}
	if err := s.client.Set(ctx, tokenPrefix+token, "1", expiresIn).Err(); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

func (s *RedisStore) ConsumeToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	// DEL reports how many keys existed; single-use enforcement and
	// validation in one atomic step.
	n, err := s.client.Del(ctx, tokenPrefix+token).Result()
	if err != nil {
		return fmt.Errorf("consuming token: %w", err)
	}
	if n == 0 {
		return ErrInvalidToken
	}
	return nil
}

func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
