package idem

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idem:"

// Store claims operation ids. The first claim of a key wins until ttl passes.
type Store interface {
	PutNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisStore struct{ r *redis.Client }

func New(rdb *redis.Client) Store {
	return &redisStore{r: rdb}
}

func (s *redisStore) PutNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.r.SetNX(ctx, keyPrefix+key, "1", ttl).Result()
}

// Release drops a claim so a failed operation can be retried with the same id.
func (s *redisStore) Release(ctx context.Context, key string) error {
	return s.r.Del(ctx, keyPrefix+key).Err()
}
