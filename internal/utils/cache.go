package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GetCacheData returns nil, nil on a miss.
func GetCacheData[T any](ctx context.Context, rdb *redis.Client, cacheKey string) (*T, *app_error.AppError) {
	raw, err := rdb.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, app_error.TransientStore("read cache "+cacheKey, err)
	}

	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("corrupt cache entry %s", cacheKey), "cache")
	}
	return &data, nil
}

func SetCacheData[T any](ctx context.Context, rdb *redis.Client, cacheKey string, data *T, expire time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", cacheKey, err)
	}
	return rdb.Set(ctx, cacheKey, raw, expire).Err()
}
