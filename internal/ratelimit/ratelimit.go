package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	"github.com/quocdatk18/appchat-sub000/internal/handlers"
)

type Limiter struct {
	R *redis.Client
}

func New(r *redis.Client) *Limiter { return &Limiter{R: r} }

// AllowSliding counts hits on key inside window and reports whether the count
// is still within limit.
func (l *Limiter) AllowSliding(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	k := "rl:" + key
	pipe := l.R.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// LimitHTTP guards a route per caller. keyFn returns the caller key, usually
// the authenticated user id.
func (l *Limiter) LimitHTTP(limit int64, window time.Duration, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return handlers.WrapHandler(func(w http.ResponseWriter, r *http.Request) *app_error.AppError {
			key := keyFn(r)
			if key == "" {
				return app_error.Unauthorized("missing caller identity", "auth")
			}
			ok, n, err := l.AllowSliding(r.Context(), key, limit, window)
			if err != nil {
				return app_error.TransientStore("check rate limit", err)
			}
			if !ok {
				return app_error.RateLimited(fmt.Sprintf("rate limit exceeded (count=%d, limit=%d)", n, limit), "rate-limit")
			}
			next.ServeHTTP(w, r)
			return nil
		})
	}
}
