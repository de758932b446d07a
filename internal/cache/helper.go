package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"bloghub/internal/middleware"
	"bloghub/internal/observability"

	"github.com/redis/go-redis/v9"
)

func cacheName(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// Aside implements cache-aside: dest is filled from Redis on a hit, otherwise
// fetch fills it and the result is stored for ttl. Redis failures degrade to
// calling fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil {
		return fetch()
	}

	name := cacheName(key)
	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jerr := json.Unmarshal(raw, dest); jerr == nil {
			observability.CacheLookups.WithLabelValues(name, "hit").Inc()
			return nil
		}
		// Corrupt entry; fall through and overwrite it.
	case errors.Is(err, redis.Nil):
	default:
		observability.CacheLookups.WithLabelValues(name, "error").Inc()
		return fetch()
	}

	observability.CacheLookups.WithLabelValues(name, "miss").Inc()
	if err := fetch(); err != nil {
		return err
	}

	payload, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := client.Set(ctx, key, payload, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}
