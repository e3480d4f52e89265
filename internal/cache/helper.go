package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"jobfeed/internal/observability"

	"github.com/redis/go-redis/v9"
)

// family is the key prefix up to the first colon, used as a metric label.
func family(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// CacheAside loads key into dest, calling fetch to fill dest on a miss and
// storing the result for ttl. Redis is best effort: read, decode and write
// failures fall back to fetch and never reach the caller. A fetch error is
// returned as is and nothing is cached.
func CacheAside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil {
		return fetch()
	}

	outcome := "miss"
	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if json.Unmarshal(raw, dest) == nil {
			observability.CacheLookups.WithLabelValues(family(key), "hit").Inc()
			return nil
		}
		outcome = "error"
	case !errors.Is(err, redis.Nil):
		outcome = "error"
	}
	observability.CacheLookups.WithLabelValues(family(key), outcome).Inc()

	if err := fetch(); err != nil {
		return err
	}
	if encoded, err := json.Marshal(dest); err == nil {
		client.Set(ctx, key, encoded, ttl)
	}
	return nil
}
