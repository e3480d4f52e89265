package middleware

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"jobfeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy says what to do with a request when Redis cannot be reached.
type FailPolicy int

const (
	FailOpen   FailPolicy = iota // let the request through
	FailClosed                   // answer 503
)

var errNoLimiterStore = errors.New("rate limit store not configured")

// limitsDisabled is read per call so tests can flip APP_ENV.
func limitsDisabled() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development":
		return true
	}
	return false
}

// window is the state of one fixed-window counter after a hit.
type window struct {
	count int64
	reset time.Duration
}

// hit counts one request against rl:<resource>:<id>. The expiry is
// (re)armed whenever the key has none, so a lost EXPIRE cannot pin a
// caller at the limit forever.
func hit(ctx context.Context, rdb *redis.Client, resource, id string, span time.Duration) (window, error) {
	if rdb == nil {
		return window{}, errNoLimiterStore
	}
	key := fmt.Sprintf("rl:%s:%s", resource, id)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	}); err != nil {
		return window{}, err
	}

	w := window{count: incr.Val(), reset: ttl.Val()}
	if w.reset <= 0 {
		if err := rdb.Expire(ctx, key, span).Err(); err != nil {
			return window{}, err
		}
		w.reset = span
	}
	return w, nil
}

// CheckRateLimit reports whether id may make another request to resource.
// Limits are off in test and development.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, span time.Duration) (bool, error) {
	if limitsDisabled() {
		return true, nil
	}
	w, err := hit(ctx, rdb, resource, id, span)
	if err != nil {
		return false, err
	}
	return w.count <= int64(limit), nil
}

// RateLimit allows limit requests per span for each actor (or client IP
// when anonymous). name groups routes into one bucket; it defaults to the
// request path.
func RateLimit(rdb *redis.Client, limit int, span time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, span, FailOpen, name...)
}

func RateLimitWithPolicy(rdb *redis.Client, limit int, span time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limitsDisabled() {
			return c.Next()
		}

		id := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok {
			id = "user:" + strconv.FormatUint(uint64(uid), 10)
		}
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		w, err := hit(c.UserContext(), rdb, resource, id, span)
		if err != nil {
			if policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
				"resource", resource, "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "Rate limiting unavailable",
				Code:  models.CodeInternal,
			})
		}

		remaining := int64(limit) - w.count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if w.count > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int((w.reset+time.Second-1)/time.Second)))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
