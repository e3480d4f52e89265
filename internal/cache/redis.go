// Package cache holds the process-wide Redis client and the cache-aside
// helpers the repositories and feed service read through. Every helper is
// a no-op, or falls through to the database, while no client is set.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jobfeed/internal/middleware"
	"jobfeed/internal/observability"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

var client *redis.Client

// errorHook counts failed commands; a miss (redis.Nil) is not a failure.
type errorHook struct{}

func record(name string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrors.WithLabelValues(name).Inc()
	}
}

func (errorHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		record(cmd.Name(), err)
		return err
	}
}

func (errorHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		record("pipeline", err)
		return err
	}
}

// parseOptions accepts host:port or a redis:// or rediss:// URL.
func parseOptions(addr string) (*redis.Options, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("empty address")
	}
	if !strings.Contains(addr, "://") {
		return &redis.Options{Addr: addr}, nil
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return opts, nil
}

// InitRedis connects to addr. When the address is empty, invalid or
// unreachable the client stays nil and the feed runs without caching,
// pub/sub fan-out or rate limits.
func InitRedis(addr string) {
	client = nil
	opts, err := parseOptions(addr)
	if err != nil {
		middleware.Logger.Warn("redis disabled", slog.String("error", err.Error()))
		return
	}

	c := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("redis unreachable, continuing without it",
			slog.String("addr", opts.Addr), slog.String("error", err.Error()))
		_ = c.Close()
		return
	}
	SetClient(c)
	middleware.Logger.Info("redis connected", slog.String("addr", opts.Addr))
}

// SetClient installs an already-built client; nil disables Redis.
func SetClient(c *redis.Client) {
	if c != nil {
		c.AddHook(errorHook{})
	}
	client = c
}

// GetClient returns the installed client, or nil.
func GetClient() *redis.Client {
	return client
}
