package middleware

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"jobfeed/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger. Records logged with a
// request context carry its request, actor and trace ids.
var Logger *slog.Logger

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
)

// requestHandler decorates records with the ids ContextMiddleware stored.
type requestHandler struct {
	slog.Handler
}

func (h *requestHandler) Handle(ctx context.Context, r slog.Record) error {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		r.AddAttrs(slog.String("request_id", v))
	}
	if v, ok := ctx.Value(UserIDKey).(uint); ok {
		r.AddAttrs(slog.Uint64("actor_id", uint64(v)))
	}
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		r.AddAttrs(slog.String("trace_id", v))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *requestHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &requestHandler{h.Handler.WithAttrs(attrs)}
}

func (h *requestHandler) WithGroup(name string) slog.Handler {
	return &requestHandler{h.Handler.WithGroup(name)}
}

// logLevel reads LOG_LEVEL (debug, info, warn, error); info otherwise.
func logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func init() {
	opts := &slog.HandlerOptions{Level: logLevel()}
	var base slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if env := os.Getenv("APP_ENV"); env == "production" || env == "prod" {
		base = slog.NewJSONHandler(os.Stdout, opts)
	}
	Logger = slog.New(&requestHandler{base})
	observability.SetLogger(Logger)
}

// ContextMiddleware copies the request id, actor and trace id from fiber
// locals into the user context so service code logging with ctx gets them.
// The request id doubles as the correlation id for repository logs.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if rid, ok := c.Locals("requestid").(string); ok {
			ctx = context.WithValue(ctx, RequestIDKey, rid)
			ctx = observability.WithCorrelationID(ctx, rid)
		}
		if uid, ok := c.Locals("userID").(uint); ok {
			ctx = context.WithValue(ctx, UserIDKey, uid)
		}
		if tid, ok := c.Locals("traceID").(string); ok {
			ctx = context.WithValue(ctx, TraceIDKey, tid)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger logs one line per request. Health probes log at debug;
// client errors at warn; server errors and handler errors at error.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.IP()),
		}
		if route := c.Route(); route != nil && route.Path != "" {
			attrs = append(attrs, slog.String("route", route.Path))
		}

		level := slog.LevelInfo
		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			level = slog.LevelError
		case status >= fiber.StatusInternalServerError:
			level = slog.LevelError
		case status >= fiber.StatusBadRequest:
			level = slog.LevelWarn
		case strings.HasPrefix(c.Path(), "/health"):
			level = slog.LevelDebug
		}
		Logger.Log(c.UserContext(), level, "request", attrs...)
		return err
	}
}
