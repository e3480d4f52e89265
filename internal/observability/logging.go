// Package observability holds the feed's logging helpers, Prometheus
// metrics and OpenTelemetry tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"github.com/google/uuid"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger routes repository and background-job logs through l.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

type correlationKey struct{}

// GenerateCorrelationID returns a fresh id for work that has no request,
// such as a scheduler sweep.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// ExtractCorrelationID returns the id set by WithCorrelationID, or "".
func ExtractCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// fieldAttrs renders fields in key order so log lines are stable.
func fieldAttrs(ctx context.Context, fields map[string]interface{}, head ...any) []any {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := append(head, slog.String("correlation_id", ExtractCorrelationID(ctx)))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return attrs
}

// RepoLogger writes one line per state-changing repository call.
type RepoLogger struct {
	table string
}

func NewRepoLogger(table string) *RepoLogger {
	return &RepoLogger{table: table}
}

func (l *RepoLogger) LogCreate(ctx context.Context, fields map[string]interface{}) {
	logger.InfoContext(ctx, "row created", fieldAttrs(ctx, fields, slog.String("table", l.table))...)
}

func (l *RepoLogger) LogUpdate(ctx context.Context, fields map[string]interface{}) {
	logger.InfoContext(ctx, "row updated", fieldAttrs(ctx, fields, slog.String("table", l.table))...)
}

func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	logger.ErrorContext(ctx, "repository error", fieldAttrs(ctx, nil,
		slog.String("table", l.table),
		slog.String("operation", operation),
		slog.String("error", err.Error()))...)
}

// LogAsyncOperationStart, LogAsyncOperationEnd and LogAsyncOperationError
// bracket background work such as the scheduler.
func LogAsyncOperationStart(ctx context.Context, operation string, fields map[string]interface{}) {
	logger.DebugContext(ctx, operation+" started", fieldAttrs(ctx, fields, slog.String("operation", operation))...)
}

func LogAsyncOperationEnd(ctx context.Context, operation string, fields map[string]interface{}) {
	logger.InfoContext(ctx, operation+" finished", fieldAttrs(ctx, fields, slog.String("operation", operation))...)
}

func LogAsyncOperationError(ctx context.Context, operation string, err error, fields map[string]interface{}) {
	logger.ErrorContext(ctx, operation+" failed", fieldAttrs(ctx, fields,
		slog.String("operation", operation),
		slog.String("error", err.Error()))...)
}
