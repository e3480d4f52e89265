// Package database handles database connections and migrations.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jobfeed/internal/config"
	"jobfeed/internal/middleware"
	"jobfeed/internal/observability"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQuery = 200 * time.Millisecond

// queryLogger sends GORM output through slog and records every statement's
// latency labelled by SQL verb. Missing rows are not errors here; the
// repositories turn them into NOT_FOUND.
type queryLogger struct {
	log   *slog.Logger
	level logger.LogLevel
}

// NewGormLogger builds a GORM logger writing to l at level.
func NewGormLogger(l *slog.Logger, level logger.LogLevel) logger.Interface {
	return &queryLogger{log: l, level: level}
}

func (q *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *q
	clone.level = level
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= logger.Info {
		q.log.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= logger.Warn {
		q.log.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= logger.Error {
		q.log.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// sqlVerb is the lower-cased first keyword of a statement.
func sqlVerb(sql string) string {
	verb, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	if verb == "" {
		return "unknown"
	}
	return strings.ToLower(verb)
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	observability.DatabaseQueryLatency.WithLabelValues(sqlVerb(sql), "gorm").Observe(elapsed.Seconds())

	attrs := []any{slog.String("sql", sql), slog.Int64("rows", rows), slog.Duration("elapsed", elapsed)}
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && q.level >= logger.Error:
		q.log.ErrorContext(ctx, "query failed", append(attrs, slog.String("error", err.Error()))...)
	case elapsed > slowQuery && q.level >= logger.Warn:
		q.log.WarnContext(ctx, "slow query", attrs...)
	case q.level >= logger.Info:
		q.log.DebugContext(ctx, "query", attrs...)
	}
}

// nowUTC keeps every autoCreateTime/autoUpdateTime column in UTC.
func nowUTC() time.Time {
	return time.Now().UTC()
}

// dialector picks the driver from configuration.
func dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "", "postgres":
		sslMode := cfg.DBSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			sslMode,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.SQLitePath + "?_busy_timeout=5000"), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// Open opens the configured database without migrating it.
func Open(cfg *config.Config) (*gorm.DB, error) {
	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger:  NewGormLogger(middleware.Logger, logger.Warn),
		NowFunc: nowUTC,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

// Connect opens a database connection using the provided configuration and returns the gorm DB instance.
// Outside production the schema is migrated on connect.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	middleware.Logger.Info("Database connected successfully", slog.String("driver", cfg.DBDriver))

	if !cfg.IsProduction() {
		if err := Migrate(context.Background(), db); err != nil {
			return nil, err
		}
		middleware.Logger.Info("Database migration completed")
	}

	return db, nil
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql DB: %w", err)
	}

	// sqlite allows a single writer; one connection serializes transactions.
	if cfg.DBDriver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
		return nil
	}

	maxOpen := cfg.DBMaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.DBMaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := time.Duration(cfg.DBConnMaxLifetimeMinutes) * time.Minute
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)
	return nil
}
