package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrVersionConflict is returned when a guarded update matched no row
// because another writer bumped the version first.
var ErrVersionConflict = errors.New("post version changed concurrently")

// PostgreSQL SQLSTATE codes that indicate a lost race rather than a bug.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// isRetryable reports whether a mutation attempt may be replayed.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrVersionConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return true
		}
		return false
	}
	// sqlite reports writer contention as SQLITE_BUSY
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

// escapeLike escapes LIKE wildcards so user input matches literally.
// Queries using it must declare ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
