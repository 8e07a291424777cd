package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/edgard/polybot/internal/apperr"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// IsTransient reports whether a store error is worth another attempt:
// connectivity loss, timeouts, a busy or locked database, and server-side
// failures the server marks as retryable. Validation errors never are.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if apperr.CodeOf(err) == apperr.CodeValidation {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_PROTOCOL:
			return true
		}
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) < 2 {
			return false
		}
		switch pgErr.Code[:2] {
		case "08", // connection exception
			"40", // transaction rollback: serialization failure, deadlock
			"53", // insufficient resources
			"57": // operator intervention: shutdown, query canceled
			return true
		}
		return false
	}

	return pgconn.Timeout(err) || pgconn.SafeToRetry(err)
}
