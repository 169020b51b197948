// Package store persists probe results to PostgreSQL.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/anstrom/recon/internal/config"
	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/logging"
)

// DB wraps sqlx.DB with the result store operations.
type DB struct {
	*sqlx.DB
	logger *logging.Logger
}

// New wraps an existing connection.
func New(db *sqlx.DB, logger *logging.Logger) *DB {
	if logger == nil {
		logger = logging.Default()
	}
	return &DB{DB: db, logger: logger.WithComponent("store")}
}

// Connect opens and verifies a PostgreSQL connection.
// Returned errors never include the DSN.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *logging.Logger) (*DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseConnection,
			"Failed to connect to database", "connect", stripDSN(err))
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := New(db, logger)
	store.logger.Info("Connected to database",
		"host", cfg.Host, "port", cfg.Port, "database", cfg.Database)
	return store, nil
}

// stripDSN keeps only the pq error code and message.
func stripDSN(err error) error {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return fmt.Errorf("%s: %s", pqErr.Code, pqErr.Message)
	}
	return err
}

// sanitizeDBError converts raw database errors into typed errors that don't
// expose SQL or credentials. The original error is kept as the cause.
func sanitizeDBError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.WrapDatabaseError(errors.CodeCanceled, "Database operation was canceled", operation, err)
	}
	if stderrors.Is(err, sql.ErrConnDone) {
		return errors.WrapDatabaseError(errors.CodeDatabaseConnection, "Database connection lost", operation, err)
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23502", "23514": // not_null_violation, check_violation
			return errors.WrapDatabaseError(errors.CodeValidation, "Data validation failed", operation, err)
		case "23503": // foreign_key_violation
			return errors.WrapDatabaseError(errors.CodeValidation, "Referenced scan does not exist", operation, err)
		case "57014": // query_canceled
			return errors.WrapDatabaseError(errors.CodeCanceled, "Database operation was canceled", operation, err)
		case "57P01", "08000", "08003", "08006": // admin_shutdown, connection errors
			return errors.WrapDatabaseError(errors.CodeDatabaseConnection, "Database connection error", operation, err)
		}
	}

	return errors.WrapDatabaseError(errors.CodeDatabaseQuery,
		fmt.Sprintf("Database operation failed: %s", operation), operation, err)
}
