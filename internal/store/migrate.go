package store

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/anstrom/recon/internal/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies every embedded migration not yet recorded in
// schema_migrations. Each migration runs in its own transaction.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ DEFAULT NOW(),
			checksum VARCHAR(64) NOT NULL
		)`); err != nil {
		return migrationError("create migrations table", err)
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, `SELECT name FROM schema_migrations ORDER BY id`); err != nil {
		return migrationError("list applied migrations", err)
	}
	done := make(map[string]struct{}, len(applied))
	for _, name := range applied {
		done[name] = struct{}{}
	}

	files, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return migrationError("read migration files", err)
	}
	sort.Strings(files)

	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".sql")
		if _, ok := done[name]; ok {
			db.logger.Debug("Migration already applied", "migration", name)
			continue
		}
		if err := db.applyMigration(ctx, file, name); err != nil {
			return err
		}
		db.logger.Info("Applied migration", "migration", name)
	}
	return nil
}

func (db *DB) applyMigration(ctx context.Context, file, name string) error {
	content, err := migrationFiles.ReadFile(file)
	if err != nil {
		return migrationError("read "+name, err)
	}
	sum := sha256.Sum256(content)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return migrationError("begin "+name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return migrationError("execute "+name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (name, checksum) VALUES ($1, $2)`,
		name, hex.EncodeToString(sum[:])); err != nil {
		return migrationError("record "+name, err)
	}
	if err := tx.Commit(); err != nil {
		return migrationError("commit "+name, err)
	}
	return nil
}

func migrationError(operation string, err error) error {
	return errors.WrapDatabaseError(errors.CodeDatabaseMigration,
		fmt.Sprintf("Migration failed: %s", operation), operation, err)
}
