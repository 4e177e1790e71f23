package db

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Migrator applies *.sql files in lexical order, once each, tracking them in
// schema_migrations.
type Migrator struct {
	db     migrationDB
	files  fs.FS
	logger *slog.Logger
}

type migrationDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	TxBeginner
}

// NewMigrator builds a Migrator over files, usually migrations.Files.
func NewMigrator(db migrationDB, files fs.FS, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, files: files, logger: logger}
}

// Up runs every pending migration, each in its own transaction, and returns
// the filenames it applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if _, err := m.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
	filename   TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return nil, fmt.Errorf("platform/db: create schema_migrations: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := Pending(m.files, applied)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, name := range pending {
		content, err := fs.ReadFile(m.files, name)
		if err != nil {
			return done, fmt.Errorf("platform/db: read %s: %w", name, err)
		}
		if err := m.apply(ctx, name, string(content)); err != nil {
			return done, err
		}
		m.logger.Info("migration applied", slog.String("file", name))
		done = append(done, name)
	}
	return done, nil
}

func (m *Migrator) apply(ctx context.Context, name, sql string) error {
	return WithTx(ctx, m.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("platform/db: run %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			return fmt.Errorf("platform/db: record %s: %w", name, err)
		}
		return nil
	})
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.Query(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("platform/db: list applied migrations: %w", err)
	}
	defer rows.Close()
	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// Pending lists the *.sql files in files that are not in applied, sorted.
func Pending(files fs.FS, applied map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("platform/db: read migrations: %w", err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") || applied[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
