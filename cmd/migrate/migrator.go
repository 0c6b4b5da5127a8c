package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the migrator needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const createTrackingTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version bigint  NOT NULL,
	dirty   boolean NOT NULL,
	PRIMARY KEY (version)
)`

type migrator struct {
	db    DB
	files fs.FS
	out   io.Writer
}

type migration struct {
	version int64
	name    string
}

// pending lists the up migrations in files ordered by version.
func (m *migrator) pending() ([]migration, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []migration
	seen := make(map[int64]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") || strings.HasSuffix(name, ".down.sql") {
			continue
		}
		ver, err := versionFromFile(name)
		if err != nil {
			return nil, fmt.Errorf("parse version from %s: %w", name, err)
		}
		if prev, dup := seen[ver]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", ver, prev, name)
		}
		seen[ver] = name
		out = append(out, migration{version: ver, name: name})
	}
	slices.SortFunc(out, func(a, b migration) int { return cmp.Compare(a.version, b.version) })
	return out, nil
}

// Up applies every migration not yet recorded as clean and returns how many
// ran. A migration is marked dirty before it runs so a failure stays visible.
func (m *migrator) Up(ctx context.Context) (int, error) {
	if _, err := m.db.Exec(ctx, createTrackingTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	list, err := m.pending()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, mg := range list {
		var done bool
		if err := m.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1 AND dirty = false)`,
			mg.version,
		).Scan(&done); err != nil {
			return applied, fmt.Errorf("check %s: %w", mg.name, err)
		}
		if done {
			fmt.Fprintf(m.out, "  skip  %s (already applied)\n", mg.name)
			continue
		}

		sql, err := fs.ReadFile(m.files, mg.name)
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", mg.name, err)
		}

		if _, err := m.db.Exec(ctx,
			`INSERT INTO schema_migrations (version, dirty) VALUES ($1, true)
			 ON CONFLICT (version) DO UPDATE SET dirty = true`, mg.version,
		); err != nil {
			return applied, fmt.Errorf("mark dirty %s: %w", mg.name, err)
		}
		if _, err := m.db.Exec(ctx, string(sql)); err != nil {
			return applied, fmt.Errorf("apply %s: %w", mg.name, err)
		}
		if _, err := m.db.Exec(ctx,
			`UPDATE schema_migrations SET dirty = false WHERE version = $1`, mg.version,
		); err != nil {
			return applied, fmt.Errorf("mark clean %s: %w", mg.name, err)
		}

		fmt.Fprintf(m.out, "  apply %s\n", mg.name)
		applied++
	}
	return applied, nil
}

// versionFromFile extracts the leading integer from a migration filename:
// "002_audit_ledger.up.sql" → 2.
func versionFromFile(filename string) (int64, error) {
	prefix, _, ok := strings.Cut(filename, "_")
	if !ok {
		return 0, fmt.Errorf("unexpected filename format")
	}
	return strconv.ParseInt(prefix, 10, 64)
}
