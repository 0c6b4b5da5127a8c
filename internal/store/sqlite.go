package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// DefaultSQLitePath is used when the sqlite driver has no path configured.
const DefaultSQLitePath = "./data/biosec.db"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS threats (
		position INTEGER NOT NULL,
		id       TEXT    NOT NULL PRIMARY KEY,
		data     TEXT    NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS store_meta (
		key   TEXT NOT NULL PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

const seededKey = "seeded"

// SQLiteStore keeps one row per threat, ordered by position, in a local
// SQLite database (modernc.org/sqlite, no cgo).
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultSQLitePath
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serialises writers and keeps :memory: databases
	// shared between statements.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Load implements Repository.
func (s *SQLiteStore) Load(ctx context.Context) ([]*threat.Threat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM threats ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query threats: %w", err)
	}
	defer rows.Close()

	threats := []*threat.Threat{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan threat: %w", err)
		}
		t, err := decodeThreat([]byte(data))
		if err != nil {
			return nil, err
		}
		threats = append(threats, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return normalizeLoaded(threats), nil
}

// Save implements Repository. The old rows are replaced inside a single
// transaction.
func (s *SQLiteStore) Save(ctx context.Context, threats []*threat.Threat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM threats`); err != nil {
		return fmt.Errorf("clear threats: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO threats (position, id, data) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range threats {
		data, err := encodeThreat(t)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, i, t.ID, string(data)); err != nil {
			return fmt.Errorf("insert threat %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IsSeeded implements Repository.
func (s *SQLiteStore) IsSeeded(ctx context.Context) (bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, seededKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read seeded flag: %w", err)
	}
	return v == "true", nil
}

// MarkSeeded implements Repository.
func (s *SQLiteStore) MarkSeeded(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO store_meta (key, value) VALUES (?, 'true')
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, seededKey)
	if err != nil {
		return fmt.Errorf("write seeded flag: %w", err)
	}
	return nil
}

// Close implements Repository.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
