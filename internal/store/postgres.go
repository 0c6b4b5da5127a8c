package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// DB is the subset of *pgxpool.Pool used by the Postgres backends.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps one JSONB row per threat. The schema is created by
// cmd/migrate (migrations/001_threats.up.sql).
type PostgresStore struct {
	db    DB
	close func()
}

// NewPostgresStore wraps db. Close does not close db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load implements Repository.
func (s *PostgresStore) Load(ctx context.Context) ([]*threat.Threat, error) {
	rows, err := s.db.Query(ctx, `SELECT data FROM threats ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query threats: %w", err)
	}
	defer rows.Close()

	threats := []*threat.Threat{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan threat: %w", err)
		}
		t, err := decodeThreat(data)
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

// Save implements Repository. Readers see either the old or the new
// snapshot, never a mix.
func (s *PostgresStore) Save(ctx context.Context, threats []*threat.Threat) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM threats`); err != nil {
		return fmt.Errorf("clear threats: %w", err)
	}
	for i, t := range threats {
		data, err := encodeThreat(t)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO threats (position, id, data, updated_at) VALUES ($1, $2, $3, $4)`,
			i, t.ID, data, t.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert threat %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IsSeeded implements Repository.
func (s *PostgresStore) IsSeeded(ctx context.Context) (bool, error) {
	var v string
	err := s.db.QueryRow(ctx, `SELECT value FROM store_meta WHERE key = $1`, seededKey).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read seeded flag: %w", err)
	}
	return v == "true", nil
}

// MarkSeeded implements Repository.
func (s *PostgresStore) MarkSeeded(ctx context.Context) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO store_meta (key, value) VALUES ($1, 'true')
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, seededKey)
	if err != nil {
		return fmt.Errorf("write seeded flag: %w", err)
	}
	return nil
}

// Close implements Repository. It closes the pool only when the store was
// opened by New.
func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
