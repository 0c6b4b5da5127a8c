// Package store persists the threat collection.
//
// The collection is always written as a whole snapshot: Save replaces
// everything Load would return. Backends differ only in where the snapshot
// lives (process memory, a JSON file, SQLite, PostgreSQL or Redis).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// ErrUnsupportedDriver is returned by New for an unknown driver name.
var ErrUnsupportedDriver = errors.New("unsupported store driver")

// Repository is the read/write contract the threat service depends on.
type Repository interface {
	// Load returns the stored collection in stored order. An empty store
	// yields an empty slice, not an error.
	Load(ctx context.Context) ([]*threat.Threat, error)
	// Save atomically replaces the stored collection.
	Save(ctx context.Context, threats []*threat.Threat) error
	// IsSeeded reports whether sample data has ever been loaded.
	IsSeeded(ctx context.Context) (bool, error)
	// MarkSeeded records that sample data has been loaded.
	MarkSeeded(ctx context.Context) error
	Close() error
}

// Driver names accepted by New.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Driver string

	// Path is the JSON file (file) or database file (sqlite).
	Path string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// New opens the backend named by cfg.Driver.
func New(ctx context.Context, cfg Config) (Repository, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverFile:
		return NewFileStore(cfg.Path)
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.Path)
	case DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		ps := NewPostgresStore(pool)
		ps.close = pool.Close
		return ps, nil
	case DriverRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
}

// encodeSnapshot serialises threats in the same JSON shape the browser
// dashboard kept in local storage.
func encodeSnapshot(threats []*threat.Threat) ([]byte, error) {
	if threats == nil {
		threats = []*threat.Threat{}
	}
	data, err := json.Marshal(threats)
	if err != nil {
		return nil, fmt.Errorf("encode threats: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) ([]*threat.Threat, error) {
	if len(data) == 0 {
		return []*threat.Threat{}, nil
	}
	var threats []*threat.Threat
	if err := json.Unmarshal(data, &threats); err != nil {
		return nil, fmt.Errorf("decode threats: %w", err)
	}
	if threats == nil {
		threats = []*threat.Threat{}
	}
	return threats, nil
}

func encodeThreat(t *threat.Threat) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode threat %s: %w", t.ID, err)
	}
	return data, nil
}

func decodeThreat(data []byte) (*threat.Threat, error) {
	var t threat.Threat
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode threat: %w", err)
	}
	return &t, nil
}

// normalizeLoaded resets transient state. An "analyzing" record can only be
// left behind by a process that stopped mid-analysis.
func normalizeLoaded(threats []*threat.Threat) []*threat.Threat {
	for _, t := range threats {
		if t.Status == threat.StatusAnalyzing {
			if threat.IsAnalyzed(t) {
				t.Status = threat.StatusAnalyzed
			} else {
				t.Status = threat.StatusUnanalyzed
				t.AI = nil
			}
		}
	}
	return threats
}
