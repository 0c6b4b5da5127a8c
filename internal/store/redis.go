package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// Key names match the browser dashboard's local-storage keys.
const (
	redisThreatsKey = "biosec_threats"
	redisSeededKey  = "biosec_seeded"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces the keys, e.g. "staging:".
	Prefix string
}

// RedisStore keeps the whole snapshot as one JSON string value. A single
// SET replaces it, so readers never observe a partial write.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, opts.Prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string { return s.prefix + name }

// Load implements Repository.
func (s *RedisStore) Load(ctx context.Context) ([]*threat.Threat, error) {
	data, err := s.client.Get(ctx, s.key(redisThreatsKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []*threat.Threat{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get threats: %w", err)
	}
	threats, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	return normalizeLoaded(threats), nil
}

// Save implements Repository.
func (s *RedisStore) Save(ctx context.Context, threats []*threat.Threat) error {
	data, err := encodeSnapshot(threats)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(redisThreatsKey), data, 0).Err(); err != nil {
		return fmt.Errorf("set threats: %w", err)
	}
	return nil
}

// IsSeeded implements Repository.
func (s *RedisStore) IsSeeded(ctx context.Context) (bool, error) {
	v, err := s.client.Get(ctx, s.key(redisSeededKey)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get seeded flag: %w", err)
	}
	return v == "true", nil
}

// MarkSeeded implements Repository.
func (s *RedisStore) MarkSeeded(ctx context.Context) error {
	if err := s.client.Set(ctx, s.key(redisSeededKey), "true", 0).Err(); err != nil {
		return fmt.Errorf("set seeded flag: %w", err)
	}
	return nil
}

// Close implements Repository.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
