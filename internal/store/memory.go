package store

import (
	"context"
	"sync"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// MemoryStore keeps the snapshot in process memory. Loaded threats are deep
// copies, so callers never alias stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	threats []*threat.Threat
	seeded  bool
}

// NewMemoryStore returns an empty, unseeded store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Repository.
func (s *MemoryStore) Load(_ context.Context) ([]*threat.Threat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return normalizeLoaded(cloneAll(s.threats)), nil
}

// Save implements Repository.
func (s *MemoryStore) Save(_ context.Context, threats []*threat.Threat) error {
	cp := cloneAll(threats)
	s.mu.Lock()
	s.threats = cp
	s.mu.Unlock()
	return nil
}

// IsSeeded implements Repository.
func (s *MemoryStore) IsSeeded(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seeded, nil
}

// MarkSeeded implements Repository.
func (s *MemoryStore) MarkSeeded(_ context.Context) error {
	s.mu.Lock()
	s.seeded = true
	s.mu.Unlock()
	return nil
}

// Close implements Repository.
func (s *MemoryStore) Close() error { return nil }

func cloneAll(in []*threat.Threat) []*threat.Threat {
	out := make([]*threat.Threat, 0, len(in))
	for _, t := range in {
		out = append(out, t.Clone())
	}
	return out
}
