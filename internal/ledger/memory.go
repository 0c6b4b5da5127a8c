package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLedger is a process-local Ledger. History is lost on restart.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []*Entry
	now     func() time.Time
}

// MemoryOption configures a MemoryLedger.
type MemoryOption func(*MemoryLedger)

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLedger) { l.now = now }
}

// NewMemory returns a ledger holding only the genesis entry.
func NewMemory(opts ...MemoryOption) *MemoryLedger {
	l := &MemoryLedger{now: time.Now}
	for _, o := range opts {
		o(l)
	}
	l.entries = []*Entry{genesisEntry(l.now())}
	return l
}

// Append implements Ledger.
func (l *MemoryLedger) Append(_ context.Context, threatID string, action Action, actor string, payload any) (*Entry, error) {
	dataHash, err := payloadHash(payload)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.entries[len(l.entries)-1]
	entry := &Entry{
		Index:     len(l.entries),
		Timestamp: l.now().UTC(),
		ThreatID:  threatID,
		Action:    action,
		Actor:     actor,
		DataHash:  dataHash,
		PrevHash:  prev.Hash,
	}
	entry.Hash = hashEntry(entry)
	l.entries = append(l.entries, entry)
	cp := *entry
	return &cp, nil
}

// Get implements Ledger.
func (l *MemoryLedger) Get(_ context.Context, index int) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.entries) {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}
	cp := *l.entries[index]
	return &cp, nil
}

// Recent implements Ledger.
func (l *MemoryLedger) Recent(_ context.Context, limit int) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := min(max(limit, 0), len(l.entries))
	out := make([]*Entry, 0, n)
	for i := len(l.entries) - 1; i >= len(l.entries)-n; i-- {
		cp := *l.entries[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Len implements Ledger.
func (l *MemoryLedger) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries), nil
}

// Verify implements Ledger.
func (l *MemoryLedger) Verify(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var prev *Entry
	for _, curr := range l.entries {
		if err := checkLink(prev, curr); err != nil {
			return err
		}
		prev = curr
	}
	return nil
}

// Root implements Ledger.
func (l *MemoryLedger) Root(_ context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[len(l.entries)-1].Hash, nil
}
