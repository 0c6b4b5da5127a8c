// Package ledger keeps a hash-chained audit trail of threat lifecycle events.
//
// The chain starts at a genesis entry whose Hash is GenesisHash (64 hex
// zeros). Each later entry stores the hash of its predecessor, so Verify
// detects any rewritten or removed record.
package ledger

import (
	"context"
	"errors"
)

// Action names a threat lifecycle event.
type Action string

const (
	ActionGenesis  Action = "genesis"
	ActionSubmit   Action = "submit"
	ActionAnalyze  Action = "analyze"
	ActionRefresh  Action = "refresh"
	ActionSteps    Action = "steps"
	ActionDelete   Action = "delete"
	ActionGenerate Action = "generate"
	ActionSample   Action = "sample"
	ActionClear    Action = "clear"
)

// SystemActor is recorded for changes not attributed to a caller.
const SystemActor = "biosec-system"

// ErrOutOfRange is returned by Get for an index past the chain tip.
var ErrOutOfRange = errors.New("ledger index out of range")

// Ledger is the append-only audit log.
type Ledger interface {
	// Append chains a new entry. payload is JSON-encoded and only its SHA-256
	// is stored.
	Append(ctx context.Context, threatID string, action Action, actor string, payload any) (*Entry, error)
	Get(ctx context.Context, index int) (*Entry, error)
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]*Entry, error)
	// Len counts entries including genesis.
	Len(ctx context.Context) (int, error)
	Verify(ctx context.Context) error
	// Root is the hash of the chain tip.
	Root(ctx context.Context) (string, error)
}
