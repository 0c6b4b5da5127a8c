package main

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/enrichment"
	"github.com/cjmcneal02/Biosec-Project/internal/ledger"
	"github.com/cjmcneal02/Biosec-Project/internal/store"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

func newTestSeeder() (*seeder, *store.MemoryStore, *ledger.MemoryLedger) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := store.NewMemoryStore()
	audit := ledger.NewMemory()
	return &seeder{
		repo:  repo,
		audit: audit,
		generator: enrichment.NewFallback(
			enrichment.WithRand(rand.New(rand.NewPCG(1, 2))),
			enrichment.WithDelay(0, 0),
			enrichment.WithClock(func() time.Time { return now }),
		),
		logger: zap.NewNop(),
		now:    func() time.Time { return now },
	}, repo, audit
}

func TestSeed_emptyStore(t *testing.T) {
	s, repo, audit := newTestSeeder()
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, seedOptions{Generate: 3}))

	threats, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, threats, 10)
	for _, th := range threats[:3] {
		assert.Equal(t, threat.StatusUnanalyzed, th.Status)
		assert.Regexp(t, `^THREAT-`, th.ID)
	}
	assert.Equal(t, "threat-001", threats[3].ID)

	seeded, err := repo.IsSeeded(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	n, err := audit.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	last, err := audit.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ledger.ActionSample, last.Action)
}

func TestSeed_skipsExistingUnlessForced(t *testing.T) {
	s, repo, audit := newTestSeeder()
	ctx := context.Background()

	existing := []*threat.Threat{threat.NewPlaceholder(threat.Input{
		Title: "kept", Description: "d", Date: "2024-03-01", Source: "s",
	}, "THREAT-keep", s.now())}
	require.NoError(t, repo.Save(ctx, existing))

	require.NoError(t, s.Seed(ctx, seedOptions{}))
	threats, _ := repo.Load(ctx)
	require.Len(t, threats, 1)
	n, _ := audit.Len(ctx)
	assert.Equal(t, 1, n, "no ledger entry when skipped")

	require.NoError(t, s.Seed(ctx, seedOptions{Force: true}))
	threats, _ = repo.Load(ctx)
	assert.Len(t, threats, 7)
}
