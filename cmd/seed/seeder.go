package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/enrichment"
	"github.com/cjmcneal02/Biosec-Project/internal/ledger"
	"github.com/cjmcneal02/Biosec-Project/internal/store"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

type seedOptions struct {
	Force    bool
	Generate int
}

type seeder struct {
	repo      store.Repository
	audit     ledger.Ledger
	generator enrichment.Generator
	logger    *zap.Logger
	now       func() time.Time
}

// Seed writes the sample threats, plus opts.Generate unanalyzed ones in
// front of them, and marks the store seeded.
func (s *seeder) Seed(ctx context.Context, opts seedOptions) error {
	existing, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load existing threats: %w", err)
	}
	if len(existing) > 0 && !opts.Force {
		s.logger.Info("store already has threats, skipping (set SEED_FORCE=1 to replace)",
			zap.Int("count", len(existing)))
		return nil
	}

	now := s.now()
	samples := store.SampleThreats(now)

	var generated []*threat.Threat
	if opts.Generate > 0 {
		inputs, err := s.generator.GenerateThreats(ctx, opts.Generate)
		if err != nil {
			return fmt.Errorf("generate threats: %w", err)
		}
		for _, in := range inputs {
			generated = append(generated, threat.NewPlaceholder(in, "THREAT-"+uuid.NewString(), now))
		}
	}

	all := slices.Concat(generated, samples)
	if err := s.repo.Save(ctx, all); err != nil {
		return fmt.Errorf("save threats: %w", err)
	}
	if err := s.repo.MarkSeeded(ctx); err != nil {
		return fmt.Errorf("mark seeded: %w", err)
	}

	if _, err := s.audit.Append(ctx, "", ledger.ActionSample, ledger.SystemActor, map[string]int{
		"samples":   len(samples),
		"generated": len(generated),
		"replaced":  len(existing),
	}); err != nil {
		// The data is already written; a missing audit entry is not fatal.
		s.logger.Warn("ledger append failed", zap.Error(err))
	}

	s.logger.Info("seeded threats",
		zap.Int("samples", len(samples)),
		zap.Int("generated", len(generated)),
		zap.Int("replaced", len(existing)),
	)
	return nil
}
