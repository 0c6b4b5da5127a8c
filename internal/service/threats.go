package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/ledger"
	"github.com/cjmcneal02/Biosec-Project/internal/store"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
	"github.com/cjmcneal02/Biosec-Project/internal/webhooks"
)

// Sort orders for List.
const (
	SortDate = "date"
	SortRisk = "risk"
)

// Bulk generation bounds.
const (
	DefaultGenerateCount = 25
	MaxGenerateCount     = 100
)

// ListOptions filters and orders List results. Zero values list everything
// newest first.
type ListOptions struct {
	Category threat.Category
	Sort     string
}

// Submit analyzes in and prepends the resulting threat to the collection.
func (s *ThreatService) Submit(ctx context.Context, in threat.Input) (*threat.Threat, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	analysis := s.pipeline.Analyze(ctx, in)

	s.mu.Lock()
	t := threat.NewAnalyzed(in, s.newID(), analysis, s.now())
	next := make([]*threat.Threat, 0, len(s.threats)+1)
	next = append(next, t)
	next = append(next, s.threats...)
	err := s.commitLocked(ctx, next)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.logger.Info("threat submitted",
		zap.String("id", t.ID),
		zap.Int("risk", t.Risk()),
		zap.String("category", string(t.AI.Layer1.Category)),
	)
	s.appendLedger(ctx, t.ID, ledger.ActionSubmit, auditPayload(t))
	s.dispatch(ctx, webhooks.EventThreatSubmitted, t)
	if t.Risk() >= s.criticalThreshold {
		s.dispatch(ctx, webhooks.EventThreatCritical, t)
	}
	return t.Clone(), nil
}

// Get returns a copy of the threat with the given id.
func (s *ThreatService) Get(_ context.Context, id string) (*threat.Threat, error) {
	threats := s.snapshot()
	i := indexOf(threats, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return threats[i].Clone(), nil
}

// List returns copies of the threats matching opts. A category filter only
// matches analyzed threats.
func (s *ThreatService) List(_ context.Context, opts ListOptions) ([]*threat.Threat, error) {
	if opts.Category != "" && !opts.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, opts.Category)
	}
	switch opts.Sort {
	case "", SortDate, SortRisk:
	default:
		return nil, fmt.Errorf("%w: unknown sort %q", ErrInvalidInput, opts.Sort)
	}

	out := []*threat.Threat{}
	for _, t := range s.snapshot() {
		if opts.Category != "" {
			if c, ok := t.Category(); !ok || c != opts.Category {
				continue
			}
		}
		out = append(out, t.Clone())
	}

	if opts.Sort == SortRisk {
		slices.SortStableFunc(out, func(a, b *threat.Threat) int {
			return cmp.Compare(b.Risk(), a.Risk())
		})
	} else {
		slices.SortStableFunc(out, func(a, b *threat.Threat) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}
	return out, nil
}

// Delete removes a threat. It is allowed in every state; an analysis still
// running for it is discarded when it completes.
func (s *ThreatService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	i := indexOf(s.threats, id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	removed := s.threats[i]
	next := slices.Concat(s.threats[:i], s.threats[i+1:])
	err := s.commitLocked(ctx, next)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Info("threat deleted", zap.String("id", id))
	s.appendLedger(ctx, id, ledger.ActionDelete, auditPayload(removed))
	return nil
}

// Analyze runs the full pipeline for an unanalyzed threat.
func (s *ThreatService) Analyze(ctx context.Context, id string) (*threat.Threat, error) {
	t, prev, err := s.beginAnalysis(id, func(t *threat.Threat) error {
		if t.Status == threat.StatusAnalyzed {
			return ErrAlreadyAnalyzed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	analysis := s.pipeline.Analyze(ctx, t.Input)
	done, err := s.finishAnalysis(ctx, id, prev, func(t *threat.Threat) {
		t.AI = &analysis
	})
	if err != nil {
		return nil, err
	}

	s.appendLedger(ctx, id, ledger.ActionAnalyze, auditPayload(done))
	s.notifyAnalyzed(ctx, done)
	return done.Clone(), nil
}

// Refresh re-runs every layer for an analyzed threat.
func (s *ThreatService) Refresh(ctx context.Context, id string) (*threat.Threat, error) {
	t, prev, err := s.beginAnalysis(id, requireAnalyzed)
	if err != nil {
		return nil, err
	}

	analysis := s.pipeline.Analyze(ctx, t.Input)
	done, err := s.finishAnalysis(ctx, id, prev, func(t *threat.Threat) {
		t.AI = &analysis
	})
	if err != nil {
		return nil, err
	}

	s.appendLedger(ctx, id, ledger.ActionRefresh, auditPayload(done))
	s.notifyAnalyzed(ctx, done)
	return done.Clone(), nil
}

// GenerateSteps regenerates the mitigation plan from the existing
// assessment. Layers 1 and 3 are kept.
func (s *ThreatService) GenerateSteps(ctx context.Context, id string) (*threat.Threat, error) {
	t, prev, err := s.beginAnalysis(id, requireAnalyzed)
	if err != nil {
		return nil, err
	}

	plan := s.pipeline.PlanMitigation(ctx, t.Input, t.AI.Layer1)
	done, err := s.finishAnalysis(ctx, id, prev, func(t *threat.Threat) {
		t.AI.Layer2 = plan
	})
	if err != nil {
		return nil, err
	}

	s.appendLedger(ctx, id, ledger.ActionSteps, map[string]string{
		"priority": string(plan.Priority),
		"steps":    fmt.Sprint(len(plan.Mitigations)),
	})
	return done.Clone(), nil
}

func requireAnalyzed(t *threat.Threat) error {
	if t.Status == threat.StatusUnanalyzed || t.AI == nil {
		return ErrNotAnalyzed
	}
	return nil
}

// beginAnalysis moves a threat into the analyzing state. The mark is not
// persisted. It returns a copy of the threat and the status to restore if
// the analysis cannot be committed.
func (s *ThreatService) beginAnalysis(id string, allowed func(*threat.Threat) error) (*threat.Threat, threat.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.threats, id)
	if i < 0 {
		return nil, "", ErrNotFound
	}
	cur := s.threats[i]
	if cur.Status == threat.StatusAnalyzing {
		return nil, "", ErrAnalysisInProgress
	}
	if err := allowed(cur); err != nil {
		return nil, "", err
	}

	marked := cur.Clone()
	marked.Status = threat.StatusAnalyzing
	s.threats = replaced(s.threats, i, marked)
	return cur.Clone(), cur.Status, nil
}

// finishAnalysis applies the result and commits it. If the threat was
// deleted meanwhile the result is dropped with ErrNotFound. If saving fails
// the previous status is restored.
func (s *ThreatService) finishAnalysis(ctx context.Context, id string, prev threat.Status, apply func(*threat.Threat)) (*threat.Threat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.threats, id)
	if i < 0 {
		return nil, ErrNotFound
	}

	done := s.threats[i].Clone()
	apply(done)
	done.Status = threat.StatusAnalyzed
	done.UpdatedAt = s.now().UTC()
	if done.UpdatedAt.Before(done.CreatedAt) {
		done.UpdatedAt = done.CreatedAt
	}

	if err := s.commitLocked(ctx, replaced(s.threats, i, done)); err != nil {
		restored := s.threats[i].Clone()
		restored.Status = prev
		s.threats = replaced(s.threats, i, restored)
		return nil, err
	}
	return done, nil
}

// Generate creates count unanalyzed threats from the generator and prepends
// them, or replaces the whole collection when replace is set. count must be
// within 1..MaxGenerateCount; zero means DefaultGenerateCount.
func (s *ThreatService) Generate(ctx context.Context, count int, replace bool) ([]*threat.Threat, error) {
	if count == 0 {
		count = DefaultGenerateCount
	}
	if count < 1 || count > MaxGenerateCount {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidInput, MaxGenerateCount)
	}

	inputs, err := s.generator.GenerateThreats(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("generate threats: %w", err)
	}

	s.mu.Lock()
	now := s.now()
	created := make([]*threat.Threat, 0, len(inputs))
	for _, in := range inputs {
		created = append(created, threat.NewPlaceholder(in, s.newID(), now))
	}
	next := make([]*threat.Threat, 0, len(created)+len(s.threats))
	next = append(next, created...)
	if !replace {
		next = append(next, s.threats...)
	}
	err = s.commitLocked(ctx, next)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.logger.Info("threats generated", zap.Int("count", len(created)), zap.Bool("replace", replace))
	s.appendLedger(ctx, "", ledger.ActionGenerate, map[string]string{
		"count":   fmt.Sprint(len(created)),
		"replace": fmt.Sprint(replace),
	})
	return cloneAll(created), nil
}

// LoadSampleData replaces the collection with the sample threats and marks
// the store as seeded.
func (s *ThreatService) LoadSampleData(ctx context.Context) ([]*threat.Threat, error) {
	s.mu.Lock()
	samples := store.SampleThreats(s.now())
	err := s.commitLocked(ctx, samples)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.resetRecommendations()
	if err := s.repo.MarkSeeded(ctx); err != nil {
		return nil, fmt.Errorf("mark seeded: %w", err)
	}

	s.appendLedger(ctx, "", ledger.ActionSample, map[string]string{"count": fmt.Sprint(len(samples))})
	return cloneAll(samples), nil
}

// Clear removes every threat. The seeded flag is kept so samples are not
// reloaded on the next start.
func (s *ThreatService) Clear(ctx context.Context) error {
	s.mu.Lock()
	removed := len(s.threats)
	err := s.commitLocked(ctx, []*threat.Threat{})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.resetRecommendations()
	s.logger.Info("threats cleared", zap.Int("count", removed))
	s.appendLedger(ctx, "", ledger.ActionClear, map[string]string{"count": fmt.Sprint(removed)})
	return nil
}
