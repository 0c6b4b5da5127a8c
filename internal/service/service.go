// Package service owns the threat collection: it runs the enrichment
// pipeline, enforces the analysis state machine, and persists every change
// through a store.Repository before making it visible.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/enrichment"
	"github.com/cjmcneal02/Biosec-Project/internal/insights"
	"github.com/cjmcneal02/Biosec-Project/internal/ledger"
	"github.com/cjmcneal02/Biosec-Project/internal/store"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
	"github.com/cjmcneal02/Biosec-Project/internal/webhooks"
)

var (
	ErrNotFound           = errors.New("threat not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrNotAnalyzed        = errors.New("threat has not been analyzed")
	ErrAlreadyAnalyzed    = errors.New("threat is already analyzed")
)

// DefaultCriticalThreshold is the risk at which a threat.critical event fires.
const DefaultCriticalThreshold = 80

// Enricher runs the analysis layers. *enrichment.Pipeline satisfies it.
type Enricher interface {
	Analyze(ctx context.Context, in threat.Input) threat.Analysis
	PlanMitigation(ctx context.Context, in threat.Input, l1 threat.Assessment) threat.MitigationPlan
}

// Recommender produces the dashboard recommendation.
// *enrichment.Recommender satisfies it.
type Recommender interface {
	Recommend(ctx context.Context, threats []*threat.Threat, summary insights.GlobalInsights) string
}

// cacheInvalidator is implemented by recommenders that cache per snapshot.
type cacheInvalidator interface {
	Invalidate()
}

// WebhookDispatcher delivers threat events. *webhooks.Dispatcher satisfies it.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, eventType string, payload map[string]string)
}

// ThreatService is safe for concurrent use. The collection is copy-on-write:
// a committed slice and the threats in it are never modified.
type ThreatService struct {
	mu      sync.Mutex
	threats []*threat.Threat

	repo        store.Repository
	pipeline    Enricher
	generator   enrichment.Generator
	recommender Recommender
	ledger      ledger.Ledger     // nil = no audit trail
	webhooks    WebhookDispatcher // nil = no alerts

	criticalThreshold int
	autoSeed          bool
	onCollection      func(insights.RiskDistribution)

	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

// New creates a ThreatService. Call Init before use.
func New(repo store.Repository, pipeline Enricher, generator enrichment.Generator, recommender Recommender, logger *zap.Logger) *ThreatService {
	return &ThreatService{
		threats:           []*threat.Threat{},
		repo:              repo,
		pipeline:          pipeline,
		generator:         generator,
		recommender:       recommender,
		criticalThreshold: DefaultCriticalThreshold,
		autoSeed:          true,
		now:               time.Now,
		newID:             func() string { return "THREAT-" + uuid.NewString() },
		logger:            logger,
	}
}

// SetLedger configures the audit ledger.
func (s *ThreatService) SetLedger(l ledger.Ledger) { s.ledger = l }

// SetWebhookDispatcher configures alert delivery.
func (s *ThreatService) SetWebhookDispatcher(d WebhookDispatcher) { s.webhooks = d }

// SetCriticalThreshold sets the minimum risk reported as threat.critical.
func (s *ThreatService) SetCriticalThreshold(risk int) { s.criticalThreshold = risk }

// SetAutoSeed controls whether Init loads the sample threats into an
// empty, never-seeded store. Enabled by default.
func (s *ThreatService) SetAutoSeed(on bool) { s.autoSeed = on }

// SetCollectionRecorder is called with the risk distribution after every
// committed change.
func (s *ThreatService) SetCollectionRecorder(fn func(insights.RiskDistribution)) {
	s.onCollection = fn
}

// SetClock overrides the time source.
func (s *ThreatService) SetClock(now func() time.Time) { s.now = now }

// SetIDGenerator overrides threat id generation.
func (s *ThreatService) SetIDGenerator(fn func() string) { s.newID = fn }

// Init loads the collection from the repository, seeding the sample
// threats the first time an empty store is opened.
func (s *ThreatService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load threats: %w", err)
	}

	if len(loaded) == 0 && s.autoSeed {
		seeded, err := s.repo.IsSeeded(ctx)
		if err != nil {
			return fmt.Errorf("read seeded flag: %w", err)
		}
		if !seeded {
			samples := store.SampleThreats(s.now())
			if err := s.commitLocked(ctx, samples); err != nil {
				return err
			}
			if err := s.repo.MarkSeeded(ctx); err != nil {
				return fmt.Errorf("mark seeded: %w", err)
			}
			s.logger.Info("seeded sample threats", zap.Int("count", len(samples)))
			s.appendLedger(ctx, "", ledger.ActionSample, map[string]string{"count": fmt.Sprint(len(samples))})
			return nil
		}
	}

	s.threats = loaded
	s.record()
	s.logger.Info("threats loaded", zap.Int("count", len(loaded)))
	return nil
}

// commitLocked saves next and, only if that succeeds, makes it current.
// The caller holds s.mu.
func (s *ThreatService) commitLocked(ctx context.Context, next []*threat.Threat) error {
	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("save threats: %w", err)
	}
	s.threats = next
	s.record()
	return nil
}

func (s *ThreatService) record() {
	if s.onCollection == nil {
		return
	}
	s.onCollection(insights.Aggregate(s.threats, s.now()).RiskDistribution)
}

// snapshot returns the current committed collection. It must not be modified.
func (s *ThreatService) snapshot() []*threat.Threat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threats
}

func indexOf(threats []*threat.Threat, id string) int {
	for i, t := range threats {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// replaced returns a copy of threats with position i set to t.
func replaced(threats []*threat.Threat, i int, t *threat.Threat) []*threat.Threat {
	next := make([]*threat.Threat, len(threats))
	copy(next, threats)
	next[i] = t
	return next
}

func cloneAll(threats []*threat.Threat) []*threat.Threat {
	out := make([]*threat.Threat, len(threats))
	for i, t := range threats {
		out[i] = t.Clone()
	}
	return out
}

// appendLedger records an audit entry. Failures are logged, never returned.
// resetRecommendations drops cached recommendations after the collection is
// replaced wholesale.
func (s *ThreatService) resetRecommendations() {
	if inv, ok := s.recommender.(cacheInvalidator); ok {
		inv.Invalidate()
	}
}

func (s *ThreatService) appendLedger(ctx context.Context, threatID string, action ledger.Action, payload any) {
	if s.ledger == nil {
		return
	}
	if _, err := s.ledger.Append(ctx, threatID, action, ledger.SystemActor, payload); err != nil {
		s.logger.Error("ledger append failed (non-fatal)",
			zap.String("action", string(action)),
			zap.String("threat_id", threatID),
			zap.Error(err),
		)
	}
}

func (s *ThreatService) dispatch(ctx context.Context, eventType string, t *threat.Threat) {
	if s.webhooks == nil {
		return
	}
	s.webhooks.Dispatch(ctx, eventType, eventPayload(t))
}

// notifyAnalyzed fires threat.analyzed, plus threat.critical above the
// configured threshold.
func (s *ThreatService) notifyAnalyzed(ctx context.Context, t *threat.Threat) {
	s.dispatch(ctx, webhooks.EventThreatAnalyzed, t)
	if threat.IsAnalyzed(t) && t.Risk() >= s.criticalThreshold {
		s.dispatch(ctx, webhooks.EventThreatCritical, t)
	}
}

func eventPayload(t *threat.Threat) map[string]string {
	p := map[string]string{
		"id":     t.ID,
		"title":  t.Title,
		"source": t.Source,
		"status": string(t.Status),
	}
	if threat.IsAnalyzed(t) {
		p["risk"] = fmt.Sprint(t.AI.Layer1.Risk)
		p["level"] = string(threat.Classify(t.AI.Layer1.Risk))
		p["category"] = string(t.AI.Layer1.Category)
		p["priority"] = string(t.AI.Layer2.Priority)
	}
	return p
}

func auditPayload(t *threat.Threat) map[string]string {
	p := map[string]string{"title": t.Title, "status": string(t.Status)}
	if threat.IsAnalyzed(t) {
		p["risk"] = fmt.Sprint(t.AI.Layer1.Risk)
		p["category"] = string(t.AI.Layer1.Category)
	}
	return p
}
