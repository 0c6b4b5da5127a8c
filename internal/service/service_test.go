package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/enrichment"
	"github.com/cjmcneal02/Biosec-Project/internal/insights"
	"github.com/cjmcneal02/Biosec-Project/internal/ledger"
	"github.com/cjmcneal02/Biosec-Project/internal/store"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
	"github.com/cjmcneal02/Biosec-Project/internal/webhooks"
)

var testNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

var validInput = threat.Input{
	Title:       "Badge cloning at Lab C",
	Description: "Cloned badge used after hours",
	Date:        "2024-02-28",
	Source:      "Physical Security",
}

var errAIDown = errors.New("ai gateway unavailable")

// failingAnalyzer fails every layer so the pipeline always falls back.
type failingAnalyzer struct{}

func (failingAnalyzer) Assess(context.Context, threat.Input) (threat.Assessment, error) {
	return threat.Assessment{}, errAIDown
}

func (failingAnalyzer) PlanMitigation(context.Context, threat.Input, threat.Assessment) (threat.MitigationPlan, error) {
	return threat.MitigationPlan{}, errAIDown
}

func (failingAnalyzer) Contextualize(context.Context, threat.Input, threat.Assessment, threat.MitigationPlan) (threat.ContextInsights, error) {
	return threat.ContextInsights{}, errAIDown
}

// fixedEnricher returns the same analysis for every threat.
type fixedEnricher struct{ risk int }

func (f fixedEnricher) Analyze(_ context.Context, _ threat.Input) threat.Analysis {
	return threat.Analysis{
		Layer1: threat.Assessment{Risk: f.risk, Category: threat.CategoryInsider, Summary: "s", Confidence: 0.9, Timestamp: testNow},
		Layer2: f.PlanMitigation(context.Background(), threat.Input{}, threat.Assessment{}),
	}
}

func (f fixedEnricher) PlanMitigation(context.Context, threat.Input, threat.Assessment) threat.MitigationPlan {
	return threat.MitigationPlan{
		Mitigations:        []string{"fixed step"},
		Priority:           enrichment.PriorityForRisk(f.risk),
		EstimatedImpact:    "impact",
		RecommendedActions: []string{"act"},
		Timestamp:          testNow,
	}
}

// flakyRepo wraps a MemoryStore and fails Save on demand.
type flakyRepo struct {
	*store.MemoryStore
	mu       sync.Mutex
	failSave bool
}

func (r *flakyRepo) setFail(on bool) {
	r.mu.Lock()
	r.failSave = on
	r.mu.Unlock()
}

func (r *flakyRepo) Save(ctx context.Context, threats []*threat.Threat) error {
	r.mu.Lock()
	fail := r.failSave
	r.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return r.MemoryStore.Save(ctx, threats)
}

type recordedEvent struct {
	Type    string
	Payload map[string]string
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (d *recordingDispatcher) Dispatch(_ context.Context, eventType string, payload map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, recordedEvent{eventType, payload})
}

func (d *recordingDispatcher) types() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.events))
	for i, e := range d.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc      *ThreatService
	repo     *flakyRepo
	ledger   *ledger.MemoryLedger
	webhooks *recordingDispatcher
}

func testFallback() *enrichment.Fallback {
	return enrichment.NewFallback(
		enrichment.WithRand(rand.New(rand.NewPCG(1, 2))),
		enrichment.WithDelay(0, 0),
		enrichment.WithClock(func() time.Time { return testNow }),
	)
}

func newFixture(t *testing.T, enricher Enricher, autoSeed bool) *fixture {
	t.Helper()
	fb := testFallback()
	if enricher == nil {
		enricher = enrichment.NewPipeline(failingAnalyzer{}, fb, zap.NewNop())
	}
	f := &fixture{
		repo:     &flakyRepo{MemoryStore: store.NewMemoryStore()},
		ledger:   ledger.NewMemory(),
		webhooks: &recordingDispatcher{},
	}
	f.svc = New(f.repo, enricher, fb, enrichment.NewRecommender(nil, 0, zap.NewNop()), zap.NewNop())
	f.svc.SetClock(func() time.Time { return testNow })
	f.svc.SetLedger(f.ledger)
	f.svc.SetWebhookDispatcher(f.webhooks)
	f.svc.SetAutoSeed(autoSeed)

	seq := 0
	f.svc.SetIDGenerator(func() string {
		seq++
		return fmt.Sprintf("THREAT-%03d", seq)
	})
	require.NoError(t, f.svc.Init(context.Background()))
	return f
}

func (f *fixture) ledgerActions(t *testing.T) []ledger.Action {
	t.Helper()
	entries, err := f.ledger.Recent(context.Background(), 100)
	require.NoError(t, err)
	var out []ledger.Action
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Action != ledger.ActionGenesis {
			out = append(out, entries[i].Action)
		}
	}
	return out
}

func TestInit_SeedsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, true)

	list, err := f.svc.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 7)

	seeded, err := f.repo.IsSeeded(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.Equal(t, []ledger.Action{ledger.ActionSample}, f.ledgerActions(t))

	require.NoError(t, f.svc.Clear(ctx))

	again := New(f.repo, fixedEnricher{}, testFallback(), nil, zap.NewNop())
	require.NoError(t, again.Init(ctx))
	list, err = again.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list, "a cleared store is not reseeded")
}

func TestInit_AutoSeedDisabled(t *testing.T) {
	f := newFixture(t, nil, false)
	list, err := f.svc.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubmit_FallsBackEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, true)

	got, err := f.svc.Submit(ctx, validInput)
	require.NoError(t, err)

	assert.Equal(t, "THREAT-001", got.ID)
	assert.Equal(t, threat.StatusAnalyzed, got.Status)
	assert.True(t, threat.IsAnalyzed(got))
	assert.Equal(t, testNow, got.CreatedAt)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)

	l1 := got.AI.Layer1
	assert.GreaterOrEqual(t, l1.Risk, 15)
	assert.LessOrEqual(t, l1.Risk, 95)
	assert.GreaterOrEqual(t, l1.Confidence, 0.7)
	assert.LessOrEqual(t, l1.Confidence, 1.0)
	assert.True(t, l1.Category.Valid())
	assert.Len(t, got.AI.Layer2.Mitigations, 4)
	assert.Equal(t, enrichment.PriorityForRisk(l1.Risk), got.AI.Layer2.Priority)
	require.NotNil(t, got.AI.Layer3)
	assert.Equal(t, enrichment.PlaceholderRelated, got.AI.Layer3.RelatedThreats)

	list, err := f.svc.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 8)
	assert.Equal(t, got.ID, list[0].ID, "newest first")

	persisted, err := f.repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 8)
	assert.Equal(t, got.ID, persisted[0].ID, "submitted threats are prepended")

	assert.Equal(t, []ledger.Action{ledger.ActionSample, ledger.ActionSubmit}, f.ledgerActions(t))
	assert.Contains(t, f.webhooks.types(), webhooks.EventThreatSubmitted)
	assert.NoError(t, f.ledger.Verify(ctx))
}

func TestSubmit_InvalidInput(t *testing.T) {
	f := newFixture(t, nil, false)
	in := validInput
	in.Source = ""

	_, err := f.svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, threat.ErrMissingField)
	assert.Empty(t, f.webhooks.types())
}

func TestSubmit_SaveFailureLeavesCollectionIntact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, true)
	f.repo.setFail(true)

	_, err := f.svc.Submit(ctx, validInput)
	require.Error(t, err)

	list, _ := f.svc.List(ctx, ListOptions{})
	assert.Len(t, list, 7)
	assert.Equal(t, []ledger.Action{ledger.ActionSample}, f.ledgerActions(t))
}

func TestSubmit_CriticalAlert(t *testing.T) {
	f := newFixture(t, fixedEnricher{risk: 92}, false)
	_, err := f.svc.Submit(context.Background(), validInput)
	require.NoError(t, err)
	assert.Equal(t, []string{webhooks.EventThreatSubmitted, webhooks.EventThreatCritical}, f.webhooks.types())

	f = newFixture(t, fixedEnricher{risk: 40}, false)
	_, err = f.svc.Submit(context.Background(), validInput)
	require.NoError(t, err)
	assert.Equal(t, []string{webhooks.EventThreatSubmitted}, f.webhooks.types())
}

func TestGetAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, true)

	got, err := f.svc.Get(ctx, "threat-003")
	require.NoError(t, err)
	got.Title = "mutated"
	again, _ := f.svc.Get(ctx, "threat-003")
	assert.NotEqual(t, "mutated", again.Title, "Get returns a copy")

	_, err = f.svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, "threat-003"))
	_, err = f.svc.Get(ctx, "threat-003")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, "threat-003"), ErrNotFound)

	persisted, _ := f.repo.Load(ctx)
	assert.Len(t, persisted, 6)
	assert.Equal(t, []ledger.Action{ledger.ActionSample, ledger.ActionDelete}, f.ledgerActions(t))
}

func TestList_FilterAndSort(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, true)

	byDate, err := f.svc.List(ctx, ListOptions{Sort: SortDate})
	require.NoError(t, err)
	for i := 1; i < len(byDate); i++ {
		assert.False(t, byDate[i].CreatedAt.After(byDate[i-1].CreatedAt))
	}
	assert.Equal(t, "threat-007", byDate[0].ID)

	byRisk, err := f.svc.List(ctx, ListOptions{Sort: SortRisk})
	require.NoError(t, err)
	for i := 1; i < len(byRisk); i++ {
		assert.LessOrEqual(t, byRisk[i].Risk(), byRisk[i-1].Risk())
	}

	exfil, err := f.svc.List(ctx, ListOptions{Category: threat.CategoryDataExfiltration})
	require.NoError(t, err)
	require.NotEmpty(t, exfil)
	for _, th := range exfil {
		c, ok := th.Category()
		assert.True(t, ok)
		assert.Equal(t, threat.CategoryDataExfiltration, c)
	}

	_, err = f.svc.List(ctx, ListOptions{Category: "Alien Invasion"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.List(ctx, ListOptions{Sort: "title"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestList_CategoryFilterSkipsUnanalyzed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, false)
	_, err := f.svc.Generate(ctx, 3, false)
	require.NoError(t, err)

	for _, c := range threat.Categories() {
		got, err := f.svc.List(ctx, ListOptions{Category: c})
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestAnalyzeLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, false)

	created, err := f.svc.Generate(ctx, 2, false)
	require.NoError(t, err)
	require.Len(t, created, 2)
	id := created[0].ID
	assert.Equal(t, threat.StatusUnanalyzed, created[0].Status)
	assert.Nil(t, created[0].AI)

	_, err = f.svc.Refresh(ctx, id)
	assert.ErrorIs(t, err, ErrNotAnalyzed)
	_, err = f.svc.GenerateSteps(ctx, id)
	assert.ErrorIs(t, err, ErrNotAnalyzed)

	analyzed, err := f.svc.Analyze(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, threat.StatusAnalyzed, analyzed.Status)
	assert.True(t, threat.IsAnalyzed(analyzed))
	assert.Equal(t, created[0].Input, analyzed.Input, "user fields never change")
	assert.Equal(t, created[0].CreatedAt, analyzed.CreatedAt)

	_, err = f.svc.Analyze(ctx, id)
	assert.ErrorIs(t, err, ErrAlreadyAnalyzed)

	stepped, err := f.svc.GenerateSteps(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, analyzed.AI.Layer1, stepped.AI.Layer1, "layer 1 is kept")
	assert.Equal(t, analyzed.AI.Layer3, stepped.AI.Layer3, "layer 3 is kept")
	assert.Equal(t, enrichment.PriorityForRisk(stepped.AI.Layer1.Risk), stepped.AI.Layer2.Priority)

	refreshed, err := f.svc.Refresh(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, threat.StatusAnalyzed, refreshed.Status)

	_, err = f.svc.Analyze(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []ledger.Action{
		ledger.ActionGenerate, ledger.ActionAnalyze, ledger.ActionSteps, ledger.ActionRefresh,
	}, f.ledgerActions(t))
	assert.Equal(t, []string{webhooks.EventThreatAnalyzed, webhooks.EventThreatAnalyzed}, filterOut(f.webhooks.types(), webhooks.EventThreatCritical))
}

func filterOut(in []string, drop string) []string {
	var out []string
	for _, s := range in {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}

// blockingEnricher parks Analyze until release is closed.
type blockingEnricher struct {
	fixedEnricher
	started chan struct{}
	release chan struct{}
}

func (b *blockingEnricher) Analyze(ctx context.Context, in threat.Input) threat.Analysis {
	close(b.started)
	<-b.release
	return b.fixedEnricher.Analyze(ctx, in)
}

func TestAnalyze_Concurrency(t *testing.T) {
	ctx := context.Background()
	enr := &blockingEnricher{
		fixedEnricher: fixedEnricher{risk: 50},
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	f := newFixture(t, enr, false)
	created, err := f.svc.Generate(ctx, 1, false)
	require.NoError(t, err)
	id := created[0].ID

	errc := make(chan error, 1)
	go func() {
		_, err := f.svc.Analyze(ctx, id)
		errc <- err
	}()
	<-enr.started

	got, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, threat.StatusAnalyzing, got.Status)

	_, err = f.svc.Analyze(ctx, id)
	assert.ErrorIs(t, err, ErrAnalysisInProgress)
	_, err = f.svc.Refresh(ctx, id)
	assert.ErrorIs(t, err, ErrAnalysisInProgress)

	require.NoError(t, f.svc.Delete(ctx, id), "delete is allowed mid-analysis")
	close(enr.release)

	assert.ErrorIs(t, <-errc, ErrNotFound)
	list, _ := f.svc.List(ctx, ListOptions{})
	assert.Empty(t, list)
}

func TestAnalyze_SaveFailureRestoresStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixedEnricher{risk: 30}, false)
	created, err := f.svc.Generate(ctx, 1, false)
	require.NoError(t, err)
	id := created[0].ID

	f.repo.setFail(true)
	_, err = f.svc.Analyze(ctx, id)
	require.Error(t, err)

	got, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, threat.StatusUnanalyzed, got.Status)
	assert.Nil(t, got.AI)

	f.repo.setFail(false)
	_, err = f.svc.Analyze(ctx, id)
	assert.NoError(t, err, "a failed save leaves the threat analyzable")
}

// failingGenerator always errors.
type failingGenerator struct{}

func (failingGenerator) GenerateThreats(context.Context, int) ([]threat.Input, error) {
	return nil, errAIDown
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, true)

	added, err := f.svc.Generate(ctx, 0, false)
	require.NoError(t, err)
	assert.Len(t, added, DefaultGenerateCount)
	list, _ := f.svc.List(ctx, ListOptions{})
	assert.Len(t, list, 7+DefaultGenerateCount)

	replacedAll, err := f.svc.Generate(ctx, 5, true)
	require.NoError(t, err)
	assert.Len(t, replacedAll, 5)
	list, _ = f.svc.List(ctx, ListOptions{})
	assert.Len(t, list, 5)
	for _, th := range list {
		assert.Equal(t, threat.StatusUnanalyzed, th.Status)
		assert.NoError(t, th.Validate())
	}

	for _, n := range []int{-1, MaxGenerateCount + 1} {
		_, err := f.svc.Generate(ctx, n, false)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestGenerate_FailureLeavesCollectionIntact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, true)
	f.svc.generator = failingGenerator{}

	_, err := f.svc.Generate(ctx, 10, true)
	assert.ErrorIs(t, err, errAIDown)
	list, _ := f.svc.List(ctx, ListOptions{})
	assert.Len(t, list, 7)
}

func TestLoadSampleDataAndClear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, false)

	samples, err := f.svc.LoadSampleData(ctx)
	require.NoError(t, err)
	assert.Len(t, samples, 7)
	seeded, _ := f.repo.IsSeeded(ctx)
	assert.True(t, seeded)

	require.NoError(t, f.svc.Clear(ctx))
	list, _ := f.svc.List(ctx, ListOptions{})
	assert.Empty(t, list)
	seeded, _ = f.repo.IsSeeded(ctx)
	assert.True(t, seeded, "clear keeps the seeded flag")

	assert.Equal(t, []ledger.Action{ledger.ActionSample, ledger.ActionClear}, f.ledgerActions(t))
}

type invalidatingRecommender struct {
	calls       int
	invalidated int
}

func (r *invalidatingRecommender) Recommend(context.Context, []*threat.Threat, insights.GlobalInsights) string {
	r.calls++
	return "watch the supply chain"
}

func (r *invalidatingRecommender) Invalidate() { r.invalidated++ }

func TestBulkReplaceInvalidatesRecommendations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, false)
	rec := &invalidatingRecommender{}
	f.svc.recommender = rec

	_, err := f.svc.LoadSampleData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.invalidated)
	assert.Equal(t, "watch the supply chain", f.svc.Recommendation(ctx))

	require.NoError(t, f.svc.Clear(ctx))
	assert.Equal(t, 2, rec.invalidated)
	assert.Equal(t, enrichment.RecommendationEmpty, f.svc.Recommendation(ctx))
	assert.Equal(t, 1, rec.calls)

	f.repo.setFail(true)
	assert.Error(t, f.svc.Clear(ctx))
	assert.Equal(t, 2, rec.invalidated, "failed clear keeps the cache")
}

func TestInsightsTrendAndRecommendation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, true)

	var recorded insights.RiskDistribution
	f.svc.SetCollectionRecorder(func(d insights.RiskDistribution) { recorded = d })

	summary := f.svc.Insights(ctx)
	assert.Equal(t, 7, summary.TotalThreats)
	assert.Equal(t, 77, summary.AvgRisk)

	trend, err := f.svc.Trend(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, trend, insights.DefaultTrendDays)
	_, err = f.svc.Trend(ctx, MaxTrendDays+1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, enrichment.RecommendationFallback, f.svc.Recommendation(ctx))

	require.NoError(t, f.svc.Clear(ctx))
	assert.Equal(t, 0, recorded.Total())
	assert.Equal(t, enrichment.RecommendationEmpty, f.svc.Recommendation(ctx))
	assert.Equal(t, insights.PatternNone, f.svc.Insights(ctx).TrendingPattern)
}
