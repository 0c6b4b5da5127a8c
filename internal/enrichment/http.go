package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cjmcneal02/Biosec-Project/internal/insights"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// AI gateway routes, relative to the gateway base URL.
const (
	RouteAnalyze        = "/api/ai/analyze-threat"
	RouteSteps          = "/api/ai/generate-steps"
	RouteContextualize  = "/api/ai/contextualize"
	RouteGenerate       = "/api/ai/generate-threats"
	RouteRecommendation = "/api/ai/dashboard-recommendation"
)

const maxGatewayResponse = 1 << 20

// StepsRequest is the body of the generate-steps route.
type StepsRequest struct {
	Threat threat.Input      `json:"threat"`
	Layer1 threat.Assessment `json:"layer1"`
}

// ContextRequest is the body of the contextualize route.
type ContextRequest struct {
	Threat threat.Input          `json:"threat"`
	Layer1 threat.Assessment     `json:"layer1"`
	Layer2 threat.MitigationPlan `json:"layer2"`
}

// GenerateRequest is the body of the generate-threats route.
type GenerateRequest struct {
	Count int `json:"count"`
}

// RecommendationRequest is the body of the dashboard-recommendation route.
type RecommendationRequest struct {
	Threats  []*threat.Threat        `json:"threats"`
	Insights insights.GlobalInsights `json:"insights"`
}

// HTTPAnalyzer calls a remote AI gateway. A non-2xx status, an "error" field
// in the body, or a body that is not a JSON object are all errors.
type HTTPAnalyzer struct {
	base       string
	httpClient *http.Client
	now        func() time.Time
}

// HTTPOption configures an HTTPAnalyzer.
type HTTPOption func(*HTTPAnalyzer)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(a *HTTPAnalyzer) { a.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(a *HTTPAnalyzer) { a.httpClient = &http.Client{Timeout: d} }
}

// NewHTTPAnalyzer creates a gateway client rooted at base.
func NewHTTPAnalyzer(base string, opts ...HTTPOption) *HTTPAnalyzer {
	a := &HTTPAnalyzer{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assess implements Analyzer.
func (a *HTTPAnalyzer) Assess(ctx context.Context, in threat.Input) (threat.Assessment, error) {
	raw, err := a.post(ctx, RouteAnalyze, in)
	if err != nil {
		return threat.Assessment{}, err
	}
	return AssessmentFromPayload(raw, a.now()), nil
}

// PlanMitigation implements Analyzer.
func (a *HTTPAnalyzer) PlanMitigation(ctx context.Context, in threat.Input, l1 threat.Assessment) (threat.MitigationPlan, error) {
	raw, err := a.post(ctx, RouteSteps, StepsRequest{Threat: in, Layer1: l1})
	if err != nil {
		return threat.MitigationPlan{}, err
	}
	return MitigationFromPayload(raw, l1, a.now()), nil
}

// Contextualize implements Analyzer.
func (a *HTTPAnalyzer) Contextualize(ctx context.Context, in threat.Input, l1 threat.Assessment, l2 threat.MitigationPlan) (threat.ContextInsights, error) {
	raw, err := a.post(ctx, RouteContextualize, ContextRequest{Threat: in, Layer1: l1, Layer2: l2})
	if err != nil {
		return threat.ContextInsights{}, err
	}
	return ContextFromPayload(raw, a.now()), nil
}

// GenerateThreats implements Generator.
func (a *HTTPAnalyzer) GenerateThreats(ctx context.Context, count int) ([]threat.Input, error) {
	raw, err := a.post(ctx, RouteGenerate, GenerateRequest{Count: count})
	if err != nil {
		return nil, err
	}
	list, ok := raw["threats"].([]any)
	if !ok {
		return nil, fmt.Errorf("gateway response missing threats array")
	}
	items := make([]threat.Input, 0, len(list))
	for _, v := range list {
		obj, _ := v.(map[string]any)
		items = append(items, threat.Input{
			Title:       stringField(obj, "title"),
			Description: stringField(obj, "description"),
			Date:        stringField(obj, "date"),
			Source:      stringField(obj, "source"),
		})
	}
	return RepairInputs(items, count, a.now()), nil
}

// Recommend implements Advisor.
func (a *HTTPAnalyzer) Recommend(ctx context.Context, threats []*threat.Threat, summary insights.GlobalInsights) (string, error) {
	raw, err := a.post(ctx, RouteRecommendation, RecommendationRequest{Threats: threats, Insights: summary})
	if err != nil {
		return "", err
	}
	rec := strings.TrimSpace(stringField(raw, "recommendation"))
	if rec == "" {
		return RecommendationFallback, nil
	}
	return rec, nil
}

func (a *HTTPAnalyzer) post(ctx context.Context, route string, body any) (map[string]any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+route, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayResponse))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, truncate(string(payload), 200))
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("gateway returned an empty body")
	}
	if msg, ok := raw["error"]; ok && msg != nil && msg != "" {
		return nil, fmt.Errorf("gateway error: %v", msg)
	}
	return raw, nil
}
