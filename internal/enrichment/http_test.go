package enrichment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/insights"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

func gateway(t *testing.T, routes map[string]http.HandlerFunc) *HTTPAnalyzer {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := NewHTTPAnalyzer(srv.URL, WithTimeout(2*time.Second))
	a.now = func() time.Time { return fixedNow }
	return a
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestHTTPAnalyzer_Assess(t *testing.T) {
	var got threat.Input
	a := gateway(t, map[string]http.HandlerFunc{
		RouteAnalyze: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			_ = json.NewDecoder(r.Body).Decode(&got)
			writeJSON(w, http.StatusOK, `{"risk": 81, "category": "Biotech Malware", "summary": "s", "confidence": 0.9, "timestamp": "2024-01-15T10:30:00.000Z"}`)
		},
	})

	l1, err := a.Assess(context.Background(), sampleInput)
	require.NoError(t, err)

	assert.Equal(t, sampleInput, got)
	assert.Equal(t, 81, l1.Risk)
	assert.Equal(t, threat.CategoryBiotechMalware, l1.Category)
	assert.True(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC).Equal(l1.Timestamp))
}

func TestHTTPAnalyzer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-2xx", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, `{"risk": 10}`)
		}},
		{"error field", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"error": "OpenAI API key not configured"}`)
		}},
		{"malformed", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"risk": `)
		}},
		{"not an object", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `null`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := gateway(t, map[string]http.HandlerFunc{RouteAnalyze: tt.handler})
			_, err := a.Assess(context.Background(), sampleInput)
			assert.Error(t, err)
		})
	}
}

func TestHTTPAnalyzer_PipelineFallsBackOnGatewayFailure(t *testing.T) {
	a := gateway(t, map[string]http.HandlerFunc{
		RouteAnalyze: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadGateway, `{"error": "upstream"}`)
		},
	})
	p := NewPipeline(a, newTestFallback(21), zap.NewNop())

	ai := p.Analyze(context.Background(), sampleInput)

	assert.True(t, ai.Layer1.Category.Valid())
	assert.Len(t, ai.Layer2.Mitigations, 4)
	require.NotNil(t, ai.Layer3)
	assert.Equal(t, PlaceholderRelated, ai.Layer3.RelatedThreats)
}

func TestHTTPAnalyzer_PlanMitigationSendsLayer1(t *testing.T) {
	var got StepsRequest
	a := gateway(t, map[string]http.HandlerFunc{
		RouteSteps: func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			writeJSON(w, http.StatusOK, `{"mitigations": ["x", "y"], "priority": "Low", "estimatedImpact": "i", "recommendedActions": ["z"]}`)
		},
	})
	l1 := threat.Assessment{Risk: 90, Category: threat.CategoryInsider, Confidence: 0.8}

	plan, err := a.PlanMitigation(context.Background(), sampleInput, l1)
	require.NoError(t, err)

	assert.Equal(t, 90, got.Layer1.Risk)
	assert.Equal(t, []string{"x", "y"}, plan.Mitigations)
	assert.Equal(t, threat.PriorityLow, plan.Priority)
}

func TestHTTPAnalyzer_GenerateThreats(t *testing.T) {
	a := gateway(t, map[string]http.HandlerFunc{
		RouteGenerate: func(w http.ResponseWriter, r *http.Request) {
			var req GenerateRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			assert.Equal(t, 2, req.Count)
			writeJSON(w, http.StatusOK, `{"threats": [
				{"title": "a", "description": "b", "date": "2024-02-01", "source": "c"},
				{"title": "only title"},
				{"title": "extra"}
			]}`)
		},
	})

	items, err := a.GenerateThreats(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "only title", items[1].Title)
	assert.Equal(t, DefaultSource, items[1].Source)
	assert.Equal(t, "2024-03-01", items[1].Date)
}

func TestHTTPAnalyzer_GenerateThreatsMissingArray(t *testing.T) {
	a := gateway(t, map[string]http.HandlerFunc{
		RouteGenerate: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"threats": "none"}`)
		},
	})
	_, err := a.GenerateThreats(context.Background(), 2)
	assert.Error(t, err)
}

func TestHTTPAnalyzer_Recommend(t *testing.T) {
	a := gateway(t, map[string]http.HandlerFunc{
		RouteRecommendation: func(w http.ResponseWriter, r *http.Request) {
			var req RecommendationRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			assert.Equal(t, 3, req.Insights.TotalThreats)
			writeJSON(w, http.StatusOK, `{"recommendation": "Patch the sequencers."}`)
		},
	})
	threats := []*threat.Threat{threat.NewPlaceholder(sampleInput, "p", fixedNow)}

	rec, err := a.Recommend(context.Background(), threats, insights.GlobalInsights{TotalThreats: 3})
	require.NoError(t, err)
	assert.Equal(t, "Patch the sequencers.", rec)
}
