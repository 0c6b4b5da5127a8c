package enrichment

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// Defaults substituted for missing or malformed fields in real AI output.
const (
	DefaultRisk        = 50
	DefaultConfidence  = 0.85
	DefaultSummary     = "Threat analysis completed."
	DefaultImpact      = "Potential operational impact requires immediate attention."
	DefaultInsight     = "No additional contextual insights available."
	DefaultTitle       = "Unknown Threat"
	DefaultDescription = "No description provided."
	DefaultSource      = "Unknown Source"

	minConfidence = 0.7
	maxConfidence = 1.0
)

var (
	defaultMitigations = []string{
		"Review threat details",
		"Notify security team",
		"Implement monitoring",
	}
	defaultActions = []string{
		"Notify security team immediately",
		"Document all findings",
		"Prepare incident report",
		"Coordinate with IT security",
	}
)

// AssessmentFromPayload decodes a loosely typed layer-1 payload. Risk and
// confidence may arrive as numbers or numeric strings. A risk that parses to
// zero is treated as missing.
func AssessmentFromPayload(raw map[string]any, now time.Time) threat.Assessment {
	risk := intField(raw, "risk", DefaultRisk)
	if risk == 0 {
		risk = DefaultRisk
	}
	return RepairAssessment(threat.Assessment{
		Risk:       risk,
		Category:   threat.Category(stringField(raw, "category")),
		Summary:    stringField(raw, "summary"),
		Confidence: floatField(raw, "confidence", DefaultConfidence),
		Timestamp:  timeField(raw, "timestamp"),
	}, now)
}

// RepairAssessment clamps and defaults every layer-1 field so the result is
// always a valid analyzed assessment.
func RepairAssessment(a threat.Assessment, now time.Time) threat.Assessment {
	a.Risk = min(max(a.Risk, 0), 100)
	if a.Confidence == 0 || math.IsNaN(a.Confidence) {
		a.Confidence = DefaultConfidence
	}
	a.Confidence = min(max(a.Confidence, minConfidence), maxConfidence)
	if !a.Category.Valid() {
		a.Category = threat.DefaultCategory
	}
	a.Summary = strings.TrimSpace(a.Summary)
	if a.Summary == "" {
		a.Summary = DefaultSummary
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = now.UTC()
	}
	return a
}

// MitigationFromPayload decodes a loosely typed layer-2 payload.
func MitigationFromPayload(raw map[string]any, l1 threat.Assessment, now time.Time) threat.MitigationPlan {
	return RepairMitigation(threat.MitigationPlan{
		Mitigations:        stringList(raw["mitigations"]),
		Priority:           parsePriority(stringField(raw, "priority")),
		EstimatedImpact:    stringField(raw, "estimatedImpact"),
		RecommendedActions: stringList(raw["recommendedActions"]),
		Timestamp:          timeField(raw, "timestamp"),
	}, l1, now)
}

// RepairMitigation fills empty lists with the default steps and derives a
// missing or unknown priority from the layer-1 risk.
func RepairMitigation(p threat.MitigationPlan, l1 threat.Assessment, now time.Time) threat.MitigationPlan {
	if p.Mitigations = nonEmpty(p.Mitigations); len(p.Mitigations) == 0 {
		p.Mitigations = clone(defaultMitigations)
	}
	if p.RecommendedActions = nonEmpty(p.RecommendedActions); len(p.RecommendedActions) == 0 {
		p.RecommendedActions = clone(defaultActions)
	}
	if !p.Priority.Valid() {
		p.Priority = PriorityForRisk(l1.Risk)
	}
	p.EstimatedImpact = strings.TrimSpace(p.EstimatedImpact)
	if p.EstimatedImpact == "" {
		p.EstimatedImpact = DefaultImpact
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = now.UTC()
	}
	return p
}

// ContextFromPayload decodes a loosely typed layer-3 payload.
func ContextFromPayload(raw map[string]any, now time.Time) threat.ContextInsights {
	return RepairContext(threat.ContextInsights{
		ContextualInsights: stringField(raw, "contextualInsights"),
		RelatedThreats:     stringList(raw["relatedThreats"]),
		Timestamp:          timeField(raw, "timestamp"),
	}, now)
}

// RepairContext defaults the insight text and normalises the related ids to
// a non-nil list.
func RepairContext(c threat.ContextInsights, now time.Time) threat.ContextInsights {
	c.ContextualInsights = strings.TrimSpace(c.ContextualInsights)
	if c.ContextualInsights == "" {
		c.ContextualInsights = DefaultInsight
	}
	c.RelatedThreats = nonEmpty(c.RelatedThreats)
	if c.Timestamp.IsZero() {
		c.Timestamp = now.UTC()
	}
	return c
}

// RepairInputs truncates generated reports to count and fills missing fields.
func RepairInputs(items []threat.Input, count int, now time.Time) []threat.Input {
	if len(items) > count {
		items = items[:count]
	}
	today := now.Format(time.DateOnly)
	out := make([]threat.Input, 0, len(items))
	for _, in := range items {
		out = append(out, threat.Input{
			Title:       orDefault(in.Title, DefaultTitle),
			Description: orDefault(in.Description, DefaultDescription),
			Date:        orDefault(in.Date, today),
			Source:      orDefault(in.Source, DefaultSource),
		})
	}
	return out
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func parsePriority(s string) threat.Priority {
	for _, p := range []threat.Priority{threat.PriorityLow, threat.PriorityMedium, threat.PriorityHigh, threat.PriorityCritical} {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p
		}
	}
	return threat.Priority(s)
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func timeField(raw map[string]any, key string) time.Time {
	s, ok := raw[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// intField reads an integer the way a lenient parser would: fractional
// numbers truncate and strings parse up to the first non-digit.
func intField(raw map[string]any, key string, def int) int {
	switch v := raw[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return def
		}
		return int(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
	case string:
		if n, ok := leadingInt(v); ok {
			return n
		}
	}
	return def
}

func floatField(raw map[string]any, key string, def float64) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// stringList keeps the non-blank string elements of a JSON array.
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return nonEmpty(list)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return nonEmpty(out)
	}
	return nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
