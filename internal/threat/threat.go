// Package threat defines the threat report model shared by the enrichment
// pipeline, the insights aggregator, and every storage backend.
//
// A Threat starts life either analyzed (submitted through the enrichment
// pipeline) or unanalyzed (bulk-generated placeholders). The lifecycle is an
// explicit Status rather than a magic confidence value:
//
//	unanalyzed → analyzing → analyzed
//	analyzed   → analyzing → analyzed   (refresh)
package threat

import (
	"encoding/json"
	"errors"
	"time"
)

// Category is the class of threat assigned by the first analysis layer.
type Category string

const (
	CategoryBiotechMalware   Category = "Biotech Malware"
	CategoryDataExfiltration Category = "Data Exfiltration"
	CategoryLabAccess        Category = "Unauthorized Lab Access"
	CategoryInsider          Category = "Insider Threat"
	CategorySupplyChain      Category = "Supply Chain Compromise"
)

// DefaultCategory is used whenever a category is missing or unrecognised.
const DefaultCategory = CategoryDataExfiltration

var categories = []Category{
	CategoryBiotechMalware,
	CategoryDataExfiltration,
	CategoryLabAccess,
	CategoryInsider,
	CategorySupplyChain,
}

// Categories returns the five known categories in their canonical order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range categories {
		if c == k {
			return true
		}
	}
	return false
}

// Priority is the mitigation urgency assigned by the second analysis layer.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Valid reports whether p is one of the four priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Status is the analysis state of a threat.
type Status string

const (
	StatusUnanalyzed Status = "unanalyzed"
	StatusAnalyzing  Status = "analyzing"
	StatusAnalyzed   Status = "analyzed"
)

// Input is the user-supplied part of a threat report. It never changes once
// the threat has been created.
type Input struct {
	Title       string `json:"title"       binding:"required"`
	Description string `json:"description" binding:"required"`
	Date        string `json:"date"        binding:"required"` // YYYY-MM-DD
	Source      string `json:"source"      binding:"required"`
}

// ErrMissingField is returned by Input.Validate.
var ErrMissingField = errors.New("missing required field")

// Validate checks that all four fields are non-empty.
func (in Input) Validate() error {
	switch {
	case in.Title == "":
		return fieldError("title")
	case in.Description == "":
		return fieldError("description")
	case in.Date == "":
		return fieldError("date")
	case in.Source == "":
		return fieldError("source")
	}
	return nil
}

func fieldError(name string) error {
	return &missingFieldError{name: name}
}

type missingFieldError struct{ name string }

func (e *missingFieldError) Error() string { return ErrMissingField.Error() + ": " + e.name }
func (e *missingFieldError) Unwrap() error { return ErrMissingField }

// Assessment is the first analysis layer: risk score, category and summary.
type Assessment struct {
	// Risk is the 0–100 risk score.
	Risk       int       `json:"risk"`
	Category   Category  `json:"category"`
	Summary    string    `json:"summary"`
	Confidence float64   `json:"confidence"` // 0.0–1.0
	Timestamp  time.Time `json:"timestamp"`
}

// MitigationPlan is the second analysis layer: prioritised mitigation steps.
type MitigationPlan struct {
	Mitigations        []string  `json:"mitigations"`
	Priority           Priority  `json:"priority"`
	EstimatedImpact    string    `json:"estimatedImpact"`
	RecommendedActions []string  `json:"recommendedActions"`
	Timestamp          time.Time `json:"timestamp"`
}

// ContextInsights is the optional third analysis layer relating a threat to
// the wider landscape. RelatedThreats may reference ids that do not exist.
type ContextInsights struct {
	ContextualInsights string    `json:"contextualInsights"`
	RelatedThreats     []string  `json:"relatedThreats"`
	Timestamp          time.Time `json:"timestamp"`
}

// Analysis bundles the three layers. Layer3 is nil when absent.
type Analysis struct {
	Layer1 Assessment       `json:"layer1"`
	Layer2 MitigationPlan   `json:"layer2"`
	Layer3 *ContextInsights `json:"layer3,omitempty"`
}

// Threat is a submitted report together with its analysis state.
type Threat struct {
	Input
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Status    Status    `json:"status"`
	// AI is nil while the threat is unanalyzed.
	AI *Analysis `json:"ai,omitempty"`
}

// UnmarshalJSON decodes a threat and normalises records written before the
// status field existed: those carried a placeholder analysis whose layer-1
// confidence was zero.
func (t *Threat) UnmarshalJSON(data []byte) error {
	type plain Threat
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Threat(p)

	if t.Status == "" {
		if IsAnalyzed(t) {
			t.Status = StatusAnalyzed
		} else {
			t.Status = StatusUnanalyzed
		}
	}
	if t.Status == StatusUnanalyzed && !IsAnalyzed(t) {
		t.AI = nil
	}
	return nil
}

// IsAnalyzed reports whether t carries a completed analysis. A zero layer-1
// confidence never counts as analyzed, however low-confidence values do.
func IsAnalyzed(t *Threat) bool {
	if t == nil || t.AI == nil {
		return false
	}
	return t.AI.Layer1.Confidence > 0
}

// Risk returns the layer-1 risk score, or 0 for an unanalyzed threat.
func (t *Threat) Risk() int {
	if !IsAnalyzed(t) {
		return 0
	}
	return t.AI.Layer1.Risk
}

// Category returns the layer-1 category and whether one has been assigned.
func (t *Threat) Category() (Category, bool) {
	if !IsAnalyzed(t) {
		return "", false
	}
	return t.AI.Layer1.Category, true
}

// Clone returns a deep copy of t so callers can mutate it without affecting
// a shared snapshot.
func (t *Threat) Clone() *Threat {
	if t == nil {
		return nil
	}
	cp := *t
	if t.AI != nil {
		ai := *t.AI
		ai.Layer2.Mitigations = cloneStrings(t.AI.Layer2.Mitigations)
		ai.Layer2.RecommendedActions = cloneStrings(t.AI.Layer2.RecommendedActions)
		if t.AI.Layer3 != nil {
			l3 := *t.AI.Layer3
			l3.RelatedThreats = cloneStrings(t.AI.Layer3.RelatedThreats)
			ai.Layer3 = &l3
		}
		cp.AI = &ai
	}
	return &cp
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
