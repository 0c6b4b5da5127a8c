package threat

import "time"

// NewPlaceholder wraps in as an unanalyzed threat awaiting analysis.
func NewPlaceholder(in Input, id string, now time.Time) *Threat {
	now = now.UTC()
	return &Threat{
		Input:     in,
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    StatusUnanalyzed,
	}
}

// NewAnalyzed builds an analyzed threat from a completed analysis.
func NewAnalyzed(in Input, id string, ai Analysis, now time.Time) *Threat {
	t := NewPlaceholder(in, id, now)
	t.Status = StatusAnalyzed
	t.AI = &ai
	return t
}
