package enrichment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

type stubGenerator struct {
	items []threat.Input
	err   error
}

func (s stubGenerator) GenerateThreats(context.Context, int) ([]threat.Input, error) {
	return s.items, s.err
}

func TestGeneratorWithFallback_Primary(t *testing.T) {
	g := NewGeneratorWithFallback(stubGenerator{items: []threat.Input{
		{Title: "a", Description: "b", Date: "2024-01-01", Source: "c"},
		{Title: "d", Description: "e", Date: "2024-01-02", Source: "f"},
	}}, newTestFallback(31), zap.NewNop())

	items, err := g.GenerateThreats(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].Title)
}

func TestGeneratorWithFallback_TopsUpShortResult(t *testing.T) {
	primary := stubGenerator{items: []threat.Input{
		{Title: "a", Description: "b", Date: "2024-01-01", Source: "c"},
		{Title: "d", Description: "e", Date: "2024-01-02", Source: "f"},
		{Title: "g", Description: "h", Date: "2024-01-03", Source: "i"},
	}}
	var fell []string
	g := NewGeneratorWithFallback(primary, newTestFallback(34), zap.NewNop())
	g.SetFallbackRecorder(func(layer string) { fell = append(fell, layer) })

	items, err := g.GenerateThreats(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, items, 25)
	assert.Equal(t, []string{"a", "d", "g"}, []string{items[0].Title, items[1].Title, items[2].Title})
	for _, in := range items[3:] {
		assert.NoError(t, in.Validate())
	}
	assert.Equal(t, []string{LayerGenerate}, fell)
}

func TestGeneratorWithFallback_FallsBack(t *testing.T) {
	for name, primary := range map[string]Generator{
		"error": stubGenerator{err: errors.New("boom")},
		"empty": stubGenerator{},
		"nil":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			var fell []string
			g := NewGeneratorWithFallback(primary, newTestFallback(32), zap.NewNop())
			g.SetFallbackRecorder(func(layer string) { fell = append(fell, layer) })

			items, err := g.GenerateThreats(context.Background(), 25)
			require.NoError(t, err)
			require.Len(t, items, 25)
			for _, in := range items {
				assert.NoError(t, in.Validate())
			}
			if primary == nil {
				assert.Empty(t, fell)
			} else {
				assert.Equal(t, []string{LayerGenerate}, fell)
			}
		})
	}
}

func TestGeneratorWithFallback_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGeneratorWithFallback(nil, newTestFallback(33), zap.NewNop())
	_, err := g.GenerateThreats(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
}
