package score

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
	"github.com/ppiankov/reqmap/internal/rules"
	"github.com/ppiankov/reqmap/internal/similarity"
)

// constStrategy returns the same similarity for every pair, or an error
type constStrategy struct {
	value float64
	err   error
}

func (c constStrategy) Name() string { return "const" }

func (c constStrategy) Similarity(ctx context.Context, _, _ string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.value, c.err
}

func fixture(t *testing.T, sim similarity.Strategy, defs ...rules.Definition) (*Scorer, *outline.Outline) {
	t.Helper()
	o, err := outline.FromFlat(model.DocumentInfo{ID: "DOC"}, []model.FlatHeading{
		{ID: "H-1", Title: "Summary of the Function", OutlineNumber: "1"},
		{ID: "H-1.4", Title: "Function Overview", OutlineNumber: "1.4"},
		{ID: "H-1.4.1", Title: "Intended Use", OutlineNumber: "1.4.1"},
		{ID: "H-2", Title: "Safety Concept", OutlineNumber: "2"},
	})
	require.NoError(t, err)

	c, err := rules.NewCatalog(defs...)
	require.NoError(t, err)
	b, err := c.Bind(o)
	require.NoError(t, err)

	return NewScorer(model.DefaultConfig().Weights, sim, b, nil), o
}

func entry(t *testing.T, o *outline.Outline, id string) outline.Entry {
	t.Helper()
	e, ok := o.Lookup(id)
	require.True(t, ok)
	return e
}

var absRequirement = model.Requirement{
	ID:          "BR-FUN-001",
	Title:       "ABS support",
	Description: "Provides ABS braking assistance",
	Category:    model.CategoryFunctional,
	Priority:    model.PriorityHigh,
}

func TestScorer_CombinesSignals(t *testing.T) {
	s, o := fixture(t, constStrategy{value: 0.5},
		rules.Definition{ID: "intended-use", Category: model.CategoryFunctional, Keywords: []string{"ABS", "assistance"}, Target: "H-1.4.1"},
	)

	ns, err := s.Score(context.Background(), absRequirement, entry(t, o, "H-1.4.1"))
	require.NoError(t, err)

	assert.Equal(t, "H-1.4.1", ns.NodeID)
	assert.InDelta(t, 0.5, ns.Semantic, 1e-9)
	assert.InDelta(t, 1.0, ns.Category, 1e-9)
	assert.InDelta(t, 1.0, ns.Keyword, 1e-9)
	assert.InDelta(t, 0.40*0.5+0.35+0.25, ns.Total, 1e-9)
	assert.True(t, ns.CategoryHit)
	assert.False(t, ns.SafetyHit)
	assert.False(t, ns.Degraded)

	require.Len(t, ns.Signals, 3)
	assert.Equal(t, "Summary of the Function > Function Overview > Intended Use", ns.Signals[0].Data["heading"])
	assert.Contains(t, ns.Signals[1].Data, "formula")
	assert.Len(t, ns.Rationale(), 3)

	assert.InDelta(t, ns.Total, s.Confidence(ns.Total), 1e-9, "default weights sum to 1")
}

func TestScorer_NodeWithoutRules(t *testing.T) {
	s, o := fixture(t, constStrategy{value: 0},
		rules.Definition{ID: "intended-use", Category: model.CategoryFunctional, Target: "H-1.4.1"},
	)

	ns, err := s.Score(context.Background(), absRequirement, entry(t, o, "H-2"))
	require.NoError(t, err)
	assert.Zero(t, ns.Total)
	assert.False(t, ns.CategoryHit)
	assert.Empty(t, ns.Rationale())
}

func TestScorer_WeightedRules(t *testing.T) {
	s, o := fixture(t, constStrategy{value: 0},
		rules.Definition{ID: "strong", Category: model.CategoryFunctional, Target: "H-1.4", Weight: 0.5},
		rules.Definition{ID: "weak", Category: model.CategoryFunctional, Target: "H-1.4", Weight: 0.25},
		rules.Definition{ID: "kw-a", Keywords: []string{"ABS", "steering"}, Target: "H-1.4", Weight: 1},
		rules.Definition{ID: "kw-b", Keywords: []string{"hydraulic", "pressure"}, Target: "H-1.4", Weight: 0.5},
	)

	ns, err := s.Score(context.Background(), absRequirement, entry(t, o, "H-1.4"))
	require.NoError(t, err)

	assert.InDelta(t, 0.5, ns.Category, 1e-9, "strongest matching category rule wins")
	// (1*1 + 0.5*0) / (1*2 + 0.5*2)
	assert.InDelta(t, 1.0/3.0, ns.Keyword, 1e-9)
}

func TestScorer_SafetyHit(t *testing.T) {
	s, o := fixture(t, constStrategy{value: 0},
		rules.Definition{ID: "safety-braking", Keywords: []string{"braking"}, Target: "H-2", Safety: true},
		rules.Definition{ID: "safety-cat", Category: model.CategorySafety, Target: "H-1"},
	)

	ns, err := s.Score(context.Background(), absRequirement, entry(t, o, "H-2"))
	require.NoError(t, err)
	assert.True(t, ns.SafetyHit)

	// A safety category rule that does not fire does not count
	ns, err = s.Score(context.Background(), absRequirement, entry(t, o, "H-1"))
	require.NoError(t, err)
	assert.False(t, ns.SafetyHit)
}

func TestScorer_DegradesOnSimilarityFailure(t *testing.T) {
	s, o := fixture(t, constStrategy{err: errors.New("provider down")},
		rules.Definition{ID: "intended-use", Category: model.CategoryFunctional, Target: "H-1.4.1"},
	)

	ns, err := s.Score(context.Background(), absRequirement, entry(t, o, "H-1.4.1"))
	require.NoError(t, err)
	assert.True(t, ns.Degraded)
	assert.Zero(t, ns.Semantic)
	assert.InDelta(t, 0.35, ns.Total, 1e-9)
	assert.Equal(t, true, ns.Signals[0].Data["degraded"])
}

func TestScorer_CancellationIsFatal(t *testing.T) {
	s, o := fixture(t, constStrategy{value: 1},
		rules.Definition{ID: "intended-use", Category: model.CategoryFunctional, Target: "H-1.4.1"},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Score(ctx, absRequirement, entry(t, o, "H-1.4.1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScorer_ZeroSemanticWeightSkipsSimilarity(t *testing.T) {
	o, err := outline.FromFlat(model.DocumentInfo{}, []model.FlatHeading{{ID: "A", Title: "A", OutlineNumber: "1"}})
	require.NoError(t, err)
	c, err := rules.NewCatalog()
	require.NoError(t, err)
	b, err := c.Bind(o)
	require.NoError(t, err)

	s := NewScorer(model.Weights{Category: 1}, constStrategy{err: errors.New("never called")}, b, nil)
	ns, err := s.Score(context.Background(), absRequirement, entry(t, o, "A"))
	require.NoError(t, err)
	assert.False(t, ns.Degraded)
}

func TestScorer_Confidence(t *testing.T) {
	s := NewScorer(model.Weights{Semantic: 1, Category: 1, Keyword: 2}, constStrategy{}, nil, nil)
	assert.InDelta(t, 0.5, s.Confidence(2), 1e-9)
	assert.Equal(t, 1.0, s.Confidence(7))
	assert.Equal(t, 0.0, s.Confidence(-1))
}
