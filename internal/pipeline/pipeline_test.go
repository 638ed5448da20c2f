package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
	"github.com/ppiankov/reqmap/internal/rules"
	"github.com/ppiankov/reqmap/internal/similarity"
)

// countingStrategy counts calls and optionally fails every one of them
type countingStrategy struct {
	calls    atomic.Int64
	prepared atomic.Int64
	fail     bool
}

func (c *countingStrategy) Name() string { return "counting" }

func (c *countingStrategy) Similarity(ctx context.Context, a, b string) (float64, error) {
	c.calls.Add(1)
	if c.fail {
		return 0, errors.New("backend down")
	}
	return similarity.NewLexical().Similarity(ctx, a, b)
}

func (c *countingStrategy) Prepare(_ context.Context, texts []string) error {
	c.prepared.Add(int64(len(texts)))
	return nil
}

func conceptOutline(t *testing.T) *outline.Outline {
	t.Helper()
	o, err := outline.FromFlat(model.DocumentInfo{ID: "FC", Title: "Functional Concept"}, []model.FlatHeading{
		{ID: "H-1", Title: "Summary of the Function", OutlineNumber: "1"},
		{ID: "H-1.4", Title: "Function Overview", OutlineNumber: "1.4"},
		{ID: "H-1.4.1", Title: "Intended Use", OutlineNumber: "1.4.1"},
		{ID: "H-2", Title: "Safety Concept", OutlineNumber: "2"},
		{ID: "H-3", Title: "Verification and Testing", OutlineNumber: "3"},
	})
	require.NoError(t, err)
	return o
}

func conceptRules(t *testing.T) *rules.Catalog {
	t.Helper()
	c, err := rules.NewCatalog(
		rules.Definition{ID: "intended-use", Category: model.CategoryFunctional, Keywords: []string{"ABS", "assistance"}, Target: "H-1.4.1"},
		rules.Definition{ID: "safety", Category: model.CategorySafety, Keywords: []string{"fail-safe", "ASIL"}, Target: "H-2"},
		rules.Definition{ID: "testing", Category: model.CategoryTesting, Keywords: []string{"test", "validation"}, Target: "H-3"},
	)
	require.NoError(t, err)
	return c
}

func conceptRequirements() []model.Requirement {
	return []model.Requirement{
		{ID: "BR-FUN-001", Title: "ABS support", Description: "Provides ABS braking assistance", Category: model.CategoryFunctional, Priority: model.PriorityHigh},
		{ID: "BR-SAF-001", Title: "Fail-safe state", Description: "Enters a fail-safe state on sensor loss, ASIL D", Category: model.CategorySafety, Priority: model.PriorityCritical},
		{ID: "BR-TST-001", Title: "HIL test", Description: "Validation on the HIL test bench", Category: model.CategoryTesting, Priority: model.PriorityMedium},
		{ID: "BR-REG-001", Title: "Paperwork", Description: "Keep records for the homologation authority", Category: model.CategoryRegulatory, Priority: model.PriorityLow},
	}
}

func newPipeline(t *testing.T, sim similarity.Strategy, mutate func(*model.Config)) *Pipeline {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Concurrency.Workers = 4
	if mutate != nil {
		mutate(cfg)
	}
	p, err := NewPipeline(cfg, sim, nil)
	require.NoError(t, err)
	return p
}

func TestMap_EndToEnd(t *testing.T) {
	p := newPipeline(t, nil, nil)
	reqs := conceptRequirements()

	result, err := p.Map(context.Background(), reqs, conceptOutline(t), conceptRules(t))
	require.NoError(t, err)

	_, err = uuid.Parse(result.RunID)
	assert.NoError(t, err)

	assert.Equal(t, "BR-FUN-001", result.Tree.Find("H-1.4.1").Workitems[0].ID)
	assert.Equal(t, "BR-SAF-001", result.Tree.Find("H-2").Workitems[0].ID)
	assert.Equal(t, "BR-TST-001", result.Tree.Find("H-3").Workitems[0].ID)

	require.Len(t, result.Log, len(reqs))
	for i, a := range result.Log {
		assert.Equal(t, reqs[i].ID, a.RequirementID)
	}

	// The regulatory requirement matches nothing well enough
	require.Len(t, result.Unassignable, 1)
	assert.Equal(t, "BR-REG-001", result.Unassignable[0].Requirement.ID)

	assert.Equal(t, len(reqs), result.Stats.Requirements)
	assert.Equal(t, 3, result.Stats.Assigned)
	assert.Equal(t, 1, result.Stats.Unassignable)
	assert.Equal(t, 5, result.Stats.Nodes)
	assert.Equal(t, int64(len(reqs)*5), result.Stats.SimilarityCalls)
	assert.Zero(t, result.Stats.SimilarityFailures)
	assert.Equal(t, "lexical", result.Stats.Strategy)
	assert.Equal(t, 3, result.Tree.WorkitemCount())
}

func TestMap_PreparesStrategy(t *testing.T) {
	sim := &countingStrategy{}
	p := newPipeline(t, sim, nil)
	reqs := conceptRequirements()

	_, err := p.Map(context.Background(), reqs, conceptOutline(t), conceptRules(t))
	require.NoError(t, err)
	assert.Equal(t, int64(len(reqs)+5), sim.prepared.Load())
	assert.Equal(t, int64(len(reqs)*5), sim.calls.Load())
}

func TestMap_UnresolvedRuleTargetBeforeScoring(t *testing.T) {
	sim := &countingStrategy{}
	p := newPipeline(t, sim, nil)

	catalog := conceptRules(t)
	require.NoError(t, catalog.Add(rules.Definition{ID: "ghost", Category: model.CategoryInterface, Target: "H-9"}))

	result, err := p.Map(context.Background(), conceptRequirements(), conceptOutline(t), catalog)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, model.ErrUnresolvedRuleTarget)
	assert.Zero(t, sim.calls.Load())
}

func TestMap_RejectsBadRequirementIDs(t *testing.T) {
	p := newPipeline(t, nil, nil)
	reqs := conceptRequirements()
	reqs = append(reqs, reqs[0], model.Requirement{Title: "no id"})

	_, err := p.Map(context.Background(), reqs, conceptOutline(t), conceptRules(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidRequirement)
	assert.Contains(t, err.Error(), `duplicate requirement id "BR-FUN-001"`)
	assert.Contains(t, err.Error(), "requirement #6 has an empty id")
}

func TestMap_DegradedRunReturnsNoResult(t *testing.T) {
	p := newPipeline(t, &countingStrategy{fail: true}, nil)

	result, err := p.Map(context.Background(), conceptRequirements(), conceptOutline(t), conceptRules(t))
	assert.Nil(t, result)
	var dre *model.DegradedRunError
	require.True(t, errors.As(err, &dre))
	assert.Equal(t, 1.0, dre.Ratio())
}

func TestMap_ToleratedDegradation(t *testing.T) {
	p := newPipeline(t, &countingStrategy{fail: true}, func(c *model.Config) {
		c.MaxDegradedRatio = 1
	})

	result, err := p.Map(context.Background(), conceptRequirements(), conceptOutline(t), conceptRules(t))
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Stats.DegradedRatio)
	assert.Equal(t, "BR-FUN-001", result.Tree.Find("H-1.4.1").Workitems[0].ID)
	for _, a := range result.Log {
		assert.True(t, a.Degraded)
	}
}

func TestMap_Cancelled(t *testing.T) {
	p := newPipeline(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Map(ctx, conceptRequirements(), conceptOutline(t), conceptRules(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMap_EmptyInputs(t *testing.T) {
	p := newPipeline(t, nil, nil)

	result, err := p.Map(context.Background(), nil, conceptOutline(t), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Log)
	assert.Zero(t, result.Tree.WorkitemCount())

	_, err = p.Map(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, model.ErrMalformedOutline)
}

func TestMap_Deterministic(t *testing.T) {
	reqs := conceptRequirements()
	serial := newPipeline(t, nil, func(c *model.Config) { c.Concurrency.Workers = 1 })
	parallel := newPipeline(t, nil, func(c *model.Config) { c.Concurrency.Workers = 16 })

	a, err := serial.Map(context.Background(), reqs, conceptOutline(t), conceptRules(t))
	require.NoError(t, err)
	b, err := parallel.Map(context.Background(), reqs, conceptOutline(t), conceptRules(t))
	require.NoError(t, err)

	assert.Equal(t, a.Tree, b.Tree)
	assert.Equal(t, a.Log, b.Log)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestNewPipeline_InvalidConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Weights = model.Weights{}

	_, err := NewPipeline(cfg, nil, nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	_, err = FromConfig(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestFromConfig_Lexical(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Cache.Dir = t.TempDir()

	p, err := FromConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, p.Config())
}
