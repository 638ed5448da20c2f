package similarity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/reqmap/internal/cache"
	"github.com/ppiankov/reqmap/internal/model"
)

func TestLexical_Similarity(t *testing.T) {
	l := NewLexical()
	ctx := context.Background()

	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Brake System", "brake system", 1},
		{"stemmed", "Provides braking assistance", "Brakes", 1},
		{"partial", "ABS braking assistance", "Braking Performance", 0.5},
		{"fuzzy spelling", "Temprature limits", "Temperature", 1},
		{"unrelated", "ABS braking assistance", "Intended Use", 0},
		{"stop words only", "the and of", "Brake", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := l.Similarity(ctx, tc.a, tc.b)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestLexical_ShortTokensDoNotFuzzyMatch(t *testing.T) {
	got, err := NewLexical().Similarity(context.Background(), "ABS", "ABC")
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestCosine(t *testing.T) {
	c, err := Cosine([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1, c, 1e-9)

	c, err = Cosine([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0, c, 1e-9)

	c, err = Cosine([]float32{0, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.Zero(t, c)

	_, err = Cosine([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}

// fakeEmbedder maps known texts to fixed vectors and counts calls
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   atomic.Int32
	texts   atomic.Int32
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	f.texts.Add(int32(len(texts)))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			return nil, errors.New("unknown text " + t)
		}
		out[i] = v
	}
	return out, nil
}

func TestEmbedding_CachesVectors(t *testing.T) {
	fe := &fakeEmbedder{vectors: map[string][]float32{
		"req":      {1, 0},
		"heading":  {1, 0},
		"opposite": {-1, 0},
	}}
	store := cache.NewLayeredCache(time.Minute, t.TempDir(), time.Hour)
	e := NewEmbedding(fe, "m", store, 0)
	ctx := context.Background()

	require.NoError(t, e.Prepare(ctx, []string{"heading", "opposite", "heading"}))
	assert.Equal(t, int32(1), fe.calls.Load())
	assert.Equal(t, int32(2), fe.texts.Load(), "duplicate texts are embedded once")

	got, err := e.Similarity(ctx, "req", "heading")
	require.NoError(t, err)
	assert.InDelta(t, 1, got, 1e-9)

	got, err = e.Similarity(ctx, "req", "opposite")
	require.NoError(t, err)
	assert.Zero(t, got, "negative cosine clamps to zero")
	assert.Equal(t, int32(2), fe.calls.Load())

	// A second strategy over the same store needs no provider call
	fresh := &fakeEmbedder{}
	e2 := NewEmbedding(fresh, "m", store, 0)
	got, err = e2.Similarity(ctx, "req", "heading")
	require.NoError(t, err)
	assert.InDelta(t, 1, got, 1e-9)
	assert.Zero(t, fresh.calls.Load())
}

type stubStrategy struct {
	calls atomic.Int32
	fn    func(ctx context.Context) (float64, error)
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) Similarity(ctx context.Context, _, _ string) (float64, error) {
	s.calls.Add(1)
	return s.fn(ctx)
}

func TestGuarded_MemoizesSuccess(t *testing.T) {
	stub := &stubStrategy{fn: func(context.Context) (float64, error) { return 1.7, nil }}
	g := Guard(stub, GuardOptions{Memo: cache.NewMemoryCache(time.Minute, time.Minute)})

	for i := 0; i < 3; i++ {
		v, err := g.Similarity(context.Background(), "a", "b")
		require.NoError(t, err)
		assert.Equal(t, 1.0, v, "results are clamped")
	}

	assert.Equal(t, int32(1), stub.calls.Load())
	calls, failures := g.Counts()
	assert.Equal(t, int64(1), calls)
	assert.Zero(t, failures)
}

func TestGuarded_TimeoutCountsAsFailure(t *testing.T) {
	stub := &stubStrategy{fn: func(ctx context.Context) (float64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}}
	g := Guard(stub, GuardOptions{Timeout: 10 * time.Millisecond, Memo: cache.NewMemoryCache(time.Minute, time.Minute)})

	_, err := g.Similarity(context.Background(), "a", "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	// Failures are not memoized
	_, err = g.Similarity(context.Background(), "a", "b")
	require.Error(t, err)

	calls, failures := g.Counts()
	assert.Equal(t, int64(2), calls)
	assert.Equal(t, int64(2), failures)

	g.Reset()
	calls, failures = g.Counts()
	assert.Zero(t, calls)
	assert.Zero(t, failures)
}

func TestGuarded_ParentCancellationIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubStrategy{fn: func(context.Context) (float64, error) {
		cancel()
		return 0, errors.New("interrupted")
	}}
	g := Guard(stub, GuardOptions{})

	_, err := g.Similarity(ctx, "a", "b")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)

	_, failures := g.Counts()
	assert.Zero(t, failures)
}

func TestNew_Strategies(t *testing.T) {
	ctx := context.Background()

	cfg := model.DefaultConfig()
	g, err := New(ctx, cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "lexical", g.Name())
	assert.Nil(t, g.limiter, "lexical similarity is not rate limited")
	assert.NotNil(t, g.memo)

	cfg.Similarity.Strategy = "embedding"
	cfg.Similarity.Provider = "ollama"
	cfg.Similarity.Model = "nomic-embed-text"
	g, err = New(ctx, cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "embedding/ollama", g.Name())
	assert.NotNil(t, g.limiter)

	cfg.Similarity.Strategy = "judge"
	cfg.Similarity.Provider = ""
	_, err = New(ctx, cfg, nil, nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	cfg.Similarity.Strategy = "telepathy"
	_, err = New(ctx, cfg, nil, nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}
