package similarity

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ppiankov/reqmap/internal/cache"
	"github.com/ppiankov/reqmap/internal/llm"
)

// Embedding compares texts by the cosine of their provider embeddings.
// Negative cosines count as unrelated, so the result stays in [0,1].
type Embedding struct {
	embedder llm.Embedder
	model    string
	store    cache.Cache
	ttl      time.Duration

	mu     sync.RWMutex
	vector map[string][]float32
}

// NewEmbedding creates an embedding strategy. store may be nil; model is
// part of the cache key so vectors from different models never mix.
func NewEmbedding(embedder llm.Embedder, model string, store cache.Cache, ttl time.Duration) *Embedding {
	return &Embedding{
		embedder: embedder,
		model:    model,
		store:    store,
		ttl:      ttl,
		vector:   make(map[string][]float32),
	}
}

func (e *Embedding) Name() string { return "embedding/" + e.embedder.Name() }

// Prepare embeds all texts not yet known in one batch
func (e *Embedding) Prepare(ctx context.Context, texts []string) error {
	_, err := e.vectors(ctx, texts)
	return err
}

func (e *Embedding) Similarity(ctx context.Context, requirement, heading string) (float64, error) {
	vs, err := e.vectors(ctx, []string{requirement, heading})
	if err != nil {
		return 0, err
	}
	cos, err := Cosine(vs[0], vs[1])
	if err != nil {
		return 0, err
	}
	return clamp(cos), nil
}

// vectors resolves texts from memory, then the persistent cache, then the provider
func (e *Embedding) vectors(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	missingAt := make(map[string][]int)

	e.mu.RLock()
	for i, t := range texts {
		if v, ok := e.vector[t]; ok {
			out[i] = v
			continue
		}
		if _, queued := missingAt[t]; !queued {
			missing = append(missing, t)
		}
		missingAt[t] = append(missingAt[t], i)
	}
	e.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}

	var toEmbed []string
	for _, t := range missing {
		if v, ok := e.loadCached(t); ok {
			e.remember(t, v)
			for _, i := range missingAt[t] {
				out[i] = v
			}
			continue
		}
		toEmbed = append(toEmbed, t)
	}

	if len(toEmbed) == 0 {
		return out, nil
	}

	embedded, err := e.embedder.Embed(ctx, toEmbed)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(toEmbed) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embedded), len(toEmbed))
	}

	for k, t := range toEmbed {
		v := embedded[k]
		e.remember(t, v)
		e.storeCached(t, v)
		for _, i := range missingAt[t] {
			out[i] = v
		}
	}
	return out, nil
}

func (e *Embedding) remember(text string, v []float32) {
	e.mu.Lock()
	e.vector[text] = v
	e.mu.Unlock()
}

func (e *Embedding) key(text string) string {
	return cache.Key("embed", e.embedder.Name(), e.model, text)
}

func (e *Embedding) loadCached(text string) ([]float32, bool) {
	if e.store == nil {
		return nil, false
	}
	raw, ok := e.store.Get(e.key(text))
	if !ok {
		return nil, false
	}
	v, err := cache.DecodeVector(raw)
	if err != nil || len(v) == 0 {
		return nil, false
	}
	return v, true
}

func (e *Embedding) storeCached(text string, v []float32) {
	if e.store == nil {
		return
	}
	// A cache write failure only costs a re-embed next run
	_ = e.store.Set(e.key(text), cache.EncodeVector(v), e.ttl)
}

// Cosine returns the cosine similarity of two vectors of equal length
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
