package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/reqmap/internal/cache"
	"github.com/ppiankov/reqmap/internal/llm"
	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/worker"
)

// New builds the configured strategy wrapped in its guard. vectors is the
// persistent store for embeddings and may be nil.
func New(ctx context.Context, cfg *model.Config, vectors cache.Cache, logger *slog.Logger) (*Guarded, error) {
	var (
		inner Strategy
		err   error
	)

	switch cfg.Similarity.Strategy {
	case "", "lexical":
		inner = NewLexical()

	case "embedding":
		var e llm.Embedder
		e, err = llm.NewEmbedder(ctx, llm.ConfigFromModel(cfg.Similarity, cfg.HTTP))
		if err != nil {
			return nil, fmt.Errorf("embedding strategy: %w", err)
		}
		inner = NewEmbedding(e, cfg.Similarity.Model, vectors, cfg.Cache.DiskTTL)

	case "judge":
		var j llm.Judge
		j, err = llm.NewJudge(ctx, llm.ConfigFromModel(cfg.Similarity, cfg.HTTP))
		if err != nil {
			return nil, fmt.Errorf("judge strategy: %w", err)
		}
		inner = NewJudge(j)

	default:
		return nil, fmt.Errorf("%w: unknown similarity strategy %q", model.ErrInvalidConfig, cfg.Similarity.Strategy)
	}

	opts := GuardOptions{
		Timeout: cfg.Similarity.Timeout,
		Logger:  logger,
	}
	if cfg.Similarity.RequestsPerSecond > 0 && inner.Name() != "lexical" {
		opts.Limiter = worker.NewLimiter(cfg.Similarity.RequestsPerSecond, cfg.Similarity.Burst)
	}
	if cfg.Cache.Enabled {
		ttl := cfg.Cache.MemoryTTL
		if ttl == 0 {
			ttl = time.Hour
		}
		opts.Memo = cache.NewMemoryCache(ttl, 10*time.Minute)
	}

	return Guard(inner, opts), nil
}
