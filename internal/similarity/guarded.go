package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ppiankov/reqmap/internal/cache"
	"github.com/ppiankov/reqmap/internal/worker"
)

// Guarded runs a strategy under a per-call timeout and a rate limit,
// memoizes successful results per text pair and counts calls and failures.
// It is safe for concurrent use.
type Guarded struct {
	inner   Strategy
	timeout time.Duration
	limiter *worker.Limiter
	memo    cache.Cache
	logger  *slog.Logger

	calls    atomic.Int64
	failures atomic.Int64
}

// GuardOptions tunes a Guarded strategy. Zero values disable the feature.
type GuardOptions struct {
	Timeout time.Duration
	Limiter *worker.Limiter
	Memo    cache.Cache
	Logger  *slog.Logger
}

// Guard wraps a strategy
func Guard(inner Strategy, opts GuardOptions) *Guarded {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{
		inner:   inner,
		timeout: opts.Timeout,
		limiter: opts.Limiter,
		memo:    opts.Memo,
		logger:  logger,
	}
}

func (g *Guarded) Name() string { return g.inner.Name() }

// Prepare forwards to the wrapped strategy when it supports preparation.
// A failed preparation is logged; individual calls will retry and be counted.
func (g *Guarded) Prepare(ctx context.Context, texts []string) error {
	p, ok := g.inner.(Preparer)
	if !ok {
		return nil
	}
	if err := p.Prepare(ctx, texts); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		g.logger.Warn("similarity preparation failed", "strategy", g.inner.Name(), "texts", len(texts), "error", err)
	}
	return nil
}

// Similarity returns the memoized or freshly computed similarity. Errors wrap
// ErrUnavailable, except when ctx itself is done, in which case ctx.Err() is
// returned unwrapped.
func (g *Guarded) Similarity(ctx context.Context, requirement, heading string) (float64, error) {
	key := cache.Key("sim", g.inner.Name(), requirement, heading)
	if g.memo != nil {
		if raw, ok := g.memo.Get(key); ok {
			if v, ok := cache.DecodeFloat(raw); ok {
				return v, nil
			}
		}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, g.inner.Name()); err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			g.calls.Add(1)
			g.failures.Add(1)
			return 0, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
		}
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	g.calls.Add(1)
	v, err := g.inner.Similarity(callCtx, requirement, heading)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		g.failures.Add(1)
		return 0, fmt.Errorf("%w: %s: %v", ErrUnavailable, g.inner.Name(), err)
	}

	v = clamp(v)
	if g.memo != nil {
		_ = g.memo.Set(key, cache.EncodeFloat(v), 0)
	}
	return v, nil
}

// Counts returns the number of real calls and of failed calls so far
func (g *Guarded) Counts() (calls, failures int64) {
	return g.calls.Load(), g.failures.Load()
}

// Reset zeroes the counters, e.g. between runs of a long-lived process
func (g *Guarded) Reset() {
	g.calls.Store(0)
	g.failures.Store(0)
}
