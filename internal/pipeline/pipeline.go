// Package pipeline runs a complete mapping: bind rules, score and assign every
// requirement, assemble the output tree and validate it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/reqmap/internal/assemble"
	"github.com/ppiankov/reqmap/internal/assign"
	"github.com/ppiankov/reqmap/internal/cache"
	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
	"github.com/ppiankov/reqmap/internal/rules"
	"github.com/ppiankov/reqmap/internal/score"
	"github.com/ppiankov/reqmap/internal/similarity"
	"github.com/ppiankov/reqmap/internal/validate"
)

// Pipeline orchestrates a mapping run. It holds no per-run state and may be
// reused, e.g. when rules are reloaded.
type Pipeline struct {
	config     *model.Config
	similarity similarity.Strategy
	validator  *validate.Validator
	logger     *slog.Logger
}

// NewPipeline creates a pipeline around an already built similarity strategy.
// A nil strategy uses the offline lexical one.
func NewPipeline(cfg *model.Config, sim similarity.Strategy, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sim == nil {
		sim = similarity.NewLexical()
	}
	return &Pipeline{
		config:     cfg,
		similarity: sim,
		validator:  validate.NewValidator(logger),
		logger:     logger,
	}, nil
}

// FromConfig builds the configured similarity strategy, with its embedding
// cache when caching is enabled, and a pipeline around it
func FromConfig(ctx context.Context, cfg *model.Config, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var vectors cache.Cache
	if cfg.Cache.Enabled {
		vectors = cache.New(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	sim, err := similarity.New(ctx, cfg, vectors, logger)
	if err != nil {
		return nil, err
	}
	return NewPipeline(cfg, sim, logger)
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() *model.Config {
	return p.config
}

// Result is the outcome of one mapping run
type Result struct {
	RunID        string
	Tree         *model.OutputTree
	Unassignable []model.Unassignable
	Log          []model.Assignment
	Stats        model.Stats
	StartedAt    time.Time
	Duration     time.Duration
}

// Map places every requirement into the outline. Configuration problems
// (unresolved rule targets, bad requirement ids) are reported before any
// scoring happens. A result is returned only when it passed validation.
func (p *Pipeline) Map(ctx context.Context, reqs []model.Requirement, o *outline.Outline, catalog *rules.Catalog) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	if o == nil {
		return nil, &model.OutlineError{Reason: "no outline"}
	}
	if err := checkRequirementIDs(reqs); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = &rules.Catalog{}
	}

	bound, err := catalog.Bind(o)
	if err != nil {
		return nil, fmt.Errorf("bind rules: %w", err)
	}

	logger.Info("mapping started",
		"requirements", len(reqs),
		"nodes", o.Len(),
		"rules", len(bound.Rules()),
		"strategy", p.similarity.Name(),
	)

	if prep, ok := p.similarity.(similarity.Preparer); ok && p.config.Weights.Semantic > 0 {
		if err := prep.Prepare(ctx, preparationTexts(reqs, o)); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("similarity preparation failed", "error", err)
		}
	}

	scorer := score.NewScorer(p.config.Weights, p.similarity, bound, logger)
	assigner := assign.New(scorer, o, assign.Options{
		Threshold:        p.config.Threshold,
		MaxDegradedRatio: p.config.MaxDegradedRatio,
		Workers:          p.config.Concurrency.Workers,
		Logger:           logger,
	})

	outcome, err := assigner.Assign(ctx, reqs)
	if err != nil {
		return nil, err
	}

	tree, err := assemble.Assemble(o, reqs, outcome.Log)
	if err != nil {
		return nil, err
	}

	if err := p.validator.Check(o, reqs, tree, outcome.Unassignable, outcome.Log); err != nil {
		return nil, err
	}

	stats := model.Stats{
		Requirements:       len(reqs),
		Assigned:           len(reqs) - len(outcome.Unassignable),
		Unassignable:       len(outcome.Unassignable),
		Nodes:              o.Len(),
		SimilarityCalls:    outcome.SimilarityCalls,
		SimilarityFailures: outcome.SimilarityFailures,
		Strategy:           p.similarity.Name(),
	}
	if stats.SimilarityCalls > 0 {
		stats.DegradedRatio = float64(stats.SimilarityFailures) / float64(stats.SimilarityCalls)
	}

	result := &Result{
		RunID:        runID,
		Tree:         tree,
		Unassignable: outcome.Unassignable,
		Log:          outcome.Log,
		Stats:        stats,
		StartedAt:    started.UTC(),
		Duration:     time.Since(started),
	}

	logger.Info("mapping finished",
		"assigned", stats.Assigned,
		"unassignable", stats.Unassignable,
		"duration", result.Duration,
	)
	return result, nil
}

// checkRequirementIDs rejects empty and repeated ids, listing every offender
func checkRequirementIDs(reqs []model.Requirement) error {
	seen := make(map[string]bool, len(reqs))
	var problems []string
	for i, r := range reqs {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			problems = append(problems, fmt.Sprintf("requirement #%d has an empty id", i+1))
			continue
		}
		if seen[id] {
			problems = append(problems, fmt.Sprintf("duplicate requirement id %q", id))
			continue
		}
		seen[id] = true
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", model.ErrInvalidRequirement, strings.Join(problems, "; "))
	}
	return nil
}

func preparationTexts(reqs []model.Requirement, o *outline.Outline) []string {
	texts := make([]string, 0, len(reqs)+o.Len())
	for _, e := range o.Entries() {
		texts = append(texts, e.ContextText())
	}
	for _, r := range reqs {
		texts = append(texts, r.Text())
	}
	return texts
}
