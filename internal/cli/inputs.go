package cli

import (
	"context"
	"fmt"

	"github.com/ppiankov/reqmap/internal/ingest"
	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
	"github.com/ppiankov/reqmap/internal/pipeline"
	"github.com/ppiankov/reqmap/internal/rules"
)

// inputs reads outline, requirement and rule sources from files or URLs
type inputs struct {
	fetcher    *pipeline.Fetcher
	documentID string
}

func newInputs(cfg *model.Config, documentID string) *inputs {
	return &inputs{
		fetcher:    pipeline.NewFetcher(cfg.HTTP),
		documentID: documentID,
	}
}

func (in *inputs) read(ctx context.Context, source string) ([]byte, error) {
	res, err := in.fetcher.FetchWithRetry(ctx, source)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (in *inputs) loadOutline(ctx context.Context, source string) (*outline.Outline, error) {
	data, err := in.read(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("read outline: %w", err)
	}
	o, err := ingest.ParseOutline(data, in.documentID)
	if err != nil {
		return nil, fmt.Errorf("outline %s: %w", source, err)
	}
	return o, nil
}

func (in *inputs) loadRequirements(ctx context.Context, source string) ([]model.Requirement, error) {
	data, err := in.read(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("read requirements: %w", err)
	}
	reqs, err := ingest.ParseRequirements(data)
	if err != nil {
		return nil, fmt.Errorf("requirements %s: %w", source, err)
	}
	return reqs, nil
}

// loadRules returns an empty catalog when no source is given, in which case
// only semantic similarity contributes to scores
func (in *inputs) loadRules(ctx context.Context, source string) (*rules.Catalog, error) {
	if source == "" {
		return rules.NewCatalog()
	}
	data, err := in.read(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	c, err := rules.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", source, err)
	}
	return c, nil
}
