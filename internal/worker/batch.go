package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ppiankov/reqmap/internal/model"
)

// MapFunc maps one requirements file and returns the run statistics
type MapFunc func(ctx context.Context, path string) (*model.Stats, error)

// FileJob maps a single requirements file
type FileJob struct {
	Path string
	Map  MapFunc
}

// Execute runs the mapping for the file
func (j *FileJob) Execute(ctx context.Context) Result {
	stats, err := j.Map(ctx, j.Path)
	return &FileResult{Path: j.Path, Stats: stats, Error: err}
}

// FileResult is the outcome of mapping one file
type FileResult struct {
	Path  string
	Stats *model.Stats
	Error error
}

// GetError returns the mapping error, if any
func (r *FileResult) GetError() error {
	return r.Error
}

// BatchProcessor maps many requirement files against the same outline
type BatchProcessor struct {
	mapFn       MapFunc
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(mapFn MapFunc, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		mapFn:       mapFn,
		concurrency: concurrency,
	}
}

// ProcessPaths maps the files concurrently. Results are in input order.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*FileResult {
	if len(paths) == 0 {
		return []*FileResult{}
	}

	jobs := make([]Job, len(paths))
	for i, p := range paths {
		jobs[i] = &FileJob{Path: p, Map: b.mapFn}
	}

	results := Run(ctx, b.concurrency, jobs)

	out := make([]*FileResult, len(results))
	for i, r := range results {
		if fr, ok := r.(*FileResult); ok {
			out[i] = fr
			continue
		}
		out[i] = &FileResult{Path: paths[i], Error: r.GetError()}
	}
	return out
}

// ProcessPatterns expands glob patterns and maps every matching file
func (b *BatchProcessor) ProcessPatterns(ctx context.Context, patterns []string) ([]*FileResult, error) {
	paths, err := ExpandPatterns(patterns)
	if err != nil {
		return nil, err
	}
	return b.ProcessPaths(ctx, paths), nil
}

// ProcessFile reads paths or patterns from a list file and maps them
func (b *BatchProcessor) ProcessFile(ctx context.Context, listPath string) ([]*FileResult, error) {
	patterns, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}
	return b.ProcessPatterns(ctx, patterns)
}

// ExpandPatterns resolves doublestar patterns such as "reqs/**/*.yaml".
// Plain paths are kept as given. The result is sorted and deduplicated.
func ExpandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	for _, pattern := range patterns {
		pattern = filepath.ToSlash(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}

		matches := []string{pattern}
		if strings.ContainsAny(pattern, "*?[{") {
			var err error
			matches, err = doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", pattern, err)
			}
			sort.Strings(matches)
		}

		for _, m := range matches {
			m = filepath.Clean(m)
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}

	return out, nil
}

// ReadPathsFromFile reads one path or pattern per line, skipping blanks
// and # comments
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
