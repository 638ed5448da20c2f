package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/worker"
)

var (
	concurrency int
	fromFile    string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [patterns...]",
	Short: "Map many requirement files against one outline in parallel",
	Long: `Batch maps many requirement files concurrently:
- Patterns support ** globs ("reqs/**/*.yaml"); plain paths are taken as given
- --from-file reads one path or pattern per line (# starts a comment)
- Every file is mapped against the same outline and rules
- Each file gets its own outputs, named after its path

Example:
  reqmap batch 'reqs/**/*.json' --outline template.json --rules rules.yaml
  reqmap batch --from-file sets.txt --outline template.json --concurrency 4`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addInputFlags(batchCmd)
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of files mapped at once")
	batchCmd.Flags().StringVar(&fromFile, "from-file", "", "file listing requirement paths or patterns")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && fromFile == "" {
		return fmt.Errorf("give requirement file patterns or --from-file")
	}
	stderr := cmd.ErrOrStderr()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  reqmap Batch Processing\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Outline:      %s\n", outlineSource)
	fmt.Fprintf(stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(stderr, "  Output dir:   %s\n", outDir)
	fmt.Fprintf(stderr, "\n")

	s, err := newSession(ctx, stderr)
	if err != nil {
		return err
	}
	catalog, err := s.inputs.loadRules(ctx, rulesSource)
	if err != nil {
		return err
	}

	mapFn := func(ctx context.Context, path string) (*model.Stats, error) {
		res, _, err := s.mapSource(ctx, path, batchName(path), catalog)
		if err != nil {
			return nil, err
		}
		return &res.Stats, nil
	}
	processor := worker.NewBatchProcessor(mapFn, concurrency)

	var results []*worker.FileResult
	if fromFile != "" {
		fmt.Fprintf(stderr, "⚙️  Reading paths from %s...\n", fromFile)
		listed, err := processor.ProcessFile(ctx, fromFile)
		if err != nil {
			return err
		}
		results = append(results, listed...)
	}
	if len(args) > 0 {
		matched, err := processor.ProcessPatterns(ctx, args)
		if err != nil {
			return err
		}
		results = append(results, matched...)
	}

	successCount, failureCount := 0, 0
	var assigned, unassignable int
	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}
		successCount++
		assigned += result.Stats.Assigned
		unassignable += result.Stats.Unassignable
		fmt.Fprintf(stderr, "✓ %s (%d assigned, %d unassignable)\n",
			result.Path, result.Stats.Assigned, result.Stats.Unassignable)
	}

	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  Batch Complete\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Total:        %d files\n", len(results))
	fmt.Fprintf(stderr, "  Success:      %d\n", successCount)
	fmt.Fprintf(stderr, "  Failures:     %d\n", failureCount)
	fmt.Fprintf(stderr, "  Assigned:     %d\n", assigned)
	fmt.Fprintf(stderr, "  Unassignable: %d\n", unassignable)
	fmt.Fprintf(stderr, "  Output:       %s\n", outDir)
	fmt.Fprintf(stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d files failed", failureCount, len(results))
	}
	return nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// batchName derives a unique output name from a file path, so files with the
// same base name in different directories do not overwrite each other
func batchName(path string) string {
	path = filepath.ToSlash(filepath.Clean(path))
	path = strings.TrimSuffix(path, filepath.Ext(path))
	path = strings.TrimLeft(path, "./")
	s := filenameReplacer.Replace(path)
	if len(s) > 100 {
		s = s[len(s)-100:]
	}
	if s == "" {
		return "requirements"
	}
	return s
}
