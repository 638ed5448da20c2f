package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
	"github.com/ppiankov/reqmap/internal/pipeline"
	"github.com/ppiankov/reqmap/internal/render"
	"github.com/ppiankov/reqmap/internal/rules"
)

var (
	outlineSource  string
	rulesSource    string
	sourceDocument string
	documentID     string
	outDir         string
	writeJSON      bool
	writePolarion  bool
	writeReport    bool
	mapTimeout     time.Duration
	watchRules     bool
)

// mapCmd represents the map command
var mapCmd = &cobra.Command{
	Use:   "map <requirements>",
	Short: "Place a requirement set into a document outline",
	Long: `Map scores every requirement against every heading of the outline and
places it under the best heading, or reports it as unassignable.

Inputs may be local files or http(s) URLs, in JSON or YAML:
- outline: a structured document, a discovered documents export, or a
  native file with nested "nodes" or flat "headings"
- requirements: a list, {"requirements": [...]}, or a structured document
- rules: category and keyword rules targeting outline headings

Outputs (written to --out-dir):
- <name>.json           the outline with requirements placed as workitems
- <name>.polarion.json  Polarion work item export
- <name>.md             audit report with every decision and its signals

Example:
  reqmap map reqs.json --outline template.json --rules rules.yaml
  reqmap map reqs.yaml --outline discovered_documents.json --source-document DOC-1 --polarion
  reqmap map reqs.json --outline template.json --rules rules.yaml --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runMap,
}

func init() {
	rootCmd.AddCommand(mapCmd)
	addInputFlags(mapCmd)
	mapCmd.Flags().BoolVar(&watchRules, "watch", false, "re-run when the rules file changes")
}

// addInputFlags registers the flags shared by map and batch
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&outlineSource, "outline", "", "outline file or URL (required)")
	cmd.Flags().StringVar(&rulesSource, "rules", "", "rule catalog file or URL")
	cmd.Flags().StringVar(&sourceDocument, "source-document", "", "document to take from a discovered documents export")
	cmd.Flags().StringVar(&documentID, "document-id", "", "Polarion document id for exported work items (default from config)")
	cmd.Flags().StringVar(&outDir, "out-dir", "./reqmap-out", "output directory")
	cmd.Flags().BoolVar(&writeJSON, "json", true, "write the mapped document as JSON")
	cmd.Flags().BoolVar(&writePolarion, "polarion", false, "write a Polarion work item export")
	cmd.Flags().BoolVar(&writeReport, "report", true, "write a Markdown audit report")
	cmd.Flags().DurationVar(&mapTimeout, "timeout", 10*time.Minute, "timeout for a mapping run")
	_ = cmd.MarkFlagRequired("outline")
}

// session holds what every run of a command shares
type session struct {
	cfg      *model.Config
	pipeline *pipeline.Pipeline
	inputs   *inputs
	outline  *outline.Outline
	stderr   io.Writer
}

func newSession(ctx context.Context, stderr io.Writer) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if documentID != "" {
		cfg.Output.DocumentID = documentID
	}

	p, err := pipeline.FromConfig(ctx, cfg, newLogger())
	if err != nil {
		return nil, err
	}

	in := newInputs(cfg, sourceDocument)
	o, err := in.loadOutline(ctx, outlineSource)
	if err != nil {
		return nil, err
	}

	return &session{cfg: cfg, pipeline: p, inputs: in, outline: o, stderr: stderr}, nil
}

// mapSource maps one requirement source and writes its outputs under name
func (s *session) mapSource(ctx context.Context, source, name string, catalog *rules.Catalog) (*pipeline.Result, []string, error) {
	reqs, err := s.inputs.loadRequirements(ctx, source)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, mapTimeout)
	defer cancel()

	res, err := s.pipeline.Map(ctx, reqs, s.outline, catalog)
	if err != nil {
		return nil, nil, err
	}

	written, err := s.writeOutputs(res, name)
	if err != nil {
		return res, nil, err
	}
	return res, written, nil
}

func (s *session) writeOutputs(res *pipeline.Result, name string) ([]string, error) {
	var written []string

	if writeJSON {
		path := filepath.Join(outDir, name+".json")
		if err := render.WriteJSONFile(path, render.Document(res)); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if writePolarion {
		path := filepath.Join(outDir, name+".polarion.json")
		export := render.Polarion(res, s.cfg.Output.DocumentID, time.Now())
		if err := render.WriteJSONFile(path, export); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if writeReport {
		path := filepath.Join(outDir, name+".md")
		if err := render.WriteFile(path, render.Markdown(res)); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}

// outputName derives output file names from the requirement source
func outputName(source string) string {
	base := source
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" {
		return "requirements"
	}
	return base
}

func runMap(cmd *cobra.Command, args []string) error {
	source := args[0]
	stderr := cmd.ErrOrStderr()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  reqmap\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Requirements: %s\n", source)
	fmt.Fprintf(stderr, "  Outline:      %s\n", outlineSource)
	if rulesSource != "" {
		fmt.Fprintf(stderr, "  Rules:        %s\n", rulesSource)
	}
	fmt.Fprintf(stderr, "  Output dir:   %s\n", outDir)
	fmt.Fprintf(stderr, "\n")

	s, err := newSession(ctx, stderr)
	if err != nil {
		return err
	}

	if !watchRules {
		catalog, err := s.inputs.loadRules(ctx, rulesSource)
		if err != nil {
			return err
		}
		return s.runOnce(ctx, source, catalog)
	}

	if rulesSource == "" || pipeline.IsURL(rulesSource) {
		return fmt.Errorf("--watch needs a local --rules file")
	}
	store, err := rules.NewStore(rulesSource, newLogger())
	if err != nil {
		return err
	}
	if err := s.runOnce(ctx, source, store.Catalog()); err != nil {
		fmt.Fprintf(stderr, "✗ %v\n", err)
	}

	fmt.Fprintf(stderr, "👀 Watching %s for changes (Ctrl+C to stop)\n", store.Path())
	err = store.Watch(ctx, func(c *rules.Catalog) {
		fmt.Fprintf(stderr, "\n↻ Rules changed, re-running\n")
		if err := s.runOnce(ctx, source, c); err != nil {
			fmt.Fprintf(stderr, "✗ %v\n", err)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *session) runOnce(ctx context.Context, source string, catalog *rules.Catalog) error {
	fmt.Fprintf(s.stderr, "⚙️  Mapping requirements...\n")
	res, written, err := s.mapSource(ctx, source, outputName(source), catalog)
	if err != nil {
		var degraded *model.DegradedRunError
		if errors.As(err, &degraded) {
			fmt.Fprintf(s.stderr, "⚠️  Similarity provider failed too often; no output written\n")
		}
		return err
	}

	printSummary(s.stderr, res, written)
	return nil
}

func printSummary(w io.Writer, res *pipeline.Result, written []string) {
	st := res.Stats
	fmt.Fprintf(w, "✓ Run %s finished in %v\n", res.RunID, res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Requirements: %d\n", st.Requirements)
	fmt.Fprintf(w, "  Assigned:     %d\n", st.Assigned)
	fmt.Fprintf(w, "  Unassignable: %d\n", st.Unassignable)
	fmt.Fprintf(w, "  Headings:     %d\n", st.Nodes)
	fmt.Fprintf(w, "  Similarity:   %s (%d calls, %d failed)\n", st.Strategy, st.SimilarityCalls, st.SimilarityFailures)
	fmt.Fprintf(w, "\n")
	for _, path := range written {
		fmt.Fprintf(w, "📄 %s\n", path)
	}
	if verbose {
		for _, u := range res.Unassignable {
			best := "no candidate"
			if u.BestNodeID != "" {
				best = fmt.Sprintf("best %s at %.3f", u.BestNodeID, u.BestScore)
			}
			fmt.Fprintf(w, "  - %s unassignable (%s, threshold %.2f)\n", u.Requirement.ID, best, u.Threshold)
		}
	}
	fmt.Fprintf(w, "\n")
}
