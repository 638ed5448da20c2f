package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
	"github.com/ppiankov/reqmap/internal/rules"
)

var normalizeRules bool

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect rule catalogs",
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check <rules>",
	Short: "Check a rule catalog against an outline",
	Long: `Check resolves every rule target against the outline and reports all
rules whose target heading does not exist, along with headings no rule
targets. With --normalize the catalog is printed back as canonical YAML.

Example:
  reqmap rules check rules.yaml --outline template.json
  reqmap rules check rules.yaml --outline template.json --normalize > rules.clean.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesCheck,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
	rulesCheckCmd.Flags().StringVar(&outlineSource, "outline", "", "outline file or URL (required)")
	rulesCheckCmd.Flags().StringVar(&sourceDocument, "source-document", "", "document to take from a discovered documents export")
	rulesCheckCmd.Flags().BoolVar(&normalizeRules, "normalize", false, "print the catalog as canonical YAML")
	_ = rulesCheckCmd.MarkFlagRequired("outline")
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	in := newInputs(cfg, sourceDocument)
	o, err := in.loadOutline(ctx, outlineSource)
	if err != nil {
		return err
	}
	catalog, err := in.loadRules(ctx, args[0])
	if err != nil {
		return err
	}

	if normalizeRules {
		data, err := rules.Marshal(catalog)
		if err != nil {
			return fmt.Errorf("encode rules: %w", err)
		}
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return err
		}
	}

	return checkCatalog(cmd, o, catalog)
}

// checkCatalog reports every unresolved target, then binds the catalog to
// surface remaining definition errors
func checkCatalog(cmd *cobra.Command, o *outline.Outline, catalog *rules.Catalog) error {
	out := cmd.ErrOrStderr()
	defs := catalog.Definitions()

	var problems []error
	for _, d := range defs {
		if !o.Contains(d.Target) {
			problems = append(problems, &model.RuleTargetError{RuleID: d.ID, Target: d.Target})
		}
	}
	if len(problems) == 0 {
		if _, err := catalog.Bind(o); err != nil {
			problems = append(problems, err)
		}
	}

	targeted := make(map[string]int)
	for _, d := range defs {
		targeted[d.Target]++
	}

	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "  Rules:     %d\n", len(defs))
	fmt.Fprintf(out, "  Headings:  %d\n", o.Len())
	fmt.Fprintf(out, "\n")

	for _, d := range defs {
		mark := "✓"
		title := ""
		if e, ok := o.Lookup(d.Target); ok {
			title = e.Node.Title
		} else {
			mark = "✗"
		}
		var on []string
		if d.Category != "" {
			on = append(on, "category "+string(d.Category))
		}
		if len(d.Keywords) > 0 {
			on = append(on, "keywords "+strings.Join(d.Keywords, ", "))
		}
		fmt.Fprintf(out, "%s %-20s → %s %s (%s)\n", mark, d.ID, d.Target, title, strings.Join(on, "; "))
	}

	if verbose {
		fmt.Fprintf(out, "\nHeadings without rules:\n")
		for _, e := range o.Entries() {
			if targeted[e.Node.ID] == 0 {
				fmt.Fprintf(out, "  %s%s %s\n", strings.Repeat("  ", e.Depth), e.Node.OutlineNumber, e.Node.Title)
			}
		}
	}
	fmt.Fprintf(out, "\n")

	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s) in rule catalog: %w", len(problems), errors.Join(problems...))
	}
	fmt.Fprintf(out, "✓ Rule catalog is consistent with the outline\n")
	return nil
}
