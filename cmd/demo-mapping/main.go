// Demo program showing how requirements are placed into an outline
// This prints every decision with its signals and the tie-break that settled it
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
	"github.com/ppiankov/reqmap/internal/pipeline"
	"github.com/ppiankov/reqmap/internal/rules"
)

func main() {
	fmt.Println("=== Requirement Mapping Demo ===")
	fmt.Println()

	o, err := outline.New(model.DocumentInfo{ID: "DEMO-1", Title: "Functional Concept"}, []*model.OutlineNode{
		{ID: "H-1", Title: "Summary of the Function", OutlineNumber: "1", Children: []*model.OutlineNode{
			{ID: "H-1.1", Title: "Intended Use", OutlineNumber: "1.1"},
		}},
		{ID: "H-2", Title: "Functional Safety", OutlineNumber: "2", Children: []*model.OutlineNode{
			{ID: "H-2.1", Title: "Safety Mechanisms", OutlineNumber: "2.1"},
			{ID: "H-2.2", Title: "Hazard Analysis", OutlineNumber: "2.2"},
		}},
		{ID: "H-3", Title: "Interfaces", OutlineNumber: "3"},
	})
	if err != nil {
		fmt.Printf("outline error: %v\n", err)
		os.Exit(1)
	}

	catalog, err := rules.NewCatalog(
		rules.Definition{ID: "functional", Category: model.CategoryFunctional, Target: "H-1.1"},
		rules.Definition{ID: "safety", Category: model.CategorySafety, Target: "H-2.1", Safety: true},
		rules.Definition{ID: "hazard", Keywords: []string{"hazard", "failure mode"}, Target: "H-2.2", Safety: true},
		rules.Definition{ID: "interface", Category: model.CategoryInterface, Keywords: []string{"CAN", "signal"}, Target: "H-3"},
	)
	if err != nil {
		fmt.Printf("rules error: %v\n", err)
		os.Exit(1)
	}

	reqs := []model.Requirement{
		{ID: "BR-FUN-001", Title: "Anti-lock braking", Description: "The system shall prevent wheel lock during braking.", Category: model.CategoryFunctional, Priority: model.PriorityHigh},
		{ID: "BR-SAF-001", Title: "Brake failure warning", Description: "A failure mode of the hydraulic circuit shall raise a warning.", Category: model.CategorySafety, Priority: model.PriorityCritical},
		{ID: "BR-INT-001", Title: "Wheel speed input", Description: "Wheel speed shall be read from the CAN bus.", Category: model.CategoryInterface, Priority: model.PriorityMedium},
		{ID: "BR-REG-001", Title: "Homologation", Description: "The product shall carry the ECE R13 approval mark.", Category: model.CategoryRegulatory, Priority: model.PriorityLow},
	}

	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false

	p, err := pipeline.NewPipeline(cfg, nil, nil)
	if err != nil {
		fmt.Printf("pipeline error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := p.Map(ctx, reqs, o, catalog)
	if err != nil {
		fmt.Printf("mapping error: %v\n", err)
		os.Exit(1)
	}

	for _, a := range res.Log {
		fmt.Printf("Requirement: %s\n", a.RequirementID)
		fmt.Println(strings.Repeat("-", 60))

		if a.Status == model.StatusUnassignable {
			fmt.Printf("  ✗ UNASSIGNABLE (best %s at %.3f, threshold %.2f)\n", a.BestNodeID, a.Score, cfg.Threshold)
		} else {
			e, _ := o.Lookup(a.TargetNodeID)
			fmt.Printf("  ✓ %s %s\n", e.Node.OutlineNumber, e.Node.Title)
			fmt.Printf("     - Score: %.3f (confidence %.2f)\n", a.Score, a.Confidence)
			if a.TieBreak != model.TieBreakNone {
				fmt.Printf("     - Tie among %d headings settled by %s\n", a.Candidates, a.TieBreak)
			}
		}
		for _, s := range a.Rationale {
			fmt.Printf("     - %s: %.2f × %.2f  %s\n", s.Type, s.Value, s.Weight, s.Description)
		}
		fmt.Println()
	}

	fmt.Printf("=== %d assigned, %d unassignable (run %s) ===\n", res.Stats.Assigned, res.Stats.Unassignable, res.RunID)
}
