package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/pipeline"
)

// Markdown renders the audit report of a run: summary, heading distribution,
// every decision with its signals, and the unassignable triage table
func Markdown(res *pipeline.Result) string {
	var b strings.Builder

	nodes := make(map[string]*model.DocumentNode)
	res.Tree.Walk(func(n *model.DocumentNode, _ int) bool {
		nodes[n.ID] = n
		return true
	})
	label := func(id string) string {
		if n, ok := nodes[id]; ok {
			return headingLabel(n)
		}
		return id
	}

	doc := res.Tree.Document
	s := res.Stats

	b.WriteString("# Requirement Mapping Report\n\n")
	fmt.Fprintf(&b, "**Document:** %s", cell(doc.Title))
	if doc.ID != "" {
		fmt.Fprintf(&b, " (`%s`)", doc.ID)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "**Run:** `%s`\n", res.RunID)
	fmt.Fprintf(&b, "**Started:** %s\n", res.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "**Duration:** %s\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "**Similarity:** %s\n\n", s.Strategy)

	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Requirements | %d |\n", s.Requirements)
	fmt.Fprintf(&b, "| Assigned | %d |\n", s.Assigned)
	fmt.Fprintf(&b, "| Unassignable | %d |\n", s.Unassignable)
	fmt.Fprintf(&b, "| Outline nodes | %d |\n", s.Nodes)
	fmt.Fprintf(&b, "| Similarity calls | %d |\n", s.SimilarityCalls)
	fmt.Fprintf(&b, "| Similarity failures | %d (%.1f%%) |\n\n", s.SimilarityFailures, s.DegradedRatio*100)

	if s.SimilarityFailures > 0 {
		b.WriteString("> ⚠️ Some similarity lookups failed and were scored as 0. ")
		b.WriteString("Decisions marked *degraded* rest on category and keyword signals only.\n\n")
	}

	b.WriteString("## Heading Distribution\n\n")
	b.WriteString("| Heading | Requirements |\n|---|---|\n")
	res.Tree.Walk(func(n *model.DocumentNode, depth int) bool {
		fmt.Fprintf(&b, "| %s%s | %d |\n", strings.Repeat("&nbsp;&nbsp;", depth), cell(headingLabel(n)), len(n.Workitems))
		return true
	})
	b.WriteString("\n")

	b.WriteString("## Decisions\n\n")
	if len(res.Log) == 0 {
		b.WriteString("_No requirements._\n\n")
	} else {
		b.WriteString("| Requirement | Status | Node | Score | Confidence | Tie-break | Signals |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, a := range res.Log {
			node := "-"
			if a.TargetNodeID != "" {
				node = cell(label(a.TargetNodeID))
			}
			status := string(a.Status)
			if a.Degraded {
				status += " (degraded)"
			}
			tie := "-"
			if a.TieBreak != model.TieBreakNone {
				tie = fmt.Sprintf("%s of %d", a.TieBreak, a.Candidates)
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %.3f | %.0f%% | %s | %s |\n",
				cell(a.RequirementID), status, node, a.Score, a.Confidence*100, tie, signalSummary(a.Rationale))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Unassignable\n\n")
	if len(res.Unassignable) == 0 {
		b.WriteString("_Every requirement was assigned._\n")
		return b.String()
	}
	b.WriteString("| Requirement | Title | Category | Priority | Best node | Best score | Threshold |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, u := range res.Unassignable {
		best := "-"
		if u.BestNodeID != "" {
			best = cell(label(u.BestNodeID))
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %.3f | %.3f |\n",
			cell(u.Requirement.ID), cell(u.Requirement.Title), cell(string(u.Requirement.Category)),
			u.Requirement.Priority, best, u.BestScore, u.Threshold)
	}
	return b.String()
}

func signalSummary(signals []model.Signal) string {
	if len(signals) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(signals))
	for _, s := range signals {
		parts = append(parts, fmt.Sprintf("%s %.2f×%.2f", s.Type, s.Value, s.Weight))
	}
	return strings.Join(parts, ", ")
}

// cell makes text safe inside a Markdown table cell
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}
