// Package validate checks an assembled document against its inputs before it
// is handed out.
package validate

import (
	"fmt"
	"log/slog"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
)

// Validator checks completeness, uniqueness and node-set equality
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a validator. A nil logger uses slog.Default().
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// Check verifies that
//   - every input requirement is either placed exactly once in the tree or
//     listed as unassignable, never both
//   - no requirement outside the input shows up
//   - the tree has exactly the outline's nodes, under the same parents
//   - every placement agrees with the assignment log, when one is given
//
// All violations are collected into one *model.IntegrityError.
func (v *Validator) Check(o *outline.Outline, reqs []model.Requirement, tree *model.OutputTree, unassignable []model.Unassignable, log []model.Assignment) error {
	var problems []string
	addf := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if tree == nil {
		return &model.IntegrityError{Problems: []string{"no output tree"}}
	}

	input := make(map[string]int, len(reqs))
	for _, r := range reqs {
		input[r.ID]++
	}
	for _, r := range reqs {
		if input[r.ID] > 1 {
			addf("requirement %q appears %d times in the input", r.ID, input[r.ID])
			input[r.ID] = 1
		}
	}

	placedIn := make(map[string][]string)
	var placedOrder, nodeOrder []string
	seenNodes := make(map[string]bool, o.Len())
	tree.Walk(func(n *model.DocumentNode, _ int) bool {
		if seenNodes[n.ID] {
			addf("node %q appears more than once in the output", n.ID)
		} else {
			nodeOrder = append(nodeOrder, n.ID)
		}
		seenNodes[n.ID] = true
		for _, w := range n.Workitems {
			if _, ok := placedIn[w.ID]; !ok {
				placedOrder = append(placedOrder, w.ID)
			}
			placedIn[w.ID] = append(placedIn[w.ID], n.ID)
		}
		return true
	})

	// Node-set equality including structure
	parents := make(map[string]string, o.Len())
	var collect func(nodes []*model.DocumentNode, parent string)
	collect = func(nodes []*model.DocumentNode, parent string) {
		for _, n := range nodes {
			parents[n.ID] = parent
			collect(n.Children, n.ID)
		}
	}
	collect(tree.Roots, "")
	for _, e := range o.Entries() {
		parent, ok := parents[e.Node.ID]
		if !ok {
			addf("outline node %q is missing from the output", e.Node.ID)
			continue
		}
		if parent != e.ParentID {
			addf("node %q is under %q in the output but under %q in the outline", e.Node.ID, parent, e.ParentID)
		}
	}
	for _, id := range nodeOrder {
		if !o.Contains(id) {
			addf("output node %q is not in the outline", id)
		}
	}

	unassigned := make(map[string]int, len(unassignable))
	for _, u := range unassignable {
		unassigned[u.Requirement.ID]++
		if _, ok := input[u.Requirement.ID]; !ok {
			addf("unassignable requirement %q is not in the input", u.Requirement.ID)
		}
	}

	targets := make(map[string]string, len(log))
	for _, a := range log {
		if a.Status == model.StatusAssigned {
			targets[a.RequirementID] = a.TargetNodeID
		}
	}

	checked := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		if checked[r.ID] {
			continue
		}
		checked[r.ID] = true
		nodes := placedIn[r.ID]
		switch {
		case len(nodes) == 0 && unassigned[r.ID] == 0:
			addf("requirement %q is neither placed nor unassignable", r.ID)
		case len(nodes) > 1:
			addf("requirement %q is placed %d times (%v)", r.ID, len(nodes), nodes)
		case len(nodes) == 1 && unassigned[r.ID] > 0:
			addf("requirement %q is placed in %q and also unassignable", r.ID, nodes[0])
		case unassigned[r.ID] > 1:
			addf("requirement %q is listed as unassignable %d times", r.ID, unassigned[r.ID])
		}
		if len(nodes) == 1 && log != nil {
			if want, ok := targets[r.ID]; !ok || want != nodes[0] {
				addf("requirement %q is placed in %q but the log assigns it to %q", r.ID, nodes[0], want)
			}
		}
	}

	for _, id := range placedOrder {
		if _, ok := input[id]; !ok {
			addf("output requirement %q (in %v) is not in the input", id, placedIn[id])
		}
	}

	if len(problems) > 0 {
		v.logger.Error("integrity check failed", "problems", len(problems))
		return &model.IntegrityError{Problems: problems}
	}
	v.logger.Debug("integrity check passed", "requirements", len(reqs), "nodes", o.Len())
	return nil
}
