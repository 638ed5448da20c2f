// Package assemble builds the output document: a copy of the outline with
// every assigned requirement placed under its node.
package assemble

import (
	"fmt"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
)

// Assemble creates a fresh tree isomorphic to the outline and inserts the
// assigned requirements in input order. The outline is not modified.
// A requirement id placed twice fails with *model.DuplicateInsertionError.
func Assemble(o *outline.Outline, reqs []model.Requirement, log []model.Assignment) (*model.OutputTree, error) {
	tree := &model.OutputTree{Document: o.Document()}
	index := make(map[string]*model.DocumentNode, o.Len())
	tree.Roots = copyNodes(o.Roots(), index)

	byID := make(map[string]model.Requirement, len(reqs))
	for _, r := range reqs {
		byID[r.ID] = r
	}

	records := make(map[string][]model.Assignment, len(log))
	for _, a := range log {
		records[a.RequirementID] = append(records[a.RequirementID], a)
	}

	targets := make(map[string]string, len(log))
	for _, r := range reqs {
		for _, a := range records[r.ID] {
			if a.Status != model.StatusAssigned {
				continue
			}
			if first, dup := targets[r.ID]; dup {
				return nil, &model.DuplicateInsertionError{
					RequirementID: r.ID,
					FirstNodeID:   first,
					SecondNodeID:  a.TargetNodeID,
				}
			}
			node, ok := index[a.TargetNodeID]
			if !ok {
				return nil, fmt.Errorf("%w: requirement %q assigned to unknown node %q",
					model.ErrIntegrityViolation, r.ID, a.TargetNodeID)
			}
			node.Workitems = append(node.Workitems, byID[r.ID])
			targets[r.ID] = a.TargetNodeID
		}
	}

	return tree, nil
}

func copyNodes(nodes []*model.OutlineNode, index map[string]*model.DocumentNode) []*model.DocumentNode {
	out := make([]*model.DocumentNode, 0, len(nodes))
	for _, n := range nodes {
		d := &model.DocumentNode{
			ID:            n.ID,
			Title:         n.Title,
			OutlineNumber: n.OutlineNumber,
			Workitems:     []model.Requirement{},
		}
		index[n.ID] = d
		if len(n.Children) > 0 {
			d.Children = copyNodes(n.Children, index)
		}
		out = append(out, d)
	}
	return out
}
