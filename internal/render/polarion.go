package render

import (
	"sort"
	"time"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/pipeline"
	"github.com/ppiankov/reqmap/internal/util"
)

// PolarionExport is a work-item import file: one requirement work item per
// assigned requirement, each linked to its heading with has_parent
type PolarionExport struct {
	WorkItems []PolarionItem   `json:"work_items"`
	Metadata  PolarionMetadata `json:"metadata"`
}

// PolarionItem is one exported requirement with its heading link
type PolarionItem struct {
	WorkItem WorkItem       `json:"work_item"`
	Links    []Link         `json:"links"`
	Children []PolarionItem `json:"children"`
}

// WorkItem carries the Polarion fields of a requirement
type WorkItem struct {
	Type          string            `json:"type"`
	Title         string            `json:"title"`
	Description   Description       `json:"description"`
	Status        string            `json:"status"`
	Severity      string            `json:"severity"`
	Priority      string            `json:"priority"`
	CustomFields  map[string]string `json:"custom_fields,omitempty"`
	Relationships Relationships     `json:"relationships"`
}

// Description is rich text, "text/html" for exported requirements
type Description struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Relationships ties a work item to the Polarion document (module) it lives in
type Relationships struct {
	Module struct {
		Data struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		} `json:"data"`
	} `json:"module"`
}

// Link points a work item at its heading with the has_parent role
type Link struct {
	TargetID    string `json:"target_id"`
	Role        string `json:"role"`
	Description string `json:"description"`
}

// PolarionMetadata summarizes an export
type PolarionMetadata struct {
	TotalItems          int            `json:"total_items"`
	DocumentID          string         `json:"document_id"`
	RunID               string         `json:"run_id"`
	ConversionTimestamp string         `json:"conversion_timestamp"`
	Unassignable        int            `json:"unassignable"`
	Distribution        []HeadingCount `json:"distribution"`
	Note                string         `json:"note"`
}

// HeadingCount is the number of requirements linked to one heading
type HeadingCount struct {
	HeadingID string `json:"heading_id"`
	Heading   string `json:"heading"`
	Count     int    `json:"count"`
}

// Polarion converts a result into a work-item import for documentID
func Polarion(res *pipeline.Result, documentID string, now time.Time) *PolarionExport {
	export := &PolarionExport{WorkItems: []PolarionItem{}}
	var distribution []HeadingCount

	res.Tree.Walk(func(n *model.DocumentNode, _ int) bool {
		if len(n.Workitems) == 0 {
			return true
		}
		heading := headingLabel(n)
		for _, r := range n.Workitems {
			export.WorkItems = append(export.WorkItems, workItem(r, n.ID, heading, documentID))
		}
		distribution = append(distribution, HeadingCount{HeadingID: n.ID, Heading: heading, Count: len(n.Workitems)})
		return true
	})

	// Most used headings first; document order among equals
	sort.SliceStable(distribution, func(i, j int) bool {
		return distribution[i].Count > distribution[j].Count
	})
	if distribution == nil {
		distribution = []HeadingCount{}
	}

	export.Metadata = PolarionMetadata{
		TotalItems:          len(export.WorkItems),
		DocumentID:          documentID,
		RunID:               res.RunID,
		ConversionTimestamp: now.Format("20060102_150405"),
		Unassignable:        len(res.Unassignable),
		Distribution:        distribution,
		Note:                "Each requirement links to its chapter/subchapter heading via has_parent",
	}
	return export
}

func workItem(r model.Requirement, headingID, heading, documentID string) PolarionItem {
	wi := WorkItem{
		Type:        "requirement",
		Title:       r.Title,
		Description: Description{Type: "text/html", Value: util.Paragraph(r.Description)},
		Status:      PolarionStatus(r.Category),
		Severity:    PolarionSeverity(r.Category, r.Priority),
		Priority:    PolarionPriority(r.Priority),
		CustomFields: map[string]string{
			"requirement_id":    r.ID,
			"category":          string(r.Category),
			"original_priority": string(r.Priority),
		},
	}
	wi.Relationships.Module.Data.Type = "documents"
	wi.Relationships.Module.Data.ID = documentID

	return PolarionItem{
		WorkItem: wi,
		Links: []Link{{
			TargetID:    headingID,
			Role:        "has_parent",
			Description: "Links to " + heading,
		}},
		Children: []PolarionItem{},
	}
}

func headingLabel(n *model.DocumentNode) string {
	if n.OutlineNumber == "" {
		return n.Title
	}
	return n.OutlineNumber + " " + n.Title
}

// PolarionSeverity maps category and priority to a severity
func PolarionSeverity(c model.Category, p model.Priority) string {
	switch {
	case c.Matches(model.CategorySafety):
		if p == model.PriorityCritical {
			return "safety_critical"
		}
		return "must_have"
	case c.Matches(model.CategoryInterface), c.Matches(model.CategoryEnvironmental), c.Matches(model.CategoryTesting):
		return "should_have"
	case c.Matches(model.CategoryMaintenance):
		return "could_have"
	default:
		return "must_have"
	}
}

// PolarionStatus maps a category to the initial work-item status
func PolarionStatus(c model.Category) string {
	switch {
	case c.Matches(model.CategoryRegulatory):
		return "approved"
	case c.Matches(model.CategorySafety):
		return "in_review"
	default:
		return "draft"
	}
}

// PolarionPriority maps a priority to the Polarion priority value
func PolarionPriority(p model.Priority) string {
	switch p {
	case model.PriorityCritical, model.PriorityHigh:
		return "high"
	case model.PriorityLow:
		return "low"
	default:
		return "medium"
	}
}
