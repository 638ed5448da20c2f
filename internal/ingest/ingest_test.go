package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/reqmap/internal/model"
)

const structuredJSON = `{
  "document": {
    "id": "BR-DOC",
    "title": "Brake System Requirements",
    "project": "Python",
    "space": "_default",
    "version": "1.0",
    "chapters": [
      {
        "heading": "Summary of the Function",
        "heading_id": "H-1",
        "outlineNumber": "1",
        "workitems": [
          {"id": "BR-FUN-001", "title": "ABS support", "description": "<p>Provides <b>ABS</b> braking assistance</p>", "category": "functional", "priority": "HIGH"}
        ],
        "subchapters": [
          {
            "heading": "Intended Use",
            "heading_id": "H-1.1",
            "outlineNumber": "1.1",
            "workitems": [
              {"id": "BR-SAF-001", "title": "Fail-safe", "description": "Enters a fail-safe state", "category": "Safety", "priority": "Critical"}
            ]
          }
        ]
      },
      {"heading": "Safety Concept", "heading_id": "H-2", "outlineNumber": "2"}
    ]
  }
}`

func TestParseStructured(t *testing.T) {
	doc, err := ParseStructured([]byte(structuredJSON))
	require.NoError(t, err)
	assert.Equal(t, "BR-DOC", doc.ID)
	assert.Equal(t, "1.0", doc.Version)

	o, err := doc.Outline()
	require.NoError(t, err)
	assert.Equal(t, []string{"H-1", "H-1.1", "H-2"}, o.IDs())
	assert.Equal(t, "Python", o.Document().Project)

	e, ok := o.Lookup("H-1.1")
	require.True(t, ok)
	assert.Equal(t, "Summary of the Function > Intended Use", e.ContextText())

	reqs, err := doc.Requirements()
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, model.Requirement{
		ID:          "BR-FUN-001",
		Title:       "ABS support",
		Description: "Provides ABS braking assistance",
		Category:    model.CategoryFunctional,
		Priority:    model.PriorityHigh,
	}, reqs[0])
	assert.Equal(t, "BR-SAF-001", reqs[1].ID)
}

func TestParseStructured_RequiredKeys(t *testing.T) {
	tests := map[string]string{
		"no document":  `{"chapters": []}`,
		"no id":        `{"document": {"title": "x", "chapters": []}}`,
		"no title":     `{"document": {"id": "x", "chapters": []}}`,
		"no chapters":  `{"document": {"id": "x", "title": "x"}}`,
		"bad chapters": `{"document": {"id": "x", "title": "x", "chapters": {}}}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseStructured([]byte(input))
			assert.ErrorIs(t, err, model.ErrMalformedOutline)
		})
	}
}

const discoveredJSON = `{
  "documents": [
    {"id": "EMPTY", "title": "No headers", "structure": {"headers": []}},
    {
      "id": "FC",
      "title": "Functional Concept",
      "structure": {
        "headers": [
          {"id": "H-1", "title": "Summary of the Function", "outlineNumber": "1"},
          {"id": "H-1.4", "title": "Function Overview", "outlineNumber": "1.4"},
          {"id": "H-1.4.1", "title": "Intended Use", "outlineNumber": "1.4.1"},
          {"id": "H-X", "title": "Appendix", "outlineNumber": "", "parentId": "H-1"}
        ]
      }
    }
  ]
}`

func TestParseDiscovered(t *testing.T) {
	o, err := ParseDiscovered([]byte(discoveredJSON), "")
	require.NoError(t, err)
	assert.Equal(t, "FC", o.Document().ID)

	e, ok := o.Lookup("H-1.4.1")
	require.True(t, ok)
	assert.Equal(t, 2, e.Depth)
	assert.Equal(t, "H-1.4", e.ParentID)

	x, ok := o.Lookup("H-X")
	require.True(t, ok)
	assert.Equal(t, "H-1", x.ParentID)

	_, err = ParseDiscovered([]byte(discoveredJSON), "MISSING")
	assert.ErrorIs(t, err, model.ErrMalformedOutline)

	_, err = ParseDiscovered([]byte(`{"documents": []}`), "")
	assert.ErrorIs(t, err, model.ErrMalformedOutline)
}

func TestParseOutline_DetectsShape(t *testing.T) {
	nested := `
document:
  id: FC
  title: Functional Concept
nodes:
  - id: H-1
    title: Summary
    children:
      - id: H-1.1
        title: Intended Use
  - id: H-2
    title: Safety
`
	flat := `
document: {id: FC}
headings:
  - {id: H-1, title: Summary, outline_number: "1"}
  - {id: H-1.1, title: Intended Use, outline_number: "1.1"}
`
	tests := []struct {
		name  string
		input string
		ids   []string
	}{
		{"discovered", discoveredJSON, []string{"H-1", "H-1.4", "H-1.4.1", "H-X"}},
		{"structured", structuredJSON, []string{"H-1", "H-1.1", "H-2"}},
		{"nested", nested, []string{"H-1", "H-1.1", "H-2"}},
		{"flat", flat, []string{"H-1", "H-1.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := ParseOutline([]byte(tt.input), "")
			require.NoError(t, err)
			assert.Equal(t, tt.ids, o.IDs())
		})
	}
}

func TestParseOutline_Rejects(t *testing.T) {
	for _, input := range []string{"", "{}", `{"something": 1}`} {
		_, err := ParseOutline([]byte(input), "")
		assert.ErrorIs(t, err, model.ErrMalformedOutline, "input %q", input)
	}

	_, err := ParseOutline([]byte(`{"headings": [{"id": "A"}, {"id": "A"}]}`), "")
	assert.ErrorIs(t, err, model.ErrMalformedOutline)
}

func TestParseRequirements_Shapes(t *testing.T) {
	tests := map[string]string{
		"json list":   `[{"id": "R1", "title": "T", "description": "D", "category": "Testing", "priority": "low"}]`,
		"json object": `{"requirements": [{"id": "R1", "title": "T", "description": "D", "category": "Testing", "priority": "low"}]}`,
		"yaml list":   "- id: R1\n  title: T\n  description: D\n  category: Testing\n  priority: low\n",
		"yaml object": "requirements:\n  - id: R1\n    title: T\n    description: D\n    category: testing\n    priority: Low\n",
	}
	want := model.Requirement{ID: "R1", Title: "T", Description: "D", Category: model.CategoryTesting, Priority: model.PriorityLow}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			reqs, err := ParseRequirements([]byte(input))
			require.NoError(t, err)
			assert.Equal(t, []model.Requirement{want}, reqs)
		})
	}
}

func TestParseRequirements_Invalid(t *testing.T) {
	_, err := ParseRequirements(nil)
	assert.ErrorIs(t, err, model.ErrInvalidRequirement)

	input := `[
  {"id": "R1", "title": "T", "description": "D", "category": "Testing", "priority": "urgent"},
  {"id": "R2", "title": "", "description": "D", "category": "Testing", "priority": "low"},
  {"id": "R3", "title": "T", "description": "D", "category": "Thermal", "priority": "low"}
]`
	_, err = ParseRequirements([]byte(input))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidRequirement))
	assert.Contains(t, err.Error(), "record 1")
	assert.Contains(t, err.Error(), `unknown priority "urgent"`)
	assert.Contains(t, err.Error(), "record 2")
	assert.NotContains(t, err.Error(), "record 3")
}

func TestNormalize_UnknownCategoryPassesThrough(t *testing.T) {
	req, err := Normalize(RawRequirement{ID: " R1 ", Title: "T", Description: "D", Category: " Thermal ", Priority: "medium"})
	require.NoError(t, err)
	assert.Equal(t, "R1", req.ID)
	assert.Equal(t, model.Category("Thermal"), req.Category)
	assert.False(t, req.Category.IsKnown())
	assert.Equal(t, model.PriorityMedium, req.Priority)
}

func TestParseRequirements_StructuredDocument(t *testing.T) {
	reqs, err := ParseRequirements([]byte(structuredJSON))
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "BR-FUN-001", reqs[0].ID)
	assert.Equal(t, "BR-SAF-001", reqs[1].ID)
}
