package ingest

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
)

// Document is a structured requirement document: chapters with nested
// subchapters, each optionally holding requirements
type Document struct {
	ID       string    `yaml:"id" json:"id"`
	Title    string    `yaml:"title" json:"title"`
	Project  string    `yaml:"project,omitempty" json:"project,omitempty"`
	Space    string    `yaml:"space,omitempty" json:"space,omitempty"`
	Version  string    `yaml:"version,omitempty" json:"version,omitempty"`
	Chapters []Chapter `yaml:"chapters" json:"chapters"`
}

// Chapter is one heading of a structured document
type Chapter struct {
	Heading       string           `yaml:"heading" json:"heading"`
	HeadingID     string           `yaml:"heading_id" json:"heading_id"`
	OutlineNumber string           `yaml:"outlineNumber,omitempty" json:"outlineNumber,omitempty"`
	Description   string           `yaml:"description,omitempty" json:"description,omitempty"`
	Workitems     []RawRequirement `yaml:"workitems,omitempty" json:"workitems,omitempty"`
	Subchapters   []Chapter        `yaml:"subchapters,omitempty" json:"subchapters,omitempty"`
}

type structuredFile struct {
	Document Document `yaml:"document"`
}

// ParseStructured decodes a structured document. Input without a "document"
// object or without its id, title or chapters keys is rejected.
func ParseStructured(data []byte) (*Document, error) {
	var top map[string]interface{}
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decode structured document: %w", err)
	}
	doc, ok := top["document"].(map[string]interface{})
	if !ok {
		return nil, &model.OutlineError{Reason: "missing 'document' object"}
	}
	for _, key := range []string{"id", "title", "chapters"} {
		if _, ok := doc[key]; !ok {
			return nil, &model.OutlineError{Reason: fmt.Sprintf("missing required key %q in document", key)}
		}
	}
	if _, ok := doc["chapters"].([]interface{}); !ok {
		return nil, &model.OutlineError{Reason: "'chapters' must be a list"}
	}

	var f structuredFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode structured document: %w", err)
	}
	return &f.Document, nil
}

// Info returns the document identity
func (d *Document) Info() model.DocumentInfo {
	return model.DocumentInfo{ID: d.ID, Title: d.Title, Project: d.Project, Space: d.Space}
}

// Outline builds the outline of the document's chapters. Workitems are ignored.
func (d *Document) Outline() (*outline.Outline, error) {
	var convert func(chapters []Chapter) []*model.OutlineNode
	convert = func(chapters []Chapter) []*model.OutlineNode {
		nodes := make([]*model.OutlineNode, 0, len(chapters))
		for _, c := range chapters {
			nodes = append(nodes, &model.OutlineNode{
				ID:            c.HeadingID,
				Title:         c.Heading,
				OutlineNumber: c.OutlineNumber,
				Description:   c.Description,
				Children:      convert(c.Subchapters),
			})
		}
		return nodes
	}
	return outline.New(d.Info(), convert(d.Chapters))
}

// Requirements returns the workitems of every chapter in document order
func (d *Document) Requirements() ([]model.Requirement, error) {
	var raw []RawRequirement
	var walk func(chapters []Chapter)
	walk = func(chapters []Chapter) {
		for _, c := range chapters {
			raw = append(raw, c.Workitems...)
			walk(c.Subchapters)
		}
	}
	walk(d.Chapters)
	return NormalizeAll(raw)
}

// discoveredFile is the export of documents found in a requirements tool
type discoveredFile struct {
	Documents []struct {
		ID        string `yaml:"id"`
		Title     string `yaml:"title"`
		Project   string `yaml:"project"`
		Space     string `yaml:"space"`
		Structure struct {
			Headers []struct {
				ID            string `yaml:"id"`
				Title         string `yaml:"title"`
				OutlineNumber string `yaml:"outlineNumber"`
				ParentID      string `yaml:"parentId"`
			} `yaml:"headers"`
		} `yaml:"structure"`
	} `yaml:"documents"`
}

// ParseDiscovered builds an outline from the headers of a discovered
// documents export. documentID selects the document; empty selects the first
// document that has headers.
func ParseDiscovered(data []byte, documentID string) (*outline.Outline, error) {
	var f discoveredFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode discovered documents: %w", err)
	}

	for _, d := range f.Documents {
		if documentID != "" && d.ID != documentID {
			continue
		}
		if documentID == "" && len(d.Structure.Headers) == 0 {
			continue
		}
		headings := make([]model.FlatHeading, 0, len(d.Structure.Headers))
		for _, h := range d.Structure.Headers {
			headings = append(headings, model.FlatHeading{
				ID:            h.ID,
				Title:         h.Title,
				OutlineNumber: h.OutlineNumber,
				ParentID:      h.ParentID,
			})
		}
		info := model.DocumentInfo{ID: d.ID, Title: d.Title, Project: d.Project, Space: d.Space}
		return outline.FromFlat(info, headings)
	}

	if documentID != "" {
		return nil, &model.OutlineError{Reason: fmt.Sprintf("document %q not found", documentID)}
	}
	return nil, &model.OutlineError{Reason: "no document with headers"}
}

// outlineFile is the native outline shape: nested nodes or flat headings
type outlineFile struct {
	Document model.DocumentInfo   `yaml:"document"`
	Nodes    []*model.OutlineNode `yaml:"nodes"`
	Headings []model.FlatHeading  `yaml:"headings"`
}

// ParseOutline detects the outline shape and decodes it: a discovered
// documents export, a structured document, or a native file with nested
// "nodes" or flat "headings"
func ParseOutline(data []byte, documentID string) (*outline.Outline, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &model.OutlineError{Reason: "empty outline input"}
	}

	var top map[string]interface{}
	if err := yaml.Unmarshal(trimmed, &top); err != nil {
		return nil, fmt.Errorf("decode outline: %w", err)
	}

	if _, ok := top["documents"]; ok {
		return ParseDiscovered(trimmed, documentID)
	}
	if doc, ok := top["document"].(map[string]interface{}); ok {
		if _, ok := doc["chapters"]; ok {
			d, err := ParseStructured(trimmed)
			if err != nil {
				return nil, err
			}
			return d.Outline()
		}
	}

	var f outlineFile
	if err := yaml.Unmarshal(trimmed, &f); err != nil {
		return nil, fmt.Errorf("decode outline: %w", err)
	}
	switch {
	case len(f.Nodes) > 0:
		return outline.New(f.Document, f.Nodes)
	case len(f.Headings) > 0:
		return outline.FromFlat(f.Document, f.Headings)
	default:
		keys := make([]string, 0, len(top))
		for k := range top {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, &model.OutlineError{Reason: fmt.Sprintf("unrecognized outline shape (keys: %s)", strings.Join(keys, ", "))}
	}
}
