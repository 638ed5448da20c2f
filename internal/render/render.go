// Package render writes mapping results: the nested output document, a
// Polarion work-item import and a Markdown audit report.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/reqmap/internal/ingest"
	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/pipeline"
)

// DocumentFile is the nested output document. Its "document" part has the
// same shape as structured input, so an output can be mapped again.
type DocumentFile struct {
	Document     ingest.Document      `json:"document"`
	Unassignable []model.Unassignable `json:"unassignable"`
	Run          RunInfo              `json:"run"`
}

// RunInfo identifies the run that produced an output
type RunInfo struct {
	ID        string      `json:"run_id"`
	StartedAt string      `json:"started_at"`
	Stats     model.Stats `json:"stats"`
}

// Document converts a result into the nested output document
func Document(res *pipeline.Result) *DocumentFile {
	info := res.Tree.Document
	var convert func(nodes []*model.DocumentNode) []ingest.Chapter
	convert = func(nodes []*model.DocumentNode) []ingest.Chapter {
		out := make([]ingest.Chapter, 0, len(nodes))
		for _, n := range nodes {
			c := ingest.Chapter{
				Heading:       n.Title,
				HeadingID:     n.ID,
				OutlineNumber: n.OutlineNumber,
				Subchapters:   convert(n.Children),
			}
			for _, r := range n.Workitems {
				c.Workitems = append(c.Workitems, ingest.RawRequirement{
					ID:          r.ID,
					Title:       r.Title,
					Description: r.Description,
					Category:    string(r.Category),
					Priority:    string(r.Priority),
				})
			}
			out = append(out, c)
		}
		return out
	}

	unassignable := res.Unassignable
	if unassignable == nil {
		unassignable = []model.Unassignable{}
	}

	return &DocumentFile{
		Document: ingest.Document{
			ID:       info.ID,
			Title:    info.Title,
			Project:  info.Project,
			Space:    info.Space,
			Chapters: convert(res.Tree.Roots),
		},
		Unassignable: unassignable,
		Run: RunInfo{
			ID:        res.RunID,
			StartedAt: res.StartedAt.Format(time.RFC3339),
			Stats:     res.Stats,
		},
	}
}

// WriteJSON encodes v as indented JSON without HTML escaping
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteJSONFile writes v to path, creating parent directories
func WriteJSONFile(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(f, v); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WriteFile writes text content to path, creating parent directories
func WriteFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
