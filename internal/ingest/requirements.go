// Package ingest decodes the input shapes a mapping run consumes: requirement
// lists, structured requirement documents, discovered outline headers and
// native outline files. JSON and YAML are both accepted.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/util"
)

// RawRequirement is a requirement as found in input files, before normalization
type RawRequirement struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
	Priority    string `yaml:"priority" json:"priority"`
}

type requirementsFile struct {
	Requirements []RawRequirement `yaml:"requirements"`
}

// ParseRequirements decodes a requirement list: a bare JSON/YAML list, an
// object with a "requirements" list, or a structured document whose chapter
// workitems are taken in document order. Every record is normalized; all
// invalid records are reported together.
func ParseRequirements(data []byte) ([]model.Requirement, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty requirement input", model.ErrInvalidRequirement)
	}

	var raw []RawRequirement
	if trimmed[0] == '[' || trimmed[0] == '-' {
		if err := yaml.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("decode requirement list: %w", err)
		}
	} else {
		var top map[string]interface{}
		if err := yaml.Unmarshal(trimmed, &top); err != nil {
			return nil, fmt.Errorf("decode requirements: %w", err)
		}
		if _, ok := top["document"]; ok {
			d, err := ParseStructured(trimmed)
			if err != nil {
				return nil, err
			}
			return d.Requirements()
		}

		var f requirementsFile
		if err := yaml.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("decode requirements: %w", err)
		}
		raw = f.Requirements
	}

	return NormalizeAll(raw)
}

// NormalizeAll normalizes records in order, joining every error
func NormalizeAll(raw []RawRequirement) ([]model.Requirement, error) {
	out := make([]model.Requirement, 0, len(raw))
	var errs []error
	for i, r := range raw {
		req, err := Normalize(r)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i+1, err))
			continue
		}
		out = append(out, req)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Normalize trims fields, strips HTML markup from title and description,
// canonicalizes the priority and known category spellings, and checks the
// mandatory fields
func Normalize(r RawRequirement) (model.Requirement, error) {
	req := model.Requirement{
		ID:          strings.TrimSpace(r.ID),
		Title:       util.StripHTML(r.Title),
		Description: util.StripHTML(r.Description),
		Category:    canonicalCategory(r.Category),
	}

	if strings.TrimSpace(r.Priority) != "" {
		p, err := model.ParsePriority(r.Priority)
		if err != nil {
			return model.Requirement{}, fmt.Errorf("requirement %q: %w", req.ID, err)
		}
		req.Priority = p
	}

	if err := req.Validate(); err != nil {
		return model.Requirement{}, err
	}
	return req, nil
}

// canonicalCategory maps "safety" to "Safety"; unknown categories pass through trimmed
func canonicalCategory(s string) model.Category {
	c := model.Category(strings.TrimSpace(s))
	for _, k := range model.KnownCategories {
		if k.Matches(c) {
			return k
		}
	}
	return c
}
