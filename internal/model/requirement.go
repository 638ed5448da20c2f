package model

import (
	"fmt"
	"strings"
)

// Requirement is one input record to be placed into the outline
type Requirement struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Category    Category `json:"category" yaml:"category"`
	Priority    Priority `json:"priority" yaml:"priority"`
}

// Text returns the title and description joined for matching
func (r Requirement) Text() string {
	if r.Description == "" {
		return r.Title
	}
	return r.Title + ". " + r.Description
}

// Validate checks the mandatory fields of a requirement
func (r Requirement) Validate() error {
	var missing []string
	if strings.TrimSpace(r.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.Description) == "" {
		missing = append(missing, "description")
	}
	if r.Category == "" {
		missing = append(missing, "category")
	}
	if r.Priority == "" {
		missing = append(missing, "priority")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: requirement %q missing %s", ErrInvalidRequirement, r.ID, strings.Join(missing, ", "))
	}
	return nil
}

// Category classifies a requirement. Values outside the known set are
// carried through unchanged.
type Category string

const (
	CategoryFunctional    Category = "Functional"
	CategoryPerformance   Category = "Performance"
	CategoryInterface     Category = "Interface"
	CategorySafety        Category = "Safety"
	CategoryEnvironmental Category = "Environmental"
	CategoryMaintenance   Category = "Maintenance"
	CategoryTesting       Category = "Testing"
	CategoryRegulatory    Category = "Regulatory"
)

// KnownCategories lists the built-in categories in display order
var KnownCategories = []Category{
	CategoryFunctional,
	CategoryPerformance,
	CategoryInterface,
	CategorySafety,
	CategoryEnvironmental,
	CategoryMaintenance,
	CategoryTesting,
	CategoryRegulatory,
}

// Matches compares categories case-insensitively
func (c Category) Matches(other Category) bool {
	return strings.EqualFold(strings.TrimSpace(string(c)), strings.TrimSpace(string(other)))
}

// IsKnown reports whether the category is one of the built-in values
func (c Category) IsKnown() bool {
	for _, k := range KnownCategories {
		if k.Matches(c) {
			return true
		}
	}
	return false
}

// Priority is the ordered requirement priority
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// ParsePriority normalizes a priority string
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return PriorityCritical, nil
	case "high":
		return PriorityHigh, nil
	case "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidRequirement, s)
	}
}

// Rank orders priorities from most (0) to least (3) urgent. Unknown values rank last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// IsUrgent reports Critical or High priority
func (p Priority) IsUrgent() bool {
	return p == PriorityCritical || p == PriorityHigh
}
