package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ppiankov/reqmap/internal/model"
)

// Definition is a declarative mapping rule as written in the catalog file.
// A rule fires when the requirement's category equals Category, or when any
// of its Keywords appear in the requirement text.
type Definition struct {
	ID          string         `yaml:"id" json:"id"`
	Category    model.Category `yaml:"category,omitempty" json:"category,omitempty"`
	Keywords    []string       `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Target      string         `yaml:"target" json:"target"`
	Weight      float64        `yaml:"weight,omitempty" json:"weight,omitempty"` // (0,1], 0 means 1
	Safety      bool           `yaml:"safety,omitempty" json:"safety,omitempty"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
}

// Catalog is an ordered, mutable set of rule definitions. It is independent
// of any outline until bound.
type Catalog struct {
	mu   sync.RWMutex
	defs []Definition
	seq  int // Last generated "rule-N" suffix, never reused
}

// NewCatalog creates a catalog from definitions
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{}
	for _, d := range defs {
		if err := c.Add(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add appends a definition. Rules without an id get "rule-N".
func (c *Catalog) Add(def Definition) error {
	def.Target = strings.TrimSpace(def.Target)
	if def.Target == "" {
		return &model.RuleTargetError{RuleID: def.ID}
	}

	keywords := make([]string, 0, len(def.Keywords))
	for _, k := range def.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	def.Keywords = keywords
	if def.Category == "" && len(def.Keywords) == 0 {
		return fmt.Errorf("%w: rule %q needs a category or keywords", model.ErrInvalidConfig, def.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if def.ID == "" {
		for {
			c.seq++
			def.ID = fmt.Sprintf("rule-%d", c.seq)
			if !c.hasLocked(def.ID) {
				break
			}
		}
	} else if c.hasLocked(def.ID) {
		return fmt.Errorf("%w: duplicate rule id %q", model.ErrInvalidConfig, def.ID)
	}
	c.defs = append(c.defs, def)
	return nil
}

func (c *Catalog) hasLocked(id string) bool {
	for _, existing := range c.defs {
		if existing.ID == id {
			return true
		}
	}
	return false
}

// Remove deletes a definition by id and reports whether it existed
func (c *Catalog) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, d := range c.defs {
		if d.ID == id {
			c.defs = append(c.defs[:i], c.defs[i+1:]...)
			return true
		}
	}
	return false
}

// Definitions returns a copy of the current definitions
func (c *Catalog) Definitions() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of definitions
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}
