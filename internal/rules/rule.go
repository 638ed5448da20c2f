package rules

import (
	"fmt"
	"strings"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
	"github.com/ppiankov/reqmap/internal/util"
)

// Rule is a definition compiled against a loaded outline
type Rule struct {
	Definition
	weight   float64
	keywords []keyword
}

type keyword struct {
	raw   string
	norm  string
	stems []string
}

// Match is the outcome of evaluating one rule against one requirement
type Match struct {
	RuleID          string
	Fires           bool
	CategoryHit     bool
	KeywordFraction float64  // Matched keywords / configured keywords
	Matched         []string // Keywords found in the text, as configured
	Strength        float64  // Overall match strength in [0,1]
}

// Text is a requirement prepared once for evaluation against many rules
type Text struct {
	category model.Category
	padded   string
	stems    map[string]bool
}

// PrepareText normalizes a requirement's title and description
func PrepareText(req model.Requirement) *Text {
	tokens := util.ContentTokens(req.Title + " " + req.Description)
	stems := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		stems[t] = true
	}
	return &Text{
		category: req.Category,
		padded:   " " + util.Normalize(req.Title+" "+req.Description) + " ",
		stems:    stems,
	}
}

// Weight returns the effective weight in (0,1]
func (r *Rule) Weight() float64 {
	return r.weight
}

// IsSafety reports whether the rule routes into safety-relevant chapters
func (r *Rule) IsSafety() bool {
	return r.Safety || r.Category.Matches(model.CategorySafety)
}

// Evaluate matches the rule against a requirement
func (r *Rule) Evaluate(req model.Requirement) Match {
	return r.EvaluateText(PrepareText(req))
}

// EvaluateText matches the rule against prepared text
func (r *Rule) EvaluateText(t *Text) Match {
	m := Match{RuleID: r.ID}

	hasCategory := r.Category != ""
	if hasCategory {
		m.CategoryHit = r.Category.Matches(t.category)
	}

	for _, k := range r.keywords {
		if k.matches(t) {
			m.Matched = append(m.Matched, k.raw)
		}
	}
	if len(r.keywords) > 0 {
		m.KeywordFraction = float64(len(m.Matched)) / float64(len(r.keywords))
	}

	m.Fires = m.CategoryHit || len(m.Matched) > 0

	switch {
	case hasCategory && len(r.keywords) > 0:
		cat := 0.0
		if m.CategoryHit {
			cat = 1
		}
		m.Strength = (cat + m.KeywordFraction) / 2
	case hasCategory:
		if m.CategoryHit {
			m.Strength = 1
		}
	default:
		m.Strength = m.KeywordFraction
	}

	return m
}

// matches tries a whole-word phrase match first, then requires every stem of
// the keyword to appear among the text's stems
func (k keyword) matches(t *Text) bool {
	if k.norm == "" {
		return false
	}
	if strings.Contains(t.padded, " "+k.norm+" ") {
		return true
	}
	if len(k.stems) == 0 {
		return false
	}
	for _, s := range k.stems {
		if !t.stems[s] {
			return false
		}
	}
	return true
}

func compileKeyword(raw string) keyword {
	stems := util.ContentTokens(raw)
	if len(stems) == 0 {
		for _, w := range util.Tokenize(raw) {
			stems = append(stems, util.Stem(w))
		}
	}
	return keyword{raw: raw, norm: util.Normalize(raw), stems: stems}
}

// Bound is a catalog resolved against one outline. It is read-only and safe
// for concurrent use.
type Bound struct {
	rules    []*Rule
	byTarget map[string][]*Rule
}

// Bind compiles every definition against the outline. A rule whose target is
// not in the outline fails with model.ErrUnresolvedRuleTarget.
func (c *Catalog) Bind(o *outline.Outline) (*Bound, error) {
	defs := c.Definitions()
	b := &Bound{
		rules:    make([]*Rule, 0, len(defs)),
		byTarget: make(map[string][]*Rule),
	}

	for _, d := range defs {
		if !o.Contains(d.Target) {
			return nil, &model.RuleTargetError{RuleID: d.ID, Target: d.Target}
		}

		weight := d.Weight
		if weight == 0 {
			weight = 1
		}
		if weight < 0 || weight > 1 {
			return nil, fmt.Errorf("%w: rule %q weight %.3f outside (0, 1]", model.ErrInvalidConfig, d.ID, d.Weight)
		}

		r := &Rule{Definition: d, weight: weight}
		for _, k := range d.Keywords {
			r.keywords = append(r.keywords, compileKeyword(k))
		}

		b.rules = append(b.rules, r)
		b.byTarget[d.Target] = append(b.byTarget[d.Target], r)
	}

	return b, nil
}

// Rules returns all bound rules in catalog order
func (b *Bound) Rules() []*Rule {
	return b.rules
}

// ForNode returns the rules targeting a node, in catalog order
func (b *Bound) ForNode(id string) []*Rule {
	return b.byTarget[id]
}
