package score

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
	"github.com/ppiankov/reqmap/internal/rules"
	"github.com/ppiankov/reqmap/internal/similarity"
)

// NodeScore is the affinity of one requirement for one outline node
type NodeScore struct {
	NodeID   string
	Semantic float64 // S_sem in [0,1]
	Category float64 // S_cat in [0,1]
	Keyword  float64 // S_kw in [0,1]
	Total    float64

	// CategoryHit is set when a rule targeting the node matched the requirement's category
	CategoryHit bool
	// SafetyHit is set when a safety-relevant rule targeting the node fired
	SafetyHit bool
	// Degraded is set when the similarity call failed and S_sem was taken as 0
	Degraded bool

	Signals []model.Signal
}

// Rationale returns the signals that contributed to the score
func (s NodeScore) Rationale() []model.Signal {
	out := make([]model.Signal, 0, len(s.Signals))
	for _, sig := range s.Signals {
		if sig.Contribution > 0 {
			out = append(out, sig)
		}
	}
	return out
}

// Scorer combines semantic, category and keyword signals into one score
type Scorer struct {
	weights    model.Weights
	similarity similarity.Strategy
	rules      *rules.Bound
	logger     *slog.Logger
}

// NewScorer creates a scorer. The bound rules and the strategy are only read.
func NewScorer(weights model.Weights, sim similarity.Strategy, bound *rules.Bound, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		weights:    weights,
		similarity: sim,
		rules:      bound,
		logger:     logger,
	}
}

// Weights returns the configured weights
func (s *Scorer) Weights() model.Weights {
	return s.weights
}

// Subject is a requirement with every rule already evaluated against it
type Subject struct {
	Requirement model.Requirement
	text        string
	matches     map[string]rules.Match
}

// Prepare evaluates all rules against the requirement once, so scoring it
// against many nodes does not repeat the text matching
func (s *Scorer) Prepare(req model.Requirement) *Subject {
	t := rules.PrepareText(req)
	sub := &Subject{
		Requirement: req,
		text:        req.Text(),
		matches:     make(map[string]rules.Match, len(s.rules.Rules())),
	}
	for _, r := range s.rules.Rules() {
		sub.matches[r.ID] = r.EvaluateText(t)
	}
	return sub
}

// Score computes the score of req against one outline entry
func (s *Scorer) Score(ctx context.Context, req model.Requirement, entry outline.Entry) (NodeScore, error) {
	return s.ScoreSubject(ctx, s.Prepare(req), entry)
}

// ScoreSubject computes the score of a prepared requirement against one
// outline entry. A failed similarity call degrades S_sem to 0; only
// cancellation of ctx is returned as an error.
func (s *Scorer) ScoreSubject(ctx context.Context, sub *Subject, entry outline.Entry) (NodeScore, error) {
	ns := NodeScore{NodeID: entry.Node.ID}

	semantic, semSignal, err := s.semantic(ctx, sub, entry)
	if err != nil {
		return NodeScore{}, err
	}
	ns.Semantic = semantic
	ns.Degraded = semSignal.Data["degraded"] == true

	category, catSignal, catHit := s.category(sub, entry)
	ns.Category = category
	ns.CategoryHit = catHit

	keyword, kwSignal := s.keyword(sub, entry)
	ns.Keyword = keyword

	ns.SafetyHit = s.safetyHit(sub, entry)

	ns.Signals = []model.Signal{semSignal, catSignal, kwSignal}
	ns.Total = s.weights.Semantic*semantic + s.weights.Category*category + s.weights.Keyword*keyword

	return ns, nil
}

// Confidence normalizes a score by the highest reachable score
func (s *Scorer) Confidence(score float64) float64 {
	sum := s.weights.Sum()
	if sum <= 0 {
		return 0
	}
	c := score / sum
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

func (s *Scorer) semantic(ctx context.Context, sub *Subject, entry outline.Entry) (float64, model.Signal, error) {
	heading := entry.ContextText()
	sig := model.Signal{
		Type:   model.SignalSemantic,
		Weight: s.weights.Semantic,
		Data: map[string]interface{}{
			"strategy": s.similarity.Name(),
			"heading":  heading,
			"formula":  "similarity(title + description, ancestor titles > node title)",
		},
	}

	if s.weights.Semantic == 0 {
		sig.Description = "Semantic signal disabled (weight 0)"
		return 0, sig, nil
	}

	v, err := s.similarity.Similarity(ctx, sub.text, heading)
	if err != nil {
		if ctx.Err() != nil {
			return 0, model.Signal{}, ctx.Err()
		}
		s.logger.Warn("similarity degraded, using zero semantic signal",
			"requirement", sub.Requirement.ID,
			"node", entry.Node.ID,
			"strategy", s.similarity.Name(),
			"error", err,
		)
		sig.Description = "Similarity unavailable, treated as 0"
		sig.Data["degraded"] = true
		sig.Data["error"] = err.Error()
		return 0, sig, nil
	}

	sig.Value = v
	sig.Contribution = v * s.weights.Semantic
	sig.Description = fmt.Sprintf("Similarity to %q: %.2f", heading, v)
	return v, sig, nil
}

// category is the highest weight among category rules for this node that
// match the requirement's category
func (s *Scorer) category(sub *Subject, entry outline.Entry) (float64, model.Signal, bool) {
	best := 0.0
	hit := false
	var ruleIDs []string

	for _, r := range s.rules.ForNode(entry.Node.ID) {
		if r.Category == "" {
			continue
		}
		if !sub.matches[r.ID].CategoryHit {
			continue
		}
		hit = true
		ruleIDs = append(ruleIDs, r.ID)
		if r.Weight() > best {
			best = r.Weight()
		}
	}

	sig := model.Signal{
		Type:         model.SignalCategory,
		Value:        best,
		Weight:       s.weights.Category,
		Contribution: best * s.weights.Category,
		Data: map[string]interface{}{
			"category": string(sub.Requirement.Category),
			"rules":    ruleIDs,
			"formula":  "max(rule weight) over category rules matching the requirement category",
		},
	}
	if hit {
		sig.Description = fmt.Sprintf("Category %s matched by %s", sub.Requirement.Category, strings.Join(ruleIDs, ", "))
	} else {
		sig.Description = fmt.Sprintf("No category rule for %s targets this node", sub.Requirement.Category)
	}
	return best, sig, hit
}

// keyword is the weighted fraction of configured keywords found in the text
func (s *Scorer) keyword(sub *Subject, entry outline.Entry) (float64, model.Signal) {
	var found, configured float64
	var matched []string

	for _, r := range s.rules.ForNode(entry.Node.ID) {
		if len(r.Keywords) == 0 {
			continue
		}
		m := sub.matches[r.ID]
		found += r.Weight() * float64(len(m.Matched))
		configured += r.Weight() * float64(len(r.Keywords))
		matched = append(matched, m.Matched...)
	}

	value := 0.0
	if configured > 0 {
		value = found / configured
	}

	sig := model.Signal{
		Type:         model.SignalKeyword,
		Value:        value,
		Weight:       s.weights.Keyword,
		Contribution: value * s.weights.Keyword,
		Data: map[string]interface{}{
			"matched": matched,
			"formula": "sum(rule weight * matched keywords) / sum(rule weight * configured keywords)",
		},
	}
	switch {
	case configured == 0:
		sig.Description = "No keyword rules target this node"
	case len(matched) == 0:
		sig.Description = "No configured keyword found"
	default:
		sig.Description = fmt.Sprintf("Keywords found: %s", strings.Join(matched, ", "))
	}
	return value, sig
}

func (s *Scorer) safetyHit(sub *Subject, entry outline.Entry) bool {
	for _, r := range s.rules.ForNode(entry.Node.ID) {
		if r.IsSafety() && sub.matches[r.ID].Fires {
			return true
		}
	}
	return false
}
