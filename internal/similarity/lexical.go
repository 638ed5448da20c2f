package similarity

import (
	"context"
	"unicode/utf8"

	"github.com/ppiankov/reqmap/internal/util"
)

// Lexical is an offline strategy: the overlap coefficient of the two texts'
// content tokens, where tokens also match when they are near spellings of
// each other (normalized Levenshtein at or above FuzzyThreshold)
type Lexical struct {
	FuzzyThreshold float64
	// MinFuzzyLength keeps short tokens such as "abs" from fuzzy matching
	MinFuzzyLength int
}

// NewLexical returns the default lexical strategy
func NewLexical() *Lexical {
	return &Lexical{FuzzyThreshold: 0.8, MinFuzzyLength: 5}
}

func (l *Lexical) Name() string { return "lexical" }

// Similarity is |matched| / min(|A|, |B|) over unique content tokens. It is
// 0 when either side has no content tokens.
func (l *Lexical) Similarity(_ context.Context, requirement, heading string) (float64, error) {
	a := util.UniqueTokens(util.ContentTokens(requirement))
	b := util.UniqueTokens(util.ContentTokens(heading))
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}

	// Iterate the smaller set against the larger
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	exact := make(map[string]bool, len(large))
	for _, t := range large {
		exact[t] = true
	}

	matched := 0
	for _, t := range small {
		if exact[t] || l.fuzzyMatch(t, large) {
			matched++
		}
	}

	return clamp(float64(matched) / float64(len(small))), nil
}

func (l *Lexical) fuzzyMatch(token string, candidates []string) bool {
	if utf8.RuneCountInString(token) < l.MinFuzzyLength {
		return false
	}
	for _, c := range candidates {
		if utf8.RuneCountInString(c) < l.MinFuzzyLength {
			continue
		}
		if util.LevenshteinNormalized(token, c) >= l.FuzzyThreshold {
			return true
		}
	}
	return false
}
