package util

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
	"github.com/kljensen/snowball/german"
)

// stopWords are dropped before matching. English and German, since outline
// templates and requirement sets mix both.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "for": true, "from": true, "in": true, "is": true, "it": true, "its": true,
	"of": true, "on": true, "or": true, "shall": true, "should": true, "must": true,
	"that": true, "the": true, "this": true, "to": true, "with": true, "will": true,
	"der": true, "die": true, "das": true, "und": true, "oder": true, "für": true,
	"mit": true, "von": true, "zu": true, "im": true, "ein": true, "eine": true,
}

// Normalize lowercases text and collapses every non letter/digit run to one space
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokenize splits text into normalized words, keeping stop words
func Tokenize(s string) []string {
	return strings.Fields(Normalize(s))
}

// ContentTokens returns the stemmed, stop-word-free tokens of a text
func ContentTokens(s string) []string {
	words := Tokenize(s)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		out = append(out, Stem(w))
	}
	return out
}

// Stem reduces a word to its Snowball stem so that inflected forms meet:
// "braking", "brakes" and "brake" all become "brake". Words spelled with
// umlauts or ß go through the German stemmer, everything else through the
// English one.
func Stem(word string) string {
	if strings.ContainsAny(word, "äöüßÄÖÜ") {
		return german.Stem(word, false)
	}
	return english.Stem(word, false)
}

// UniqueTokens deduplicates tokens, keeping first occurrence order
func UniqueTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
