// Package scoring rates how closely a raw column name matches a schema field
// name and sorts the result into confidence tiers.
package scoring

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// Default scoring configuration constants.
const (
	DefaultAcceptThreshold = 80
	DefaultReviewThreshold = 50
	maxScoreValue          = 100
)

// Tier is the confidence band of a fuzzy score.
type Tier string

// Confidence tiers, highest first.
const (
	TierAccept     Tier = "accept"
	TierReview     Tier = "review"
	TierUnresolved Tier = "unresolved"
)

// Rank orders tiers so that a higher tier has a higher rank.
func (t Tier) Rank() int {
	switch t {
	case TierAccept:
		return 2
	case TierReview:
		return 1
	default:
		return 0
	}
}

// Option applies a configuration option to the LevenshteinScorer.
type Option func(*LevenshteinScorer)

// WithThresholds sets the accept and review thresholds. Invalid pairs are ignored.
func WithThresholds(accept, review float64) Option {
	return func(s *LevenshteinScorer) {
		if accept > 0 && accept <= maxScoreValue && review >= 0 && review <= accept {
			s.accept = accept
			s.review = review
		}
	}
}

// Scorer computes a similarity score in [0, 100] between two names and
// classifies scores into tiers.
type Scorer interface {
	Score(column, candidate string) float64
	Classify(score float64) Tier
}

// LevenshteinScorer implements Scorer with a normalized edit-distance ratio.
type LevenshteinScorer struct {
	accept float64
	review float64
}

// NewLevenshteinScorer creates a scorer with the default thresholds.
func NewLevenshteinScorer(opts ...Option) *LevenshteinScorer {
	s := &LevenshteinScorer{
		accept: DefaultAcceptThreshold,
		review: DefaultReviewThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns 100 * (1 - distance/maxLen) over the normalized forms.
func (s *LevenshteinScorer) Score(column, candidate string) float64 {
	a, b := Normalize(column), Normalize(candidate)
	if a == b {
		return maxScoreValue
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return maxScoreValue
	}
	dist := levenshtein.ComputeDistance(a, b)
	return maxScoreValue * (1 - float64(dist)/float64(maxLen))
}

// Classify maps a score to its tier.
func (s *LevenshteinScorer) Classify(score float64) Tier {
	switch {
	case score >= s.accept:
		return TierAccept
	case score >= s.review:
		return TierReview
	default:
		return TierUnresolved
	}
}

// Thresholds returns the accept and review thresholds.
func (s *LevenshteinScorer) Thresholds() (accept, review float64) {
	return s.accept, s.review
}

// Normalize folds a header for comparison: lower case, no diacritics, and
// no spaces, underscores, hyphens or dots.
func Normalize(name string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(name)))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
		case r == ' ', r == '_', r == '-', r == '.', unicode.IsSpace(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
