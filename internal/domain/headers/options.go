package headers

import "github.com/safer-strategy/data-transformation-tool/internal/domain/scoring"

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithScorer sets the similarity scorer used by the fuzzy pass.
func WithScorer(s scoring.Scorer) Option {
	return func(r *Resolver) {
		if s != nil {
			r.scorer = s
		}
	}
}

// WithCandidateLimit sets how many ranked candidates a pending column carries.
func WithCandidateLimit(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.candidates = n
		}
	}
}
