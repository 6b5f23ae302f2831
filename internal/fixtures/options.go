package fixtures

// Option configures a Generator.
type Option func(*Generator)

// WithSeed fixes the random source; equal seeds give equal datasets.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// WithUsers sets the number of user rows.
func WithUsers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.users = n
		}
	}
}

// WithGroups sets the number of group rows.
func WithGroups(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.groups = n
		}
	}
}

// WithRoles sets the number of role rows.
func WithRoles(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.roles = n
		}
	}
}

// WithBrokenRate sets the share of user rows that break a validation rule.
func WithBrokenRate(rate float64) Option {
	return func(g *Generator) {
		if rate >= 0 && rate <= 1 {
			g.brokenRate = rate
		}
	}
}

// WithOrphanRate sets the share of relationship rows that reference an unknown user.
func WithOrphanRate(rate float64) Option {
	return func(g *Generator) {
		if rate >= 0 && rate <= 1 {
			g.orphanRate = rate
		}
	}
}
