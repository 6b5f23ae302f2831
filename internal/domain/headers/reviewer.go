package headers

import "context"

// Reviewer settles pending columns. It is called synchronously with an
// unfinished Resolution and returns the dispositions to fold into it.
type Reviewer interface {
	Review(ctx context.Context, res *Resolution) ([]Disposition, error)
}

// ReviewerFunc adapts a function to Reviewer.
type ReviewerFunc func(ctx context.Context, res *Resolution) ([]Disposition, error)

// Review calls f.
func (f ReviewerFunc) Review(ctx context.Context, res *Resolution) ([]Disposition, error) {
	return f(ctx, res)
}

// SkipAll is a Reviewer that leaves every pending column unmapped.
var SkipAll Reviewer = ReviewerFunc(func(context.Context, *Resolution) ([]Disposition, error) {
	return nil, nil
})

// AcceptSuggested is a Reviewer that takes the suggested field of every
// needs-review column and skips the rest.
var AcceptSuggested Reviewer = ReviewerFunc(func(_ context.Context, res *Resolution) ([]Disposition, error) {
	var out []Disposition
	for _, p := range res.Pending {
		if p.Suggested != "" {
			out = append(out, Disposition{Column: p.Column, Field: p.Suggested})
		}
	}
	return out, nil
})
