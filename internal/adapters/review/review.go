// Package review settles pending header mappings, either by asking a
// person on a terminal or by a fixed policy.
package review

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/safer-strategy/data-transformation-tool/internal/config"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/headers"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/scoring"
)

// Interactive reports whether f is attached to a terminal.
func Interactive(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// ForPolicy returns the reviewer of a non-interactive policy. The prompt
// policy has nobody to ask here, so it skips.
func ForPolicy(policy string) headers.Reviewer {
	if policy == config.ReviewAccept {
		return headers.AcceptSuggested
	}
	return headers.SkipAll
}

// Console asks about each pending column on a line-oriented terminal.
type Console struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewConsole creates a Console reading answers from in.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewScanner(in), out: out}
}

// Review implements headers.Reviewer. Pressing enter takes the suggestion,
// a number picks a field and "s" skips. End of input skips the rest.
func (c *Console) Review(ctx context.Context, res *headers.Resolution) ([]headers.Disposition, error) {
	var (
		out   []headers.Disposition
		taken []string
	)
	c.printf("\nTable %s: %d column(s) need a decision\n", res.Table.Name, len(res.Pending))
	for _, p := range res.Pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var choices []string
		for _, f := range res.Choices() {
			if !slices.Contains(taken, f.Name) {
				choices = append(choices, f.Name)
			}
		}
		field, ok := c.ask(p, choices)
		if !ok {
			c.printf("no more input; remaining columns skipped\n")
			break
		}
		out = append(out, headers.Disposition{Column: p.Column, Field: field})
		if field != "" {
			taken = append(taken, field)
		}
	}
	return out, nil
}

func (c *Console) ask(p headers.Pending, choices []string) (string, bool) {
	c.printf("\nColumn %q", p.Column)
	if len(p.Samples) > 0 {
		c.printf(" (e.g. %s)", strings.Join(p.Samples, ", "))
	}
	c.printf("\n")
	if p.Tier == scoring.TierReview && p.Suggested != "" {
		c.printf("  suggested: %s (score %.0f)\n", p.Suggested, p.Score)
	}
	for i, name := range choices {
		c.printf("  %2d) %s\n", i+1, name)
	}
	c.printf("   s) skip\n")

	for {
		if p.Suggested != "" && p.Tier == scoring.TierReview {
			c.printf("choice [enter = %s]: ", p.Suggested)
		} else {
			c.printf("choice [enter = skip]: ")
		}
		if !c.in.Scan() {
			return "", false
		}
		answer := strings.TrimSpace(c.in.Text())
		switch {
		case answer == "":
			if p.Tier == scoring.TierReview && slices.Contains(choices, p.Suggested) {
				return p.Suggested, true
			}
			return "", true
		case strings.EqualFold(answer, "s"):
			return "", true
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(choices) {
			return choices[n-1], true
		}
		if slices.Contains(choices, answer) {
			return answer, true
		}
		c.printf("  %q is not a choice\n", answer)
	}
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
