// Package budget splits a fixed generation budget across report categories.
package budget

import (
	"math"

	"github.com/codeGROOVE-dev/ghweekly/pkg/activity"
	"github.com/codeGROOVE-dev/ghweekly/pkg/squeeze"
)

const (
	// DefaultTotal is the correlation input budget in generation tokens.
	DefaultTotal = 16000
	// CharsPerUnit converts a token budget into a character cap.
	CharsPerUnit = 3
)

// Weights maps a category to its relative share.
type Weights map[activity.Category]float64

// DefaultWeights favours commits and issues over discussions and profile text.
var DefaultWeights = Weights{
	activity.CategoryProfile:     1,
	activity.CategoryCommits:     4,
	activity.CategoryIssues:      4,
	activity.CategoryDiscussions: 2,
}

// Plan is the per-category allocation for one report.
type Plan struct {
	units map[activity.Category]int
	total int
}

// Allocate divides total among the categories in present. Categories missing
// from present get nothing and do not count toward the denominator, so the
// remaining ones grow to fill the space.
func Allocate(total int, present Weights) Plan {
	p := Plan{units: make(map[activity.Category]int, len(present)), total: total}

	var sum float64
	for _, w := range present {
		if w > 0 {
			sum += w
		}
	}
	if sum == 0 || total <= 0 {
		return p
	}

	for c, w := range present {
		if w <= 0 {
			continue
		}
		p.units[c] = int(math.Floor(float64(total) * w / sum))
	}
	return p
}

// Present builds the weight map for the categories whose input is non-empty.
func Present(inputs map[activity.Category]string, w Weights) Weights {
	out := make(Weights, len(inputs))
	for c, text := range inputs {
		if text == "" {
			continue
		}
		if weight, ok := w[c]; ok {
			out[c] = weight
		}
	}
	return out
}

// Units returns the budget allocated to c, zero when c was absent.
func (p Plan) Units(c activity.Category) int { return p.units[c] }

// Chars returns the character cap for c.
func (p Plan) Chars(c activity.Category) int { return p.units[c] * CharsPerUnit }

// Total returns the budget the plan was built from.
func (p Plan) Total() int { return p.total }

// Empty reports whether no category received any budget.
func (p Plan) Empty() bool { return len(p.units) == 0 }

// Fit truncates text to the character cap of c.
func (p Plan) Fit(c activity.Category, text string) string {
	return squeeze.TruncateChars(text, p.Chars(c))
}
