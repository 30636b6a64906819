package analyze

import "github.com/codeGROOVE-dev/ghweekly/pkg/activity"

// Tier selects how aggressively each item of a category is truncated.
type Tier int

const (
	// TierSparse keeps more detail per item when there are only a few.
	TierSparse Tier = iota
	TierDefault
	// TierTurbo cuts each item hard when volume is high.
	TierTurbo
)

func (t Tier) String() string {
	switch t {
	case TierSparse:
		return "sparse"
	case TierDefault:
		return "default"
	case TierTurbo:
		return "turbo"
	default:
		return "unknown"
	}
}

// Turbo thresholds per category.
const (
	turboCommits = 6
	turboIssues  = 4
	sparseMax    = 2
)

// SelectTier picks the tier for count items of category c.
// It returns false when the category should be skipped.
func SelectTier(c activity.Category, count int) (Tier, bool) {
	if count <= 0 {
		return TierDefault, false
	}
	if count <= sparseMax {
		return TierSparse, true
	}
	switch c {
	case activity.CategoryCommits:
		if count >= turboCommits {
			return TierTurbo, true
		}
	case activity.CategoryIssues:
		if count >= turboIssues {
			return TierTurbo, true
		}
	}
	return TierDefault, true
}

// Limits bounds the text fed into one per-item generation.
// Zero fields do not apply to the category.
type Limits struct {
	PatchChars   int
	BodyWords    int
	CommentWords int
	ThreadTokens int
	ThreadChars  int
}

// Budget returns the per-item limits for category c at tier t.
// Discussions are not tiered.
func Budget(c activity.Category, t Tier) Limits {
	switch c {
	case activity.CategoryCommits:
		return Limits{PatchChars: [...]int{24_000, 16_000, 8_000}[clampTier(t)]}
	case activity.CategoryIssues:
		i := clampTier(t)
		return Limits{
			BodyWords:    [...]int{600, 400, 200}[i],
			CommentWords: [...]int{300, 200, 100}[i],
			ThreadChars:  24_000,
		}
	case activity.CategoryDiscussions:
		return Limits{BodyWords: 500, CommentWords: 300, ThreadTokens: 12_000}
	default:
		return Limits{}
	}
}

func clampTier(t Tier) int {
	if t < TierSparse || t > TierTurbo {
		return int(TierDefault)
	}
	return int(t)
}
