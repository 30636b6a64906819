package squeeze

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix
	}
	return out
}

func TestRemoveQuotedUnderBudget(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text unchanged", "fix the parser\nand the lexer", "fix the parser\nand the lexer"},
		{"fenced block removed", "before\n```go\nfunc main() {}\n```\nafter", "before\nafter"},
		{"triple quote block removed", "intro\n\"\"\"\nquoted text\n\"\"\"\noutro", "intro\noutro"},
		{"unterminated fence drops rest", "keep\n```\nlost\nlost too", "keep"},
		{"long word dropped", "short " + strings.Repeat("x", 150) + " words", "short words"},
		{"149 byte word kept", "a " + strings.Repeat("y", 149), "a " + strings.Repeat("y", 149)},
		{"whitespace normalized", "  spaced   out\twords  ", "spaced out words"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemoveQuoted(tt.input, 100, 0.7)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), len(tt.input))
		})
	}
}

func TestRemoveQuotedIdempotentOnSmallInput(t *testing.T) {
	in := "first line\nsecond line"
	once := RemoveQuoted(in, 50, 0.7)
	assert.Equal(t, in, once)
	assert.Equal(t, once, RemoveQuoted(once, 50, 0.7))
}

func TestRemoveQuotedKeepsHeadAndTail(t *testing.T) {
	body := append([]string{"HEADMARK"}, words("middle", 998)...)
	body = append(body, "TAILMARK")
	in := strings.Join(body, " ")

	got := strings.Fields(RemoveQuoted(in, 100, 0.7))
	require.Len(t, got, 100)
	assert.Equal(t, "HEADMARK", got[0])
	assert.Equal(t, "TAILMARK", got[len(got)-1])
}

func TestRemoveQuotedSplitProportions(t *testing.T) {
	var in []string
	for range 500 {
		in = append(in, "head")
	}
	for range 500 {
		in = append(in, "tail")
	}

	got := strings.Fields(RemoveQuoted(strings.Join(in, " "), 100, 0.7))
	require.Len(t, got, 100)

	heads := 0
	for _, w := range got {
		if w == "head" {
			heads++
		}
	}
	assert.Equal(t, 70, heads)
	assert.Equal(t, "head", got[69])
	assert.Equal(t, "tail", got[70])
}

func TestRemoveQuotedSplitOneKeepsHeadOnly(t *testing.T) {
	in := "a b c d e f g h i j"
	assert.Equal(t, "a b c", RemoveQuoted(in, 3, 1.0))
}

func TestRemoveQuotedZeroBudget(t *testing.T) {
	assert.Equal(t, "", RemoveQuoted("one two three", 0, 0.7))
}

func TestPostTextsUnderBudgetUnchanged(t *testing.T) {
	in := "A short discussion about the release schedule."
	assert.Equal(t, in, PostTexts(in, 1000, 0.4))
}

func TestPostTextsWithinBudget(t *testing.T) {
	in := "alpha" + strings.Repeat(" hello", 2000) + " omega"
	require.Greater(t, Tokens(in), 500)

	got := PostTexts(in, 500, 0.7)
	assert.LessOrEqual(t, Tokens(got), 500)
	assert.True(t, strings.HasPrefix(got, "alpha"))
	assert.True(t, strings.HasSuffix(got, " omega"))
	assert.Less(t, len(got), len(in))
}

func TestPostTextsIsHeadPlusTailOfTokens(t *testing.T) {
	enc, err := encoding()
	require.NoError(t, err)

	in := "start" + strings.Repeat(" hello", 300) + " finish"
	tokens := enc.EncodeOrdinary(in)

	const budget = 40
	head, tail := headTail(budget, 0.6, math.Ceil)
	want := enc.Decode(tokens[:head]) + enc.Decode(tokens[len(tokens)-tail:])

	got := PostTexts(in, budget, 0.6)
	assert.Equal(t, want, got)

	again := enc.EncodeOrdinary(got)
	assert.Equal(t, tokens[:head], again[:head])
	assert.Equal(t, tokens[len(tokens)-tail:], again[len(again)-tail:])
}

func TestPostTextsSmallBudgetDoesNotPanic(t *testing.T) {
	in := strings.Repeat("token ", 200)
	for _, budget := range []int{1, 2, 3} {
		for _, split := range []float64{0, 0.4, 0.99, 1} {
			got := PostTexts(in, budget, split)
			assert.LessOrEqual(t, Tokens(got), budget, "budget=%d split=%v", budget, split)
		}
	}
	assert.Equal(t, "", PostTexts(in, 0, 0.5))
}

func TestPostTextsKeepsRunesWhole(t *testing.T) {
	inputs := map[string]string{
		"japanese": strings.Repeat("日本語のテキスト処理 ", 400),
		"emoji":    strings.Repeat("🚀 launch 🎉 party ", 300),
		"greek":    strings.Repeat("Καλημέρα κόσμε ", 300),
	}
	for name, in := range inputs {
		for _, budget := range []int{7, 13, 101} {
			got := PostTexts(in, budget, 0.7)
			assert.True(t, utf8.ValidString(got), "%s budget=%d: %q", name, budget, got)
			assert.LessOrEqual(t, Tokens(got), budget, "%s budget=%d", name, budget)
			assert.Less(t, len(got), len(in))
		}
	}
}

func TestTrimPartialRunes(t *testing.T) {
	jp := "日本"
	assert.Equal(t, "日", trimPartialRunes(jp[:4]))
	assert.Equal(t, "日", trimPartialRunes(jp[:5]))
	assert.Equal(t, jp, trimPartialRunes(jp))
	assert.Equal(t, "本", trimLeadingPartialRunes(jp[1:]))
	assert.Equal(t, "本", trimLeadingPartialRunes(jp[2:]))
	assert.Equal(t, jp, trimLeadingPartialRunes(jp))
	assert.Equal(t, "", trimLeadingPartialRunes(""))
}

func TestHeadTailClamp(t *testing.T) {
	tests := []struct {
		name       string
		budget     int
		split      float64
		head, tail int
	}{
		{"typical", 100, 0.7, 70, 30},
		{"ceil rounds head up", 10, 0.75, 8, 2},
		{"minimum one tail", 10, 0.99, 9, 1},
		{"split one keeps head", 10, 1, 10, 0},
		{"split zero keeps tail", 10, 0, 0, 10},
		{"negative split clamps", 10, -1, 0, 10},
		{"budget of one", 1, 0.5, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, tl := headTail(tt.budget, tt.split, math.Ceil)
			assert.Equal(t, tt.head, h)
			assert.Equal(t, tt.tail, tl)
		})
	}
}

func TestTruncateChars(t *testing.T) {
	assert.Equal(t, "héllo", TruncateChars("héllo wörld", 5))
	assert.Equal(t, "abc", TruncateChars("abc", 10))
	assert.Equal(t, "", TruncateChars("abc", 0))
}
