package histogram

import (
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestGenerate(t *testing.T) {
	noColor(t)

	out := Generate([]Row{
		{Name: "bob", Discussions: 1},
		{Name: "carol"},
		{Name: "alice", Commits: 3, Issues: 1},
	}, 8)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "alice ( 4) ████████", lines[2])
	assert.Equal(t, "bob   ( 1) ██", lines[3])
	assert.NotContains(t, out, "carol")
	assert.Contains(t, out, "█ commits  █ issues  █ discussions")
}

func TestGenerateEmpty(t *testing.T) {
	noColor(t)
	assert.Contains(t, Generate(nil, 10), "No activity data available")
	assert.Contains(t, Generate([]Row{{Name: "x"}}, 10), "No activity data available")
}

func TestBarKeepsSmallSeriesVisible(t *testing.T) {
	noColor(t)

	// 1 of 20 items would round to zero cells.
	got := bar(Row{Commits: 19, Discussions: 1}, 20, 10)
	assert.Equal(t, 10, strings.Count(got, "█"))

	assert.Equal(t, "·", bar(Row{Issues: 1}, 100, 10))
}
