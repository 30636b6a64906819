// Package histogram draws per-contributor activity bars for the terminal.
package histogram

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Row is the activity of one contributor.
type Row struct {
	Name        string
	Commits     int
	Issues      int
	Discussions int
}

// Total returns the number of items in the row.
func (r Row) Total() int {
	return r.Commits + r.Issues + r.Discussions
}

// series colors, in drawing order.
var (
	commitColor     = color.New(color.FgGreen)
	issueColor      = color.New(color.FgYellow)
	discussionColor = color.New(color.FgBlue)
	dimColor        = color.New(color.FgHiBlack)
)

// Generate renders rows as horizontal bars, busiest contributor first. Bars
// are scaled so the longest fits in width cells.
func Generate(rows []Row, width int) string {
	var output strings.Builder

	output.WriteString("📊 Contributor Activity\n")
	output.WriteString(strings.Repeat("─", 50) + "\n")

	maxTotal := 0
	nameWidth := 0
	for _, r := range rows {
		maxTotal = max(maxTotal, r.Total())
		nameWidth = max(nameWidth, utf8.RuneCountInString(r.Name))
	}
	if maxTotal == 0 {
		return output.String() + "No activity data available\n"
	}
	if width <= 0 {
		width = 40
	}

	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Total() > sorted[j].Total()
	})

	for _, r := range sorted {
		if r.Total() == 0 {
			continue
		}
		line := fmt.Sprintf("%-*s (%2d) ", nameWidth, r.Name, r.Total())
		line += bar(r, maxTotal, width)
		output.WriteString(line + "\n")
	}

	output.WriteString(strings.Repeat("─", 50) + "\n")
	output.WriteString(commitColor.Sprint("█") + " commits  " +
		issueColor.Sprint("█") + " issues  " +
		discussionColor.Sprint("█") + " discussions\n")
	return output.String()
}

// bar draws one row. Every non-zero series gets at least one cell.
func bar(r Row, maxTotal, width int) string {
	length := r.Total() * width / maxTotal
	if length == 0 {
		return dimColor.Sprint("·")
	}

	var b strings.Builder
	remaining := length
	for _, s := range []struct {
		c     *color.Color
		count int
	}{
		{commitColor, r.Commits},
		{issueColor, r.Issues},
		{discussionColor, r.Discussions},
	} {
		if s.count == 0 || remaining == 0 {
			continue
		}
		segment := max(s.count*length/r.Total(), 1)
		segment = min(segment, remaining)
		b.WriteString(s.c.Sprint(strings.Repeat("█", segment)))
		remaining -= segment
	}
	if remaining > 0 {
		b.WriteString(dimColor.Sprint(strings.Repeat("█", remaining)))
	}
	return b.String()
}
