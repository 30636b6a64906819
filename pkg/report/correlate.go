package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/ghweekly/pkg/activity"
	"github.com/codeGROOVE-dev/ghweekly/pkg/aggregate"
	"github.com/codeGROOVE-dev/ghweekly/pkg/budget"
	"github.com/codeGROOVE-dev/ghweekly/pkg/chain"
	"github.com/codeGROOVE-dev/ghweekly/pkg/summary"
)

// inputLabels introduce each category inside the correlation prompt.
var inputLabels = map[activity.Category]string{
	activity.CategoryProfile:     "profile data",
	activity.CategoryCommits:     "commit logs",
	activity.CategoryIssues:      "issue post",
	activity.CategoryDiscussions: "discussion posts",
}

const correlationSystem = "Analyze a week of GitHub activity together with the project profile. " +
	"Detect the most impactful contributions and the links between commits, issues and discussions. " +
	"Point out specific code changes, resolutions and improvements, and trace commits that address issues, " +
	"discussions that led to commits, or issues raised by discussions."

// correlate runs the correlation chain once for the target person, or once
// per contributor when there is none. Sections are appended in contributor
// order regardless of which chain finishes first.
func (p *Pipeline) correlate(ctx context.Context, r *run) {
	if r.req.User != "" {
		in := r.inputs("")
		if text, err := p.correlateOne(ctx, r.logger, in, r.req.User, r.commitCount+r.issueCount); err == nil {
			r.add(text)
		}
		return
	}

	keys := contributorKeys(r)
	sections := make([]string, len(keys))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, login := range keys {
		g.Go(func() error {
			in := r.inputs(login)
			entries := bundleCount(r.commits, login) + bundleCount(r.issues, login)
			text, err := p.correlateOne(ctx, r.logger.With("contributor", login), in, login, entries)
			if err == nil {
				sections[i] = login + ": " + text
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	for _, s := range sections {
		if s != "" {
			r.add(s)
		}
	}
}

// correlateOne fits the inputs into the budget, runs the chain and flattens
// its structured output. Any failure drops only this section.
func (p *Pipeline) correlateOne(ctx context.Context, logger *slog.Logger, in map[activity.Category]string, target string, entries int) (string, error) {
	plan := budget.Allocate(p.budget, budget.Present(in, budget.DefaultWeights))
	if plan.Empty() {
		return "", aggregate.ErrNoActivity
	}

	first, second := chain.Caps(entries)
	c := correlationChain(plan, in, target, first, second)

	raw, err := c.Run(ctx, p.gen)
	if err != nil {
		logger.Warn("correlation chain failed", "entries", entries, "error", err)
		return "", err
	}

	text, err := summary.Flatten(raw)
	if err == nil && text == "" {
		err = errors.Wrap(summary.ErrNoSummary, "all summary fields empty")
	}
	if err != nil {
		logger.Warn("unparseable correlation output", "error", err, "output_length", len(raw))
		return "", err
	}
	return text, nil
}

// inputs gathers the category texts for one correlation, restricted to login
// unless it is empty.
func (r *run) inputs(login string) map[activity.Category]string {
	in := map[activity.Category]string{
		activity.CategoryProfile:     r.profile,
		activity.CategoryCommits:     summaries(r.commits, login),
		activity.CategoryIssues:      summaries(r.issues, login),
		activity.CategoryDiscussions: summaries(r.discussions, login),
	}
	if r.commitLog != "" && in[activity.CategoryCommits] != "" {
		in[activity.CategoryCommits] = fmt.Sprintf("Here is the contributor's commits details: %s, "+
			"here is the log of weekly commits for the entire repository: %s",
			in[activity.CategoryCommits], r.commitLog)
	}
	return in
}

// summaries returns the summaries of login, or of every contributor when
// login is empty.
func summaries(m *aggregate.Map, login string) string {
	if login != "" {
		if b, ok := m.Get(login); ok {
			return b.Summaries
		}
		return ""
	}
	bundles := m.Bundles()
	parts := make([]string, 0, len(bundles))
	for _, b := range bundles {
		parts = append(parts, b.Summaries)
	}
	return strings.Join(parts, "\n")
}

func bundleCount(m *aggregate.Map, login string) int {
	if b, ok := m.Get(login); ok {
		return b.Count()
	}
	return 0
}

func correlationChain(plan budget.Plan, in map[activity.Category]string, target string, firstCap, secondCap int) chain.Chain {
	var parts []string
	for _, c := range activity.Categories {
		if text := in[c]; text != "" {
			parts = append(parts, inputLabels[c]+": "+plan.Fit(c, text))
		}
	}

	name, who := "key participants", "key participants'"
	if target != "" {
		name, who = target, target+"'s"
	}

	first := fmt.Sprintf("From %s, detail %s significant technical contributions. "+
		"List individual tasks, code enhancements and bug fixes, emphasizing the most impactful ones. "+
		"At the same time identify connections: commits that appear to resolve specific issues, "+
		"discussions that may have led to commits, or issues shaped by earlier discussions. "+
		"Give concrete examples of both impact and interconnection within the week.",
		strings.Join(parts, ", "), who)

	second := fmt.Sprintf(`Summarize the key technical contributions made by %s this week as a flat JSON object with one level of depth. `+
		`Each key maps to a single string value of one full sentence or a short paragraph. `+
		`Do not include nested objects or arrays. If nothing is known for a point, use an empty string.

The output must be RFC 8259 compliant JSON that can be read as simple key-value string pairs, following this template:
{
"impactful": "Impactful contributions and how they connect.",
"alignment": "How the contributions align with the project's goals.",
"patterns": "Recurring patterns or trends in the contributions.",
"synergy": "Synergy between individual and collective progress.",
"significance": "The overall significance of the contributions."
}`, name)

	return chain.Chain{
		System:    correlationSystem,
		First:     first,
		Second:    second,
		FirstCap:  firstCap,
		SecondCap: secondCap,
	}
}
