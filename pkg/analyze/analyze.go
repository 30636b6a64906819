// Package analyze turns individual commits, issues and discussions into short
// generated summaries, one generation call per item.
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/ghweekly/pkg/activity"
	"github.com/codeGROOVE-dev/ghweekly/pkg/aggregate"
	"github.com/codeGROOVE-dev/ghweekly/pkg/llm"
	"github.com/codeGROOVE-dev/ghweekly/pkg/squeeze"
)

// DefaultConcurrency bounds in-flight item analyses per category.
const DefaultConcurrency = 8

const (
	readmeChars      = 20_000
	largeTextBytes   = 48_000
	readmeWords      = 9_000
	repoPageTokens   = 12_000
	headSplit        = 0.7
	discussionSplit  = 0.6
	threadTokenSplit = 0.4
)

// Fetcher retrieves the per-item text that is not part of a search result.
type Fetcher interface {
	CommitPatch(ctx context.Context, commit activity.Record) (string, error)
	IssueComments(ctx context.Context, issue activity.Issue) ([]activity.Comment, error)
}

// Analyzer runs per-item analyses.
type Analyzer struct {
	gen         llm.Generator
	fetch       Fetcher
	logger      *slog.Logger
	concurrency int
}

// New creates an Analyzer. concurrency <= 0 selects DefaultConcurrency.
func New(gen llm.Generator, fetch Fetcher, logger *slog.Logger, concurrency int) *Analyzer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Analyzer{gen: gen, fetch: fetch, logger: logger, concurrency: concurrency}
}

// Commits analyzes each commit patch. Results are keyed by commit author and
// returned in input order; failed items are logged and dropped.
func (a *Analyzer) Commits(ctx context.Context, commits []activity.Record, tier Tier) []aggregate.Result {
	limits := Budget(activity.CategoryCommits, tier)
	return fanOut(ctx, a, "commit", commits, func(ctx context.Context, c activity.Record) (aggregate.Result, error) {
		patch, err := a.fetch.CommitPatch(ctx, c)
		if err != nil {
			return aggregate.Result{}, errors.Wrap(err, "fetching patch")
		}
		patch = squeeze.TruncateChars(patch, limits.PatchChars)

		system, user := commitPrompts(c.Contributor, c.Title, patch)
		out, err := llm.Ask(ctx, a.gen, system, user, commitCap)
		if err != nil {
			return aggregate.Result{}, err
		}
		return aggregate.FromRecord(c.WithSummary(out)), nil
	})
}

// Issues analyzes each issue thread. With a target person every result is
// keyed to that person, otherwise to the issue author.
func (a *Analyzer) Issues(ctx context.Context, issues []activity.Issue, target string, tier Tier) []aggregate.Result {
	limits := Budget(activity.CategoryIssues, tier)
	return fanOut(ctx, a, "issue", issues, func(ctx context.Context, is activity.Issue) (aggregate.Result, error) {
		comments, err := a.fetch.IssueComments(ctx, is)
		if err != nil {
			a.logger.Warn("failed to fetch issue comments", "url", is.SourceURL, "error", err)
		}
		thread := IssueThread(is, comments, limits)

		system, user := issuePrompts(is.Contributor, is.Title, thread, targetLabel(target))
		out, err := llm.Ask(ctx, a.gen, system, user, issueCap)
		if err != nil {
			return aggregate.Result{}, err
		}
		rec := is.WithSummary(out)
		if target != "" {
			rec.Contributor = target
		}
		return aggregate.FromRecord(rec), nil
	})
}

// Discussions analyzes each discussion thread, keyed by discussion author.
func (a *Analyzer) Discussions(ctx context.Context, discussions []activity.Discussion, target string) []aggregate.Result {
	limits := Budget(activity.CategoryDiscussions, TierDefault)
	label := target + "'s"
	if target == "" {
		label = "key participants'"
	}
	return fanOut(ctx, a, "discussion", discussions, func(ctx context.Context, d activity.Discussion) (aggregate.Result, error) {
		thread := DiscussionThread(d, limits)

		system, user := discussionPrompts(thread, label)
		out, err := llm.Ask(ctx, a.gen, system, user, discussionCap)
		if err != nil {
			return aggregate.Result{}, err
		}
		return aggregate.FromRecord(d.WithSummary(out)), nil
	})
}

// Readme summarizes a project README.
func (a *Analyzer) Readme(ctx context.Context, content string) (string, error) {
	if len(content) > largeTextBytes {
		content = squeeze.RemoveQuoted(content, readmeWords, headSplit)
	}
	content = squeeze.TruncateChars(content, readmeChars)

	system, user := readmePrompts(content)
	out, err := llm.Ask(ctx, a.gen, system, user, readmeCap)
	if err != nil {
		return "", errors.Wrap(err, "summarizing README")
	}
	return out, nil
}

// RepoPage extracts a sectioned overview from the flattened text of a
// repository home page.
func (a *Analyzer) RepoPage(ctx context.Context, text string) (string, error) {
	if len(text) > largeTextBytes {
		text = squeeze.PostTexts(text, repoPageTokens, headSplit)
	}

	system, user := repoPagePrompts(text)
	out, err := llm.Ask(ctx, a.gen, system, user, repoPageCap)
	if err != nil {
		return "", errors.Wrap(err, "summarizing repository page")
	}
	return out, nil
}

// IssueThread renders an issue with its comments for analysis.
func IssueThread(is activity.Issue, comments []activity.Comment, limits Limits) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User '%s' opened an issue titled '%s', labeled '%s', with the following post: '%s'.",
		is.Contributor, is.Title, strings.Join(is.Labels, ", "),
		squeeze.RemoveQuoted(is.Body, limits.BodyWords, headSplit))
	for _, c := range comments {
		fmt.Fprintf(&b, "\n%s commented: %s", c.Author, squeeze.RemoveQuoted(c.Body, limits.CommentWords, 1.0))
	}
	return squeeze.TruncateChars(b.String(), limits.ThreadChars)
}

// DiscussionThread renders a discussion with its comments for analysis.
func DiscussionThread(d activity.Discussion, limits Limits) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: '%s' Url: '%s' Body: '%s' Created At: %s",
		d.Title, d.SourceURL, squeeze.RemoveQuoted(d.Body, limits.BodyWords, discussionSplit), d.OccurredAt.Format("2006-01-02"))
	if d.Upvotes > 0 {
		fmt.Fprintf(&b, " Upvotes: %d", d.Upvotes)
	}
	fmt.Fprintf(&b, " Author: %s\n", d.Contributor)
	for _, c := range d.Comments {
		fmt.Fprintf(&b, "%s comments: '%s'\n", c.Author, squeeze.RemoveQuoted(c.Body, limits.CommentWords, discussionSplit))
	}
	return squeeze.PostTexts(b.String(), limits.ThreadTokens, threadTokenSplit)
}

// fanOut runs fn for every item with bounded concurrency. Each result lands in
// the slot of its item so the returned slice follows input order. A failure
// never cancels siblings.
func fanOut[T any](ctx context.Context, a *Analyzer, kind string, items []T, fn func(context.Context, T) (aggregate.Result, error)) []aggregate.Result {
	slots := make([]*aggregate.Result, len(items))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, item := range items {
		g.Go(func() error {
			r, err := fn(ctx, item)
			if err != nil {
				a.logger.Warn("item analysis failed", "kind", kind, "index", i, "error", err)
				return nil
			}
			slots[i] = &r
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	results := make([]aggregate.Result, 0, len(items))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	a.logger.Debug("item analysis complete", "kind", kind, "items", len(items), "succeeded", len(results))
	return results
}
