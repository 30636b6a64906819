package analyze

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeGROOVE-dev/ghweekly/pkg/activity"
	"github.com/codeGROOVE-dev/ghweekly/pkg/aggregate"
	"github.com/codeGROOVE-dev/ghweekly/pkg/llm"
)

type fakeFetcher struct {
	patches     map[string]string
	comments    map[string][]activity.Comment
	commentsErr error
}

func (f *fakeFetcher) CommitPatch(_ context.Context, c activity.Record) (string, error) {
	p, ok := f.patches[c.SourceURL]
	if !ok {
		return "", errors.New("not found")
	}
	return p, nil
}

func (f *fakeFetcher) IssueComments(_ context.Context, is activity.Issue) ([]activity.Comment, error) {
	if f.commentsErr != nil {
		return nil, f.commentsErr
	}
	return f.comments[is.SourceURL], nil
}

// echo replies with the first line of the user prompt.
type echo struct {
	mu      sync.Mutex
	prompts []string
	caps    []int
	fail    string
}

func (e *echo) Generate(_ context.Context, _ string, turns []llm.Turn, maxTokens int) (string, error) {
	user := turns[len(turns)-1].Text
	e.mu.Lock()
	e.prompts = append(e.prompts, user)
	e.caps = append(e.caps, maxTokens)
	e.mu.Unlock()
	if e.fail != "" && strings.Contains(user, e.fail) {
		return "", errors.New("generation failed")
	}
	first, _, _ := strings.Cut(user, "\n")
	return first, nil
}

func commit(n, author string) activity.Record {
	return activity.Record{Kind: activity.KindCommit, Contributor: author, Title: "change " + n, SourceURL: "https://github.com/o/r/commit/" + n}
}

func TestSelectTier(t *testing.T) {
	tests := []struct {
		category activity.Category
		count    int
		want     Tier
		ok       bool
	}{
		{activity.CategoryCommits, 0, TierDefault, false},
		{activity.CategoryCommits, 1, TierSparse, true},
		{activity.CategoryCommits, 2, TierSparse, true},
		{activity.CategoryCommits, 3, TierDefault, true},
		{activity.CategoryCommits, 5, TierDefault, true},
		{activity.CategoryCommits, 6, TierTurbo, true},
		{activity.CategoryIssues, 3, TierDefault, true},
		{activity.CategoryIssues, 4, TierTurbo, true},
		{activity.CategoryDiscussions, 40, TierDefault, true},
	}
	for _, tt := range tests {
		got, ok := SelectTier(tt.category, tt.count)
		assert.Equal(t, tt.ok, ok, "%s count=%d", tt.category, tt.count)
		if ok {
			assert.Equal(t, tt.want, got, "%s count=%d", tt.category, tt.count)
		}
	}
}

func TestBudget(t *testing.T) {
	assert.Equal(t, 24_000, Budget(activity.CategoryCommits, TierSparse).PatchChars)
	assert.Equal(t, 16_000, Budget(activity.CategoryCommits, TierDefault).PatchChars)
	assert.Equal(t, 8_000, Budget(activity.CategoryCommits, TierTurbo).PatchChars)

	assert.Equal(t, Limits{BodyWords: 600, CommentWords: 300, ThreadChars: 24_000}, Budget(activity.CategoryIssues, TierSparse))
	assert.Equal(t, Limits{BodyWords: 400, CommentWords: 200, ThreadChars: 24_000}, Budget(activity.CategoryIssues, TierDefault))
	assert.Equal(t, Limits{BodyWords: 200, CommentWords: 100, ThreadChars: 24_000}, Budget(activity.CategoryIssues, TierTurbo))

	d := Budget(activity.CategoryDiscussions, TierTurbo)
	assert.Equal(t, Limits{BodyWords: 500, CommentWords: 300, ThreadTokens: 12_000}, d)
	assert.Equal(t, Limits{}, Budget(activity.CategoryProfile, TierDefault))
}

func TestCommitsKeepInputOrderAndDropFailures(t *testing.T) {
	commits := []activity.Record{commit("1", "alice"), commit("2", "bob"), commit("3", "alice"), commit("4", "carol")}
	fetch := &fakeFetcher{patches: map[string]string{
		commits[0].SourceURL: "diff one",
		commits[1].SourceURL: "diff two",
		commits[2].SourceURL: "diff three",
		// commit 4 has no patch
	}}
	gen := &echo{fail: "change 2"}

	a := New(gen, fetch, slog.Default(), 2)
	got := a.Commits(context.Background(), commits, TierDefault)

	require.Len(t, got, 2)
	assert.Equal(t, aggregate.Result{Contributor: "alice", SourceURL: commits[0].SourceURL, Summary: "Commit message: change 1"}, got[0])
	assert.Equal(t, aggregate.Result{Contributor: "alice", SourceURL: commits[2].SourceURL, Summary: "Commit message: change 3"}, got[1])
	for _, c := range gen.caps {
		assert.Equal(t, commitCap, c)
	}
}

func TestCommitsTruncatePatchToTier(t *testing.T) {
	c := commit("1", "alice")
	fetch := &fakeFetcher{patches: map[string]string{c.SourceURL: strings.Repeat("q", 30_000)}}
	gen := &echo{}

	New(gen, fetch, slog.Default(), 1).Commits(context.Background(), []activity.Record{c}, TierTurbo)

	require.Len(t, gen.prompts, 1)
	assert.Equal(t, 8_000, strings.Count(gen.prompts[0], "q"))
}

func TestIssuesKeyedByTarget(t *testing.T) {
	issues := []activity.Issue{
		{Record: activity.Record{Kind: activity.KindIssue, Contributor: "bob", Title: "crash", SourceURL: "https://github.com/o/r/issues/1"}, Body: "it crashes"},
		{Record: activity.Record{Kind: activity.KindIssue, Contributor: "carol", Title: "docs", SourceURL: "https://github.com/o/r/issues/2"}, Body: "typo"},
	}
	fetch := &fakeFetcher{commentsErr: errors.New("comments unavailable")}

	a := New(&echo{}, fetch, slog.Default(), 4)

	byAuthor := a.Issues(context.Background(), issues, "", TierSparse)
	require.Len(t, byAuthor, 2)
	assert.Equal(t, "bob", byAuthor[0].Contributor)
	assert.Equal(t, "carol", byAuthor[1].Contributor)

	byTarget := a.Issues(context.Background(), issues, "alice", TierSparse)
	require.Len(t, byTarget, 2)
	assert.Equal(t, "alice", byTarget[0].Contributor)
	assert.Equal(t, "alice", byTarget[1].Contributor)
	assert.Equal(t, issues[1].SourceURL, byTarget[1].SourceURL)
}

func TestIssueThread(t *testing.T) {
	is := activity.Issue{
		Record: activity.Record{Contributor: "bob", Title: "crash on start"},
		Body:   "steps:\n```\npanic: nil map\n```\nplease fix",
		Labels: []string{"bug", "p1"},
	}
	comments := []activity.Comment{{Author: "alice", Body: "fixed in #2"}}

	thread := IssueThread(is, comments, Budget(activity.CategoryIssues, TierDefault))

	assert.Contains(t, thread, "User 'bob' opened an issue titled 'crash on start', labeled 'bug, p1'")
	assert.Contains(t, thread, "please fix")
	assert.NotContains(t, thread, "panic")
	assert.Contains(t, thread, "alice commented: fixed in #2")
}

func TestIssueThreadCapsLength(t *testing.T) {
	var comments []activity.Comment
	for range 400 {
		comments = append(comments, activity.Comment{Author: "someone", Body: strings.Repeat("word ", 100)})
	}
	thread := IssueThread(activity.Issue{}, comments, Budget(activity.CategoryIssues, TierSparse))
	assert.Equal(t, 24_000, len([]rune(thread)))
}

func TestDiscussionThread(t *testing.T) {
	d := activity.Discussion{
		Record: activity.Record{
			Contributor: "dana",
			Title:       "Roadmap",
			SourceURL:   "https://github.com/o/r/discussions/7",
			OccurredAt:  time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC),
		},
		Body:     "What should we build next?",
		Upvotes:  3,
		Comments: []activity.Comment{{Author: "erin", Body: "plugins"}},
	}

	thread := DiscussionThread(d, Budget(activity.CategoryDiscussions, TierDefault))

	assert.Contains(t, thread, "Title: 'Roadmap'")
	assert.Contains(t, thread, "Created At: 2026-10-12 Upvotes: 3 Author: dana")
	assert.Contains(t, thread, "erin comments: 'plugins'")

	d.Upvotes = 0
	assert.NotContains(t, DiscussionThread(d, Budget(activity.CategoryDiscussions, TierDefault)), "Upvotes")
}

func TestDiscussionsKeyedByAuthor(t *testing.T) {
	ds := []activity.Discussion{
		{Record: activity.Record{Contributor: "dana", SourceURL: "d1"}},
		{Record: activity.Record{Contributor: "erin", SourceURL: "d2"}},
	}
	gen := &echo{}
	got := New(gen, &fakeFetcher{}, slog.Default(), 2).Discussions(context.Background(), ds, "alice")

	require.Len(t, got, 2)
	assert.Equal(t, "dana", got[0].Contributor)
	assert.Equal(t, "erin", got[1].Contributor)
	for _, p := range gen.prompts {
		assert.Contains(t, p, "alice's")
	}
	for _, c := range gen.caps {
		assert.Equal(t, discussionCap, c)
	}
}

func TestReadmeAndRepoPage(t *testing.T) {
	gen := &echo{}
	a := New(gen, &fakeFetcher{}, slog.Default(), 1)

	out, err := a.Readme(context.Background(), "# Tool\nDoes things.")
	require.NoError(t, err)
	assert.Equal(t, "Profile and README:", out)

	_, err = a.RepoPage(context.Background(), "Stars 10 Forks 2")
	require.NoError(t, err)
	assert.Equal(t, []int{readmeCap, repoPageCap}, gen.caps)

	gen.fail = "README"
	_, err = a.Readme(context.Background(), "text")
	assert.Error(t, err)
}

func TestReadmeTruncatesLongContent(t *testing.T) {
	gen := &echo{}
	a := New(gen, &fakeFetcher{}, slog.Default(), 1)

	_, err := a.Readme(context.Background(), strings.Repeat("q", 25_000))
	require.NoError(t, err)
	assert.Equal(t, readmeChars, strings.Count(gen.prompts[0], "q"))
}

func TestFanOutBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	gen := llm.GeneratorFunc(func(context.Context, string, []llm.Turn, int) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	})

	var ds []activity.Discussion
	for range 12 {
		ds = append(ds, activity.Discussion{Record: activity.Record{Contributor: "x"}})
	}
	got := New(gen, &fakeFetcher{}, slog.Default(), 3).Discussions(context.Background(), ds, "")

	assert.Len(t, got, 12)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}
