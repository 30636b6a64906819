// Package report builds the weekly contribution report for a repository.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/codeGROOVE-dev/ghweekly/pkg/activity"
	"github.com/codeGROOVE-dev/ghweekly/pkg/aggregate"
	"github.com/codeGROOVE-dev/ghweekly/pkg/analyze"
	"github.com/codeGROOVE-dev/ghweekly/pkg/budget"
	"github.com/codeGROOVE-dev/ghweekly/pkg/llm"
	"github.com/codeGROOVE-dev/ghweekly/pkg/seen"
)

// DefaultDays is the trailing window of a weekly report.
const DefaultDays = 7

// Discussions are searched over a wider window because they stay open longer.
const discussionLookback = 30 * 24 * time.Hour

// Source fetches the raw activity of a repository. Every method may fail or
// return nothing; only RepoProfile failures abort a run.
type Source interface {
	analyze.Fetcher
	RepoProfile(ctx context.Context, owner, repo string) (activity.Profile, error)
	Readme(ctx context.Context, owner, repo string) (string, error)
	Commits(ctx context.Context, q activity.Query) ([]activity.Record, error)
	Issues(ctx context.Context, q activity.Query) ([]activity.Issue, error)
	Discussions(ctx context.Context, q activity.Query) ([]activity.Discussion, error)
	RepoPage(ctx context.Context, owner, repo string) (string, error)
}

// Request identifies one report.
type Request struct {
	Owner string
	Repo  string
	User  string // optional target person
	Days  int
}

// Report is the rendered result of a run.
type Report struct {
	Sections        []string
	Contributors    []string
	NewContributors []string
	Activity        []Activity
	Stage           Stage
}

// Activity counts the analyzed items of one contributor.
type Activity struct {
	Login       string
	Commits     int
	Issues      int
	Discussions int
}

// Text joins all sections with newlines.
func (r *Report) Text() string {
	return strings.Join(r.Sections, "\n")
}

// Pipeline coordinates fetching, item analysis, correlation and rendering.
type Pipeline struct {
	src         Source
	gen         llm.Generator
	analyzer    *analyze.Analyzer
	seen        seen.Store
	logger      *slog.Logger
	now         func() time.Time
	budget      int
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency bounds in-flight generation calls.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithSeenStore enables first-time contributor tracking.
func WithSeenStore(s seen.Store) Option {
	return func(p *Pipeline) {
		p.seen = s
	}
}

// WithClock overrides the time source used for the report window.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithBudget overrides the correlation input budget.
func WithBudget(total int) Option {
	return func(p *Pipeline) {
		if total > 0 {
			p.budget = total
		}
	}
}

// New creates a Pipeline. All generation calls made by the pipeline share a
// single concurrency limit.
func New(src Source, gen llm.Generator, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		src:         src,
		logger:      logger,
		now:         time.Now,
		budget:      budget.DefaultTotal,
		concurrency: analyze.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.gen = llm.Limit(gen, p.concurrency)
	p.analyzer = analyze.New(p.gen, src, logger, p.concurrency)
	return p
}

// run is the state of a single report.
type run struct {
	logger      *slog.Logger
	report      *Report
	commits     *aggregate.Map
	issues      *aggregate.Map
	discussions *aggregate.Map
	req         Request
	profile     string
	commitLog   string
	commitCount int
	issueCount  int
}

func (r *run) advance(s Stage) {
	r.report.Stage = s
	r.logger.Debug("report stage", "stage", s.String())
}

func (r *run) add(section string) {
	r.report.Sections = append(r.report.Sections, section)
}

// empty reports whether no category produced any analyzed data.
func (r *run) empty() bool {
	return r.commits.Len() == 0 && r.issues.Len() == 0 && r.discussions.Len() == 0
}

// Run builds the report for req. The only fatal failure is an invalid or
// inaccessible repository; every other failure degrades the report.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.Days <= 0 {
		req.Days = DefaultDays
	}

	r := &run{
		req:    req,
		report: &Report{Stage: StageInit},
		logger: p.logger.With("owner", req.Owner, "repo", req.Repo, "user", req.User),
	}
	r.logger.Info("building weekly report", "days", req.Days)

	if err := p.profile(ctx, r); err != nil {
		return nil, err
	}
	r.advance(StageProfileFetched)

	q := activity.Query{
		Owner: req.Owner,
		Repo:  req.Repo,
		User:  req.User,
		Since: p.now().Add(-time.Duration(req.Days) * 24 * time.Hour),
	}

	p.commits(ctx, r, q)
	r.advance(StageCommitsProcessed)

	p.issues(ctx, r, q)
	r.advance(StageIssuesProcessed)

	dq := q
	dq.Since = q.Since.Add(-discussionLookback)
	p.discussions(ctx, r, dq)
	r.advance(StageDiscussionsProcessed)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "report run")
	}

	if r.empty() {
		r.report.Sections = []string{noDataMessage(req.User)}
		r.advance(StageCorrelated)
		r.advance(StageRendered)
		r.advance(StageDone)
		return r.report, nil
	}

	p.correlate(ctx, r)
	r.advance(StageCorrelated)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "report run")
	}

	p.contributors(ctx, r)
	r.advance(StageRendered)

	r.advance(StageDone)
	r.logger.Info("weekly report complete", "sections", len(r.report.Sections), "contributors", len(r.report.Contributors))
	return r.report, nil
}

func validate(req Request) error {
	if !IsValidLogin(req.Owner) || !IsValidRepoName(req.Repo) {
		return errors.Wrapf(ErrInvalidRepo, "%q/%q", req.Owner, req.Repo)
	}
	if req.User != "" && !IsValidLogin(req.User) {
		return errors.Wrapf(ErrInvalidRepo, "invalid username %q", req.User)
	}
	return nil
}

func noDataMessage(user string) string {
	if user == "" {
		return "No useful data found, nothing to report"
	}
	return fmt.Sprintf("No useful data found for %s, you may try alternative means to find out more about %s", user, user)
}

// profile validates the repository and prepares its profile text. A README
// summary stands in for a missing description and vice versa.
func (p *Pipeline) profile(ctx context.Context, r *run) error {
	owner, repo := r.req.Owner, r.req.Repo
	prof, err := p.src.RepoProfile(ctx, owner, repo)
	if err != nil {
		r.logger.Error("community profile unavailable", "error", err)
		return errors.Mark(errors.Wrapf(err, "community profile of %s/%s", owner, repo), ErrInvalidRepo)
	}

	description := prof.Description
	var readme string
	if prof.HasReadme {
		readme = p.readmeSummary(ctx, r)
	}
	switch {
	case description == "":
		description = readme
	case readme == "":
		readme = description
	}

	r.profile = fmt.Sprintf("About %s/%s: %s", owner, repo, readme)
	if description != "" {
		r.add(fmt.Sprintf("About %s/%s: %s", owner, repo, description))
	}
	return nil
}

func (p *Pipeline) readmeSummary(ctx context.Context, r *run) string {
	content, err := p.src.Readme(ctx, r.req.Owner, r.req.Repo)
	if err != nil {
		r.logger.Warn("failed to fetch README", "error", err)
		return ""
	}
	out, err := p.analyzer.Readme(ctx, content)
	if err != nil {
		r.logger.Warn("failed to summarize README", "error", err)
		return ""
	}
	return out
}

func (p *Pipeline) commits(ctx context.Context, r *run, q activity.Query) {
	recs, err := p.src.Commits(ctx, q)
	if err != nil {
		r.logger.Error("failed to get commits", "error", err)
		return
	}

	urls := make([]string, len(recs))
	for i, c := range recs {
		urls[i] = c.SourceURL
	}
	r.add(fmt.Sprintf("found %d commits:\n%s", len(recs), strings.Join(urls, "\n")))

	tier, ok := analyze.SelectTier(activity.CategoryCommits, len(recs))
	if !ok {
		return
	}
	r.commitCount = len(recs)

	m, err := aggregate.Fold(p.analyzer.Commits(ctx, recs, tier))
	if err != nil {
		r.logger.Error("processing commits failed", "count", len(recs), "tier", tier.String(), "error", err)
		return
	}
	r.commits = m

	if tier == analyze.TierSparse && q.User != "" {
		r.commitLog = p.weeklyLog(ctx, r, q)
	}
}

// weeklyLog lists every commit in the repository over the window, giving a
// sparse contributor's work some surrounding context.
func (p *Pipeline) weeklyLog(ctx context.Context, r *run, q activity.Query) string {
	q.User = ""
	all, err := p.src.Commits(ctx, q)
	if err != nil {
		r.logger.Warn("failed to get repository commit log", "error", err)
		return ""
	}
	lines := make([]string, 0, len(all))
	for _, c := range all {
		subject, _, _ := strings.Cut(c.Title, "\n")
		lines = append(lines, fmt.Sprintf("%s: %s", c.Contributor, subject))
	}
	return strings.Join(lines, "\n")
}

func (p *Pipeline) issues(ctx context.Context, r *run, q activity.Query) {
	issues, err := p.src.Issues(ctx, q)
	if err != nil {
		r.logger.Error("failed to get issues", "error", err)
		return
	}

	urls := make([]string, len(issues))
	for i, is := range issues {
		urls[i] = is.SourceURL
	}
	r.add(fmt.Sprintf("found %d issues:\n%s", len(issues), strings.Join(urls, "\n")))

	tier, ok := analyze.SelectTier(activity.CategoryIssues, len(issues))
	if !ok {
		return
	}
	r.issueCount = len(issues)

	m, err := aggregate.Fold(p.analyzer.Issues(ctx, issues, q.User, tier))
	if err != nil {
		r.logger.Error("processing issues failed", "count", len(issues), "tier", tier.String(), "error", err)
		return
	}
	r.issues = m
}

func (p *Pipeline) discussions(ctx context.Context, r *run, q activity.Query) {
	ds, err := p.src.Discussions(ctx, q)
	if err != nil {
		r.logger.Error("failed to get discussions", "error", err)
		return
	}
	if len(ds) == 0 {
		return
	}

	results := p.analyzer.Discussions(ctx, ds, q.User)
	m, err := aggregate.Fold(results)
	if err != nil {
		r.logger.Error("processing discussions failed", "count", len(ds), "error", err)
		return
	}
	r.discussions = m

	urls := make([]string, len(results))
	for i, res := range results {
		urls[i] = res.SourceURL
	}
	r.add(fmt.Sprintf("%d discussions were referenced in analysis:\n %s", len(results), strings.Join(urls, "\n")))
}

// contributors records who appeared in the report and, with a seen store,
// who appeared for the first time.
func (p *Pipeline) contributors(ctx context.Context, r *run) {
	if r.req.User != "" {
		// Everything fetched for a target involves the target.
		r.report.Contributors = []string{r.req.User}
		r.report.Activity = []Activity{{
			Login:       r.req.User,
			Commits:     r.commits.Records(),
			Issues:      r.issues.Records(),
			Discussions: r.discussions.Records(),
		}}
	} else {
		r.report.Contributors = contributorKeys(r)
		for _, login := range r.report.Contributors {
			r.report.Activity = append(r.report.Activity, Activity{
				Login:       login,
				Commits:     bundleCount(r.commits, login),
				Issues:      bundleCount(r.issues, login),
				Discussions: bundleCount(r.discussions, login),
			})
		}
	}
	if p.seen == nil || len(r.report.Contributors) == 0 {
		return
	}

	key := seen.Key(r.req.Owner, r.req.Repo)
	for _, login := range r.report.Contributors {
		known, err := p.seen.Contains(ctx, key, login)
		if err != nil {
			r.logger.Warn("seen store lookup failed", "login", login, "error", err)
			continue
		}
		if known {
			continue
		}
		if err := p.seen.Add(ctx, key, login); err != nil {
			r.logger.Warn("seen store update failed", "login", login, "error", err)
		}
		r.report.NewContributors = append(r.report.NewContributors, login)
	}
	if len(r.report.NewContributors) > 0 {
		r.add("first-time contributors: " + strings.Join(r.report.NewContributors, ", "))
	}
}

// contributorKeys lists contributors from commits, then issues, then
// discussions, each once.
func contributorKeys(r *run) []string {
	var keys []string
	found := make(map[string]bool)
	for _, m := range []*aggregate.Map{r.commits, r.issues, r.discussions} {
		for _, k := range m.Keys() {
			if !found[k] {
				found[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// About builds a sectioned overview of a repository from its home page.
func (p *Pipeline) About(ctx context.Context, owner, repo string) (string, error) {
	if err := validate(Request{Owner: owner, Repo: repo}); err != nil {
		return "", err
	}
	text, err := p.src.RepoPage(ctx, owner, repo)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "fetching %s/%s page", owner, repo), ErrNoRepoPage)
	}
	out, err := p.analyzer.RepoPage(ctx, text)
	if err != nil {
		return "", errors.Mark(err, ErrNoRepoPage)
	}
	return out, nil
}
