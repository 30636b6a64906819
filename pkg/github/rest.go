package github

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/codeGROOVE-dev/retry"
	gh "github.com/google/go-github/v68/github"

	"github.com/codeGROOVE-dev/ghweekly/pkg/activity"
)

const (
	maxCommentPages = 5
	searchDate      = "2006-01-02"
)

// do runs one REST call with retries on rate limiting and gateway errors.
func (c *Client) do(ctx context.Context, op string, call func() (*gh.Response, error)) error {
	retryCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	err := retry.Do(
		func() error {
			resp, err := call()
			if err == nil {
				return nil
			}
			var abuse *gh.AbuseRateLimitError
			if errors.As(err, &abuse) {
				c.logger.Warn("GitHub secondary rate limit detected, not retrying", "op", op)
				return retry.Unrecoverable(err)
			}
			if resp != nil && !transientStatus(resp.StatusCode) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(retryCtx),
		retry.Attempts(5),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(3*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(200*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("retrying GitHub request", "op", op, "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	return errors.Wrap(err, op)
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// RepoProfile returns the community profile of owner/repo. It fails for
// missing and private repositories.
func (c *Client) RepoProfile(ctx context.Context, owner, repo string) (activity.Profile, error) {
	var m *gh.CommunityHealthMetrics
	err := c.do(ctx, "community profile", func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		m, resp, err = c.rest.Repositories.GetCommunityHealthMetrics(ctx, owner, repo)
		return resp, err
	})
	if err != nil {
		return activity.Profile{}, err
	}
	return activity.Profile{
		FullName:    owner + "/" + repo,
		Description: strings.TrimSpace(m.GetDescription()),
		URL:         c.webURL + "/" + owner + "/" + repo,
		HasReadme:   m.GetFiles().GetReadme() != nil,
	}, nil
}

// Readme returns the decoded README of owner/repo.
func (c *Client) Readme(ctx context.Context, owner, repo string) (string, error) {
	var content *gh.RepositoryContent
	err := c.do(ctx, "readme", func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		content, resp, err = c.rest.Repositories.GetReadme(ctx, owner, repo, nil)
		return resp, err
	})
	if err != nil {
		return "", err
	}
	text, err := content.GetContent()
	if err != nil {
		return "", errors.Wrap(err, "decoding readme")
	}
	return text, nil
}

// Commits searches commits authored since q.Since, newest first.
func (c *Client) Commits(ctx context.Context, q activity.Query) ([]activity.Record, error) {
	query := "repo:" + q.Owner + "/" + q.Repo + " author-date:>=" + q.Since.UTC().Format(searchDate)
	if q.User != "" {
		query += " author:" + q.User
	}
	opts := &gh.SearchOptions{Sort: "author-date", Order: "desc", ListOptions: gh.ListOptions{PerPage: perPage}}

	var res *gh.CommitsSearchResult
	err := c.do(ctx, "commit search", func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		res, resp, err = c.rest.Search.Commits(ctx, query, opts)
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(res.Commits))
	out := make([]activity.Record, 0, len(res.Commits))
	for _, rc := range res.Commits {
		url := rc.GetHTMLURL()
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true

		login := rc.GetAuthor().GetLogin()
		if login == "" {
			login = rc.GetCommit().GetAuthor().GetName()
		}
		out = append(out, activity.Record{
			Kind:        activity.KindCommit,
			Contributor: login,
			Title:       rc.GetCommit().GetMessage(),
			SourceURL:   url,
			OccurredAt:  rc.GetCommit().GetAuthor().GetDate().Time,
		})
	}
	c.logger.Debug("found commits", "query", query, "count", len(out))
	return out, nil
}

// CommitPatch returns the patch text of a commit found by Commits.
func (c *Client) CommitPatch(ctx context.Context, commit activity.Record) (string, error) {
	owner, repo, sha, err := parseHTMLURL(commit.SourceURL, "commit")
	if err != nil {
		return "", err
	}
	var patch string
	err = c.do(ctx, "commit patch", func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		patch, resp, err = c.rest.Repositories.GetCommitRaw(ctx, owner, repo, sha, gh.RawOptions{Type: gh.Patch})
		return resp, err
	})
	return patch, err
}

// Issues searches issues involving q.User, or all issues, updated since
// q.Since. Pull requests are excluded.
func (c *Client) Issues(ctx context.Context, q activity.Query) ([]activity.Issue, error) {
	query := "repo:" + q.Owner + "/" + q.Repo + " is:issue updated:>=" + q.Since.UTC().Format(searchDate)
	if q.User != "" {
		query += " involves:" + q.User
	}
	opts := &gh.SearchOptions{Sort: "updated", Order: "desc", ListOptions: gh.ListOptions{PerPage: perPage}}

	var res *gh.IssuesSearchResult
	err := c.do(ctx, "issue search", func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		res, resp, err = c.rest.Search.Issues(ctx, query, opts)
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(res.Issues))
	out := make([]activity.Issue, 0, len(res.Issues))
	for _, is := range res.Issues {
		url := is.GetHTMLURL()
		if url == "" || seen[url] || is.IsPullRequest() {
			continue
		}
		seen[url] = true

		labels := make([]string, 0, len(is.Labels))
		for _, l := range is.Labels {
			labels = append(labels, l.GetName())
		}
		out = append(out, activity.Issue{
			Record: activity.Record{
				Kind:        activity.KindIssue,
				Contributor: is.GetUser().GetLogin(),
				Title:       is.GetTitle(),
				SourceURL:   url,
				OccurredAt:  is.GetUpdatedAt().Time,
			},
			Body:   is.GetBody(),
			Labels: labels,
			Number: is.GetNumber(),
		})
	}
	c.logger.Debug("found issues", "query", query, "count", len(out))
	return out, nil
}

// IssueComments returns the comments on an issue found by Issues, oldest
// first.
func (c *Client) IssueComments(ctx context.Context, issue activity.Issue) ([]activity.Comment, error) {
	owner, repo, id, err := parseHTMLURL(issue.SourceURL, "issues")
	if err != nil {
		return nil, err
	}
	number := issue.Number
	if number == 0 {
		if number, err = strconv.Atoi(id); err != nil {
			return nil, errors.Wrapf(err, "parsing issue number from %q", issue.SourceURL)
		}
	}

	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	var out []activity.Comment
	for page := 0; page < maxCommentPages; page++ {
		var comments []*gh.IssueComment
		var next int
		err := c.do(ctx, "issue comments", func() (*gh.Response, error) {
			var resp *gh.Response
			var err error
			comments, resp, err = c.rest.Issues.ListComments(ctx, owner, repo, number, opts)
			if resp != nil {
				next = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return out, err
		}
		for _, cm := range comments {
			out = append(out, activity.Comment{Author: cm.GetUser().GetLogin(), Body: cm.GetBody()})
		}
		if next == 0 {
			break
		}
		opts.Page = next
	}
	return out, nil
}
