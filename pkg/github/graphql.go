package github

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/ghweekly/pkg/activity"
)

var (
	// ErrNoToken is returned by calls that need an authenticated client.
	ErrNoToken = errors.New("GitHub token required")

	errTransient          = errors.New("transient GraphQL failure")
	errSecondaryRateLimit = errors.New("GitHub secondary rate limit")
)

// GraphQLClient handles GitHub GraphQL API requests. Authentication comes from
// the transport of the underlying HTTP client.
type GraphQLClient struct {
	http     *http.Client
	logger   *slog.Logger
	endpoint string
}

// NewGraphQLClient creates a GraphQL client for api.github.com.
func NewGraphQLClient(hc *http.Client, logger *slog.Logger) *GraphQLClient {
	return &GraphQLClient{http: hc, logger: logger, endpoint: defaultGraphQLURL}
}

// GraphQLResponse represents the response from a GraphQL query.
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError represents an error in a GraphQL response.
type GraphQLError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type discussionSearch struct {
	Search struct {
		Nodes []struct {
			Author *struct {
				Login string `json:"login"`
			} `json:"author"`
			Comments struct {
				Nodes []struct {
					Author *struct {
						Login string `json:"login"`
					} `json:"author"`
					Body string `json:"body"`
				} `json:"nodes"`
			} `json:"comments"`
			CreatedAt   time.Time `json:"createdAt"`
			Title       string    `json:"title"`
			URL         string    `json:"url"`
			Body        string    `json:"body"`
			UpvoteCount int       `json:"upvoteCount"`
		} `json:"nodes"`
	} `json:"search"`
}

const discussionQuery = `
query($q: String!) {
  search(query: $q, type: DISCUSSION, first: 100) {
    nodes {
      ... on Discussion {
        title
        url
        body
        createdAt
        upvoteCount
        author { login }
        comments(first: 100) {
          nodes {
            author { login }
            body
          }
        }
      }
    }
  }
}`

// Discussions searches discussions involving q.User, or all discussions,
// updated since q.Since.
func (c *Client) Discussions(ctx context.Context, q activity.Query) ([]activity.Discussion, error) {
	if !c.authorized {
		return nil, errors.Wrap(ErrNoToken, "searching discussions")
	}
	search := "repo:" + q.Owner + "/" + q.Repo + " updated:>=" + q.Since.UTC().Format(searchDate)
	if q.User != "" {
		search += " involves:" + q.User
	}
	return c.graphql.Discussions(ctx, search)
}

// Discussions runs a discussion search query.
func (c *GraphQLClient) Discussions(ctx context.Context, search string) ([]activity.Discussion, error) {
	resp, err := c.executeQuery(ctx, discussionQuery, map[string]any{"q": search})
	if err != nil {
		return nil, err
	}

	var data discussionSearch
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, errors.Wrap(err, "decoding discussions")
	}

	seen := make(map[string]bool)
	var out []activity.Discussion
	for _, n := range data.Search.Nodes {
		// Non-discussion search hits decode as empty nodes.
		if n.URL == "" || seen[n.URL] {
			continue
		}
		seen[n.URL] = true

		d := activity.Discussion{
			Record: activity.Record{
				Kind:       activity.KindDiscussion,
				Title:      n.Title,
				SourceURL:  n.URL,
				OccurredAt: n.CreatedAt,
			},
			Body:    n.Body,
			Upvotes: n.UpvoteCount,
		}
		if n.Author != nil {
			d.Contributor = n.Author.Login
		}
		for _, cm := range n.Comments.Nodes {
			comment := activity.Comment{Body: cm.Body}
			if cm.Author != nil {
				comment.Author = cm.Author.Login
			}
			d.Comments = append(d.Comments, comment)
		}
		out = append(out, d)
	}
	c.logger.Debug("found discussions", "query", search, "count", len(out))
	return out, nil
}

func (c *GraphQLClient) executeQuery(ctx context.Context, query string, variables map[string]any) (*GraphQLResponse, error) {
	var resp *GraphQLResponse
	attempt := 0

	retryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	err := retry.Do(
		func() error {
			var err error
			resp, err = c.executeQueryOnce(retryCtx, query, variables, attempt > 0)
			attempt++
			switch {
			case err == nil:
				return nil
			case errors.Is(err, errSecondaryRateLimit):
				c.logger.Warn("GraphQL secondary rate limit detected, not retrying", "error", err)
				return retry.Unrecoverable(err)
			case !errors.Is(err, errTransient):
				return retry.Unrecoverable(err)
			default:
				return err
			}
		},
		retry.Context(retryCtx),
		retry.Attempts(10),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(3*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(200*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("retrying GraphQL query", "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "GraphQL query failed")
	}
	return resp, nil
}

// executeQueryOnce sends one query. fresh bypasses cached responses, which
// may hold the error being retried.
func (c *GraphQLClient) executeQueryOnce(ctx context.Context, query string, variables map[string]any, fresh bool) (*GraphQLResponse, error) {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return nil, errors.Wrap(err, "marshaling query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	if fresh {
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "executing request"), errTransient)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", "error", err)
		}
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		if resp.Header.Get("Retry-After") != "" || resp.Header.Get("X-Ratelimit-Remaining") == "0" {
			c.logger.Warn("GitHub secondary rate limit detected on GraphQL endpoint",
				"status", resp.StatusCode,
				"retry_after", resp.Header.Get("Retry-After"))
			return nil, errors.Wrap(errSecondaryRateLimit, "HTTP 403")
		}
		return nil, errors.New("HTTP 403: forbidden")
	case http.StatusTooManyRequests:
		c.logger.Warn("GitHub rate limit exceeded on GraphQL endpoint",
			"rate_limit_remaining", resp.Header.Get("X-Ratelimit-Remaining"),
			"rate_limit_reset", resp.Header.Get("X-Ratelimit-Reset"))
		return nil, errors.Mark(errors.New("HTTP 429: rate limit exceeded"), errTransient)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		c.logger.Warn("GitHub server error on GraphQL endpoint", "status", resp.StatusCode)
		return nil, errors.Mark(errors.Newf("HTTP %d: server error", resp.StatusCode), errTransient)
	default:
		return nil, errors.Newf("HTTP %d: unexpected status", resp.StatusCode)
	}

	var out GraphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decoding response")
	}

	if len(out.Errors) > 0 {
		msg := out.Errors[0].Message
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "something went wrong") ||
			strings.Contains(lower, "server error") ||
			strings.Contains(lower, "timeout") ||
			strings.Contains(lower, "rate limit") {
			c.logger.Warn("GraphQL error (may be transient)", "error", msg, "type", out.Errors[0].Type)
			return nil, errors.Mark(errors.Newf("GraphQL error: %s", msg), errTransient)
		}
		return nil, errors.Newf("GraphQL error: %s", msg)
	}
	return &out, nil
}
