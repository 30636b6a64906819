// Package github fetches repository activity from the GitHub REST and GraphQL
// APIs and the github.com web pages.
package github

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/codeGROOVE-dev/ghweekly/pkg/httpcache"
)

const (
	defaultGraphQLURL = "https://api.github.com/graphql"
	defaultWebURL     = "https://github.com"
	requestTimeout    = 30 * time.Second
	perPage           = 100
)

// Client implements report.Source against GitHub.
type Client struct {
	rest       *gh.Client
	http       *http.Client
	logger     *slog.Logger
	graphql    *GraphQLClient
	webURL     string
	authorized bool
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURLs points the client at another API host, such as a GitHub
// Enterprise server or a test server.
func WithBaseURLs(apiURL, graphqlURL, webURL string) Option {
	return func(c *Client) error {
		if apiURL != "" {
			u, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
			if err != nil {
				return errors.Wrapf(err, "parsing API URL %q", apiURL)
			}
			c.rest.BaseURL = u
		}
		if graphqlURL != "" {
			c.graphql.endpoint = graphqlURL
		}
		if webURL != "" {
			c.webURL = strings.TrimSuffix(webURL, "/")
		}
		return nil
	}
}

// NewClient creates a client. token may be empty, in which case only
// unauthenticated REST calls work and discussions are unavailable. cache may
// be nil.
func NewClient(token string, cache *httpcache.Cache, logger *slog.Logger, opts ...Option) (*Client, error) {
	var base http.RoundTripper = http.DefaultTransport
	if token != "" {
		if !isValidGitHubToken(token) {
			logger.Warn("GitHub token has an unexpected format")
		}
		base = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   http.DefaultTransport,
		}
	}

	var transport http.RoundTripper = base
	if cache != nil {
		transport = httpcache.NewTransport(cache, base, logger)
	}
	hc := &http.Client{Timeout: requestTimeout, Transport: transport}

	c := &Client{
		rest:       gh.NewClient(hc),
		http:       hc,
		logger:     logger,
		graphql:    NewGraphQLClient(hc, logger),
		webURL:     defaultWebURL,
		authorized: token != "",
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// isValidGitHubToken checks if a token looks valid.
func isValidGitHubToken(token string) bool {
	if token == "" {
		return false
	}
	for _, prefix := range []string{"github_pat_", "gho_", "ghs_", "ghp_", "ghu_"} {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	// Classic tokens are 40 hex chars.
	if len(token) != 40 {
		return false
	}
	for _, r := range token {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}

// parseHTMLURL splits https://github.com/owner/repo/<kind>/<id>.
func parseHTMLURL(raw, kind string) (owner, repo, id string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", errors.Wrapf(err, "parsing %q", raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[2] != kind || parts[3] == "" {
		return "", "", "", errors.Newf("not a %s URL: %q", kind, raw)
	}
	return parts[0], parts[1], parts[3], nil
}
