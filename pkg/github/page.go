package github

import (
	"context"
	"io"
	"net/http"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/cockroachdb/errors"
)

const maxPageBytes = 4 << 20

// RepoPage returns the github.com page of owner/repo converted to markdown.
func (c *Client) RepoPage(ctx context.Context, owner, repo string) (string, error) {
	pageURL := c.webURL + "/" + owner + "/" + repo
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "fetching %s", pageURL)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("fetching %s: HTTP %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", pageURL)
	}

	markdown, err := md.ConvertString(string(body))
	if err != nil {
		c.logger.Debug("failed to convert HTML to markdown", "url", pageURL, "error", err)
		return string(body), nil
	}
	return markdown, nil
}
