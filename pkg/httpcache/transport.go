package httpcache

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
)

// FromCacheHeader is set on responses served from the cache.
const FromCacheHeader = "X-From-Cache"

// Transport is an http.RoundTripper that serves successful GET and POST
// responses from a Cache. POST requests are keyed by body, which suits the
// GraphQL endpoint. A request carrying "Cache-Control: no-cache" skips the
// lookup but still refreshes the entry.
type Transport struct {
	base   http.RoundTripper
	cache  *Cache
	logger *slog.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(c *Cache, base http.RoundTripper, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, cache: c, logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.cache == nil || (req.Method != http.MethodGet && req.Method != http.MethodPost) {
		return t.base.RoundTrip(req)
	}

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "reading request body")
		}
		if err := req.Body.Close(); err != nil {
			t.logger.Debug("failed to close request body", "error", err)
		}
		req = req.Clone(req.Context())
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
	}

	// Accept distinguishes media types served from one URL, such as a commit
	// and its patch.
	k := key([]byte(req.Method), []byte(req.URL.String()), []byte(req.Header.Get("Accept")), body)
	if req.Header.Get("Cache-Control") == "no-cache" {
		t.logger.Debug("HTTP cache bypass", "method", req.Method, "url", req.URL.String())
	} else if entry, ok := t.cache.Get(k); ok {
		t.logger.Debug("HTTP cache hit", "method", req.Method, "url", req.URL.String())
		return cachedResponse(req, entry), nil
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	data, err := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.logger.Debug("failed to close response body", "error", closeErr)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	t.cache.Set(k, Entry{
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        resp.Header.Get("ETag"),
		Data:        data,
	})
	t.logger.Debug("HTTP cache set", "method", req.Method, "url", req.URL.String(), "size", len(data))

	resp.Body = io.NopCloser(bytes.NewReader(data))
	resp.ContentLength = int64(len(data))
	return resp, nil
}

func cachedResponse(req *http.Request, entry Entry) *http.Response {
	h := make(http.Header)
	if entry.ContentType != "" {
		h.Set("Content-Type", entry.ContentType)
	}
	if entry.ETag != "" {
		h.Set("ETag", entry.ETag)
	}
	h.Set(FromCacheHeader, "1")
	h.Set("Content-Length", strconv.Itoa(len(entry.Data)))
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
		Request:       req,
	}
}
