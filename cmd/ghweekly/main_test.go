package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeGROOVE-dev/ghweekly/pkg/report"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeService struct {
	reqs      []report.Request
	reportErr error
	aboutErr  error
}

func (f *fakeService) Report(_ context.Context, req report.Request) (*report.Report, error) {
	f.reqs = append(f.reqs, req)
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	return &report.Report{Sections: []string{"About o/r: tool", "found 0 commits:\n"}}, nil
}

func (f *fakeService) About(_ context.Context, owner, repo string) (string, error) {
	if f.aboutErr != nil {
		return "", f.aboutErr
	}
	return "overview of " + owner + "/" + repo, nil
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerReport(t *testing.T) {
	svc := &fakeService{}
	h := newHandler(svc, discard(), newRateLimiter(100, time.Minute))

	rec := get(t, h, "/?owner=o&repo=r&username=alice&days=3")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "About o/r: tool\nfound 0 commits:\n", rec.Body.String())
	require.Len(t, svc.reqs, 1)
	assert.Equal(t, report.Request{Owner: "o", Repo: "r", User: "alice", Days: 3}, svc.reqs[0])
}

func TestSecurityHeaders(t *testing.T) {
	t.Setenv("PRODUCTION", "")
	h := newHandler(&fakeService{}, discard(), newRateLimiter(100, time.Minute))
	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'", rec.Header().Get("Content-Security-Policy"))

	t.Setenv("PRODUCTION", "true")
	assert.True(t, strings.HasSuffix(cspPolicy(), "; upgrade-insecure-requests"))
}

func TestHandlerAbout(t *testing.T) {
	h := newHandler(&fakeService{}, discard(), newRateLimiter(100, time.Minute))

	rec := get(t, h, "/?about_repo=o/r")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "overview of o/r", rec.Body.String())

	rec = get(t, h, "/?about_repo=not-a-repo")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "You've entered invalid owner/repo")
}

func TestHandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		svc    *fakeService
		status int
		body   string
	}{
		{"missing repo", "/?owner=o", &fakeService{}, http.StatusBadRequest, "usage:"},
		{"bad days", "/?owner=o&repo=r&days=0", &fakeService{}, http.StatusBadRequest, "days must be"},
		{
			"invalid repo", "/?owner=o&repo=r",
			&fakeService{reportErr: errors.Mark(errors.New("404"), report.ErrInvalidRepo)},
			http.StatusBadRequest, "You've entered invalid owner/repo",
		},
		{
			"internal", "/?owner=o&repo=r",
			&fakeService{reportErr: errors.New("boom")},
			http.StatusInternalServerError, "Something went wrong",
		},
		{"unknown path", "/favicon.ico", &fakeService{}, http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(tt.svc, discard(), newRateLimiter(100, time.Minute))
			rec := get(t, h, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestHandlerRejectsPost(t *testing.T) {
	h := newHandler(&fakeService{}, discard(), newRateLimiter(100, time.Minute))
	req := httptest.NewRequest(http.MethodPost, "/?owner=o&repo=r", http.NoBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"), "keys are independent")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("a"), "window slides")
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		assert.True(t, rl.allow(key))
	}
	assert.Equal(t, 3, len(rl.requests))

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.allow("d"))
	assert.Equal(t, 1, len(rl.requests), "idle keys are dropped")
}

func TestRateLimitMiddleware(t *testing.T) {
	h := newHandler(&fakeService{}, discard(), newRateLimiter(1, time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/?owner=o&repo=r", http.NoBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "forwarded header is ignored without a trusted proxy")
}

func TestRateLimitMiddlewareTrustedProxy(t *testing.T) {
	limiter := newRateLimiter(1, time.Minute)
	limiter.trustProxy = true
	h := newHandler(&fakeService{}, discard(), limiter)

	for _, ip := range []string{"203.0.113.7, 10.0.0.1", "203.0.113.8"} {
		req := httptest.NewRequest(http.MethodGet, "/?owner=o&repo=r", http.NoBody)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, ip)
	}

	req := httptest.NewRequest(http.MethodGet, "/?owner=o&repo=r", http.NoBody)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(req, true))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", clientIP(req, true))
	assert.Equal(t, "192.0.2.1", clientIP(req, false))
}

func TestPrintReport(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	printReport(&buf, &report.Report{Sections: []string{
		"About o/r: tool",
		"found 1 commits:\nhttps://github.com/o/r/commit/abc",
		"found 0 issues:\n",
		"alice: shipped things",
		"first-time contributors: alice",
	}})
	assert.Equal(t, strings.Join([]string{
		"About o/r: tool",
		"found 1 commits:",
		"https://github.com/o/r/commit/abc",
		"found 0 issues:",
		"alice: shipped things",
		"first-time contributors: alice",
		"",
	}, "\n"), buf.String())
}

func TestChartRows(t *testing.T) {
	rows := chartRows([]report.Activity{{Login: "alice", Commits: 2, Issues: 1}})
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0].Name)
	assert.Equal(t, 3, rows[0].Total())
}

func TestLoadFlagsOverrideConfig(t *testing.T) {
	for _, k := range []string{
		"GITHUB_TOKEN", "GHWEEKLY_GITHUB_TOKEN", "GEMINI_MODEL", "GHWEEKLY_GEMINI_MODEL",
		"GHWEEKLY_CONCURRENCY", "GHWEEKLY_DAYS", "GHWEEKLY_NO_CACHE",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("gemini_model = \"from-file\"\nconcurrency = 3\ndays = 5\n"), 0o600))

	g := &globals{}
	cmd := &cobra.Command{Use: "test"}
	cmd.SetContext(context.Background())
	g.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", cfgPath,
		"--env-file", filepath.Join(dir, "missing.env"),
		"--gemini-model", "from-flag",
		"--github-token", "ghp_flag",
	}))

	cfg, err := g.load(cmd)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.GeminiModel)
	assert.Equal(t, "ghp_flag", cfg.GitHubToken)
	assert.Equal(t, 3, cfg.Concurrency, "unset flags keep file values")
	assert.Equal(t, 5, cfg.Days)
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"report", "about", "serve"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	root.SetArgs([]string{"report"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	assert.Error(t, root.Execute(), "report needs exactly one argument")
}
