package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/ghweekly/pkg/report"
)

const (
	requestTimeout  = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// reporterService is what the HTTP handler needs from weekly.Reporter.
type reporterService interface {
	Report(ctx context.Context, req report.Request) (*report.Report, error)
	About(ctx context.Context, owner, repo string) (string, error)
}

func newServeCmd(g *globals) *cobra.Command {
	var (
		port       int
		trustProxy bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			logger := g.logger(slog.LevelInfo)

			ctx := cmd.Context()
			r, err := reporter(ctx, cfg, logger, true)
			if err != nil {
				return err
			}
			defer func() {
				if err := r.Close(); err != nil {
					logger.Error("failed to close reporter", "error", err)
				}
			}()

			limiter := newRateLimiter(10, time.Minute)
			limiter.trustProxy = trustProxy
			srv := &http.Server{
				Addr:              ":" + strconv.Itoa(cfg.Port),
				Handler:           newHandler(r, logger, limiter),
				ReadHeaderTimeout: 10 * time.Second,
				WriteTimeout:      requestTimeout + 30*time.Second,
			}
			return listen(ctx, srv, logger)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port for web server (or set PORT)")
	cmd.Flags().BoolVar(&trustProxy, "trust-proxy", false, "Key rate limits on X-Forwarded-For/X-Real-IP set by a fronting proxy")
	return cmd
}

// listen serves until ctx is done, then shuts down gracefully.
func listen(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("starting ghweekly server", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "server error")
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	return nil
}

func newHandler(svc reporterService, logger *slog.Logger, limiter *rateLimiter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintln(w, "ok") //nolint:errcheck // best effort
	})
	mux.HandleFunc("/", rateLimitMiddleware(limiter, handleReport(svc, logger)))
	return securityHeaders(mux)
}

// cspPolicy is the Content-Security-Policy for plain-text responses.
func cspPolicy() string {
	directives := []string{"default-src 'none'", "frame-ancestors 'none'", "base-uri 'none'", "form-action 'none'"}
	if os.Getenv("PRODUCTION") == "true" {
		directives = append(directives, "upgrade-insecure-requests")
	}
	return strings.Join(directives, "; ")
}

func securityHeaders(next http.Handler) http.Handler {
	csp := cspPolicy()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", csp)
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// handleReport serves GET /?owner=&repo=[&username=][&days=] and
// GET /?about_repo=owner/repo as plain text.
func handleReport(svc reporterService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		q := r.URL.Query()
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if about := strings.TrimSpace(q.Get("about_repo")); about != "" {
			owner, repo, ok := report.SplitRepo(about)
			if !ok {
				writeError(w, logger, errors.Wrapf(report.ErrInvalidRepo, "%q", about))
				return
			}
			logger.Info("processing about request", "owner", owner, "repo", repo, "remote_addr", r.RemoteAddr)
			text, err := svc.About(ctx, owner, repo)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeText(w, text)
			return
		}

		req := report.Request{
			Owner: strings.TrimSpace(q.Get("owner")),
			Repo:  strings.TrimSpace(q.Get("repo")),
			User:  strings.TrimSpace(q.Get("username")),
		}
		if req.Owner == "" || req.Repo == "" {
			http.Error(w, "usage: /?owner=<owner>&repo=<repo>[&username=<login>] or /?about_repo=<owner/repo>", http.StatusBadRequest)
			return
		}
		if d := q.Get("days"); d != "" {
			days, err := strconv.Atoi(d)
			if err != nil || days < 1 || days > 90 {
				http.Error(w, "days must be between 1 and 90", http.StatusBadRequest)
				return
			}
			req.Days = days
		}

		logger.Info("processing report request", "owner", req.Owner, "repo", req.Repo, "user", req.User, "remote_addr", r.RemoteAddr)
		rep, err := svc.Report(ctx, req)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeText(w, rep.Text())
	}
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = fmt.Fprint(w, text) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, report.ErrInvalidRepo) || errors.Is(err, report.ErrNoRepoPage) {
		status = http.StatusBadRequest
	}
	logger.Warn("request failed", "status", status, "error", err)
	http.Error(w, report.UserMessage(err), status)
}

// rateLimiter allows limit requests per key in a sliding window. Proxy
// headers name the client only when trustProxy is set.
type rateLimiter struct {
	requests   map[string][]time.Time
	now        func() time.Time
	lastSweep  time.Time
	window     time.Duration
	limit      int
	trustProxy bool
	mu         sync.Mutex
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		requests: make(map[string][]time.Time),
		now:      time.Now,
		limit:    limit,
		window:   window,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweep(cutoff)
		rl.lastSweep = now
	}

	reqs := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			reqs = append(reqs, t)
		}
	}
	if len(reqs) >= rl.limit {
		rl.requests[key] = reqs
		return false
	}
	rl.requests[key] = append(reqs, now)
	return true
}

// sweep drops keys with no request after cutoff.
func (rl *rateLimiter) sweep(cutoff time.Time) {
	for key, reqs := range rl.requests {
		if len(reqs) == 0 || !reqs[len(reqs)-1].After(cutoff) {
			delete(rl.requests, key)
		}
	}
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			return strings.TrimSpace(strings.Split(forwarded, ",")[0])
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return realIP
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func rateLimitMiddleware(limiter *rateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.allow(clientIP(r, limiter.trustProxy)) {
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	}
}
