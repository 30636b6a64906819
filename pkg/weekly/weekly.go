// Package weekly assembles the GitHub client, the generation backend, the
// caches and the report pipeline behind one Reporter.
package weekly

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/codeGROOVE-dev/ghweekly/pkg/gemini"
	"github.com/codeGROOVE-dev/ghweekly/pkg/github"
	"github.com/codeGROOVE-dev/ghweekly/pkg/httpcache"
	"github.com/codeGROOVE-dev/ghweekly/pkg/report"
	"github.com/codeGROOVE-dev/ghweekly/pkg/seen"
)

const (
	diskCacheTTL   = 3 * 24 * time.Hour
	memoryCacheTTL = 12 * time.Hour
	seenFile       = "seen.db"
)

// Reporter produces weekly reports and repository descriptions.
type Reporter struct {
	logger   *slog.Logger
	cache    *httpcache.Cache
	seen     seen.Store
	pipeline *report.Pipeline
}

// NewWithLogger creates a Reporter. Cache and seen-store failures are logged
// and the Reporter continues without them.
func NewWithLogger(ctx context.Context, logger *slog.Logger, opts ...Option) (*Reporter, error) {
	o := &OptionHolder{}
	for _, opt := range opts {
		opt(o)
	}

	r := &Reporter{logger: logger}

	var cacheDir string
	switch {
	case o.noCache:
		logger.Info("caching disabled by --no-cache flag")
	case o.memoryOnlyCache:
		r.cache = httpcache.NewMemoryOnly(memoryCacheTTL, logger)
	default:
		cacheDir = o.cacheDir
		if cacheDir == "" {
			if userCacheDir, err := os.UserCacheDir(); err == nil {
				cacheDir = filepath.Join(userCacheDir, "ghweekly")
			} else {
				logger.Debug("could not determine user cache directory", "error", err)
			}
		}
		if cacheDir != "" {
			c, err := httpcache.New(ctx, cacheDir, diskCacheTTL, logger)
			if err != nil {
				logger.Warn("cache initialization failed", "error", err, "cache_dir", cacheDir)
			} else {
				r.cache = c
			}
		}
	}

	r.seen = openSeen(ctx, logger, o, cacheDir)

	gh, err := github.NewClient(o.githubToken, r.cache, logger, github.WithBaseURLs(o.apiURL, o.graphqlURL, o.webURL))
	if err != nil {
		_ = r.Close() //nolint:errcheck // already failing
		return nil, errors.Wrap(err, "creating GitHub client")
	}

	gen := o.generator
	if gen == nil {
		// A nil *Cache must not become a non-nil interface.
		var cache gemini.CacheInterface
		if r.cache != nil {
			cache = r.cache
		}
		gen = gemini.NewClient(o.geminiAPIKey, o.geminiModel, o.gcpProject, cache, logger)
	}

	popts := []report.Option{report.WithConcurrency(o.concurrency)}
	if r.seen != nil {
		popts = append(popts, report.WithSeenStore(r.seen))
	}
	r.pipeline = report.New(gh, gen, logger, popts...)
	return r, nil
}

// openSeen picks the first-time contributor store.
func openSeen(ctx context.Context, logger *slog.Logger, o *OptionHolder, cacheDir string) seen.Store {
	path := o.seenDB
	switch {
	case path != "":
	case o.noCache:
		return nil
	case o.memoryOnlyCache:
		s, err := seen.NewMemoryStore(seen.DefaultSize)
		if err != nil {
			logger.Warn("seen store initialization failed", "error", err)
			return nil
		}
		return s
	case cacheDir != "":
		path = filepath.Join(cacheDir, seenFile)
	default:
		return nil
	}

	s, err := seen.OpenSQLite(ctx, path)
	if err != nil {
		logger.Warn("seen database unavailable", "error", err, "path", path)
		return nil
	}
	return s
}

// Report runs one weekly report.
func (r *Reporter) Report(ctx context.Context, req report.Request) (*report.Report, error) {
	return r.pipeline.Run(ctx, req)
}

// About describes a repository from its github.com page.
func (r *Reporter) About(ctx context.Context, owner, repo string) (string, error) {
	return r.pipeline.About(ctx, owner, repo)
}

// Close releases the seen store and saves the cache.
func (r *Reporter) Close() error {
	var errs []error
	if r.seen != nil {
		errs = append(errs, r.seen.Close())
	}
	if r.cache != nil {
		errs = append(errs, r.cache.Close())
	}
	return errors.Join(errs...)
}
