package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/ghweekly/pkg/config"
	"github.com/codeGROOVE-dev/ghweekly/pkg/weekly"
)

const version = "v0.3.0"

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configFile  string
	envFile     string
	githubToken string
	geminiKey   string
	geminiModel string
	gcpProject  string
	cacheDir    string
	seenDB      string
	concurrency int
	verbose     bool
	noCache     bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "ghweekly",
		Short:         "Weekly GitHub contribution reports",
		Long:          "ghweekly summarizes a week of commits, issues and discussions in a GitHub repository,\noptionally focused on one contributor.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	g.register(root)

	root.AddCommand(newReportCmd(g), newAboutCmd(g), newServeCmd(g))
	return root
}

// register binds the persistent flags of cmd to g.
func (g *globals) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&g.configFile, "config", "", "TOML config file (default $XDG_CONFIG_HOME/ghweekly/config.toml)")
	f.StringVar(&g.envFile, "env-file", "", "dotenv file to load (default .env)")
	f.StringVar(&g.githubToken, "github-token", "", "GitHub token for API access (or set GITHUB_TOKEN)")
	f.StringVar(&g.geminiKey, "gemini-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	f.StringVar(&g.geminiModel, "gemini-model", "", "Gemini model to use (or set GEMINI_MODEL)")
	f.StringVar(&g.gcpProject, "gcp-project", "", "GCP project ID (or set GCP_PROJECT)")
	f.StringVar(&g.cacheDir, "cache-dir", "", "Cache directory (or set CACHE_DIR)")
	f.StringVar(&g.seenDB, "seen-db", "", "SQLite file tracking first-time contributors")
	f.IntVar(&g.concurrency, "concurrency", 0, "Maximum concurrent generation calls")
	f.BoolVar(&g.noCache, "no-cache", false, "Disable caching")
	f.BoolVarP(&g.verbose, "verbose", "v", false, "Enable verbose logging")
}

// load merges defaults, the config file, the environment and the flags that
// were set explicitly.
func (g *globals) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(g.configFile, g.envFile)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	for name, apply := range map[string]func(){
		"github-token": func() { cfg.GitHubToken = g.githubToken },
		"gemini-key":   func() { cfg.GeminiAPIKey = g.geminiKey },
		"gemini-model": func() { cfg.GeminiModel = g.geminiModel },
		"gcp-project":  func() { cfg.GCPProject = g.gcpProject },
		"cache-dir":    func() { cfg.CacheDir = g.cacheDir },
		"seen-db":      func() { cfg.SeenDB = g.seenDB },
		"concurrency":  func() { cfg.Concurrency = g.concurrency },
		"no-cache":     func() { cfg.NoCache = g.noCache },
	} {
		if flags.Changed(name) {
			apply()
		}
	}

	cfg.GitHubTokenFromCLI(cmd.Context())
	return cfg, cfg.Validate()
}

func (g *globals) logger(base slog.Level) *slog.Logger {
	level := base
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// reporter builds a Reporter from cfg. memoryOnly selects the server cache.
func reporter(ctx context.Context, cfg config.Config, logger *slog.Logger, memoryOnly bool) (*weekly.Reporter, error) {
	opts := []weekly.Option{
		weekly.WithGitHubToken(cfg.GitHubToken),
		weekly.WithGeminiAPIKey(cfg.GeminiAPIKey),
		weekly.WithGeminiModel(cfg.GeminiModel),
		weekly.WithGCPProject(cfg.GCPProject),
		weekly.WithConcurrency(cfg.Concurrency),
	}
	switch {
	case cfg.NoCache:
		opts = append(opts, weekly.WithNoCache())
	case memoryOnly:
		opts = append(opts, weekly.WithMemoryOnlyCache())
	default:
		opts = append(opts, weekly.WithCacheDir(cfg.ResolvedCacheDir()))
	}
	if cfg.SeenDB != "" {
		opts = append(opts, weekly.WithSeenDB(cfg.SeenDB))
	}

	r, err := weekly.NewWithLogger(ctx, logger, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "initializing reporter")
	}
	return r, nil
}
