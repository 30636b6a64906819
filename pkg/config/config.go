// Package config loads ghweekly settings from defaults, an optional TOML file,
// a .env file and the environment. Flags are applied on top by the caller.
package config

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultModel       = "gemini-2.5-flash-lite"
	DefaultDays        = 7
	DefaultConcurrency = 8
	DefaultPort        = 8080
	maxDays            = 90
)

// Config holds every runtime setting.
type Config struct {
	GitHubToken  string `toml:"github_token"`
	GeminiAPIKey string `toml:"gemini_api_key"`
	GeminiModel  string `toml:"gemini_model"`
	GCPProject   string `toml:"gcp_project"`
	CacheDir     string `toml:"cache_dir"`
	SeenDB       string `toml:"seen_db"`
	Days         int    `toml:"days"`
	Concurrency  int    `toml:"concurrency"`
	Port         int    `toml:"port"`
	NoCache      bool   `toml:"no_cache"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		GeminiModel: DefaultModel,
		Days:        DefaultDays,
		Concurrency: DefaultConcurrency,
		Port:        DefaultPort,
	}
}

// Load builds a Config. path names an optional TOML file; an empty path
// tries $XDG_CONFIG_HOME/ghweekly/config.toml and ignores it when missing.
// envFile names an optional .env file whose values never override variables
// already set in the environment.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if dir, err := os.UserConfigDir(); err == nil {
			path = filepath.Join(dir, "ghweekly", "config.toml")
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return cfg, errors.Wrapf(err, "reading config %s", path)
			}
		}
	}

	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, errors.Wrapf(err, "reading %s", envFile)
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&c.GitHubToken, "GHWEEKLY_GITHUB_TOKEN", "GITHUB_TOKEN")
	setString(&c.GeminiAPIKey, "GHWEEKLY_GEMINI_API_KEY", "GEMINI_API_KEY")
	setString(&c.GeminiModel, "GHWEEKLY_GEMINI_MODEL", "GEMINI_MODEL")
	setString(&c.GCPProject, "GHWEEKLY_GCP_PROJECT", "GCP_PROJECT")
	setString(&c.CacheDir, "GHWEEKLY_CACHE_DIR", "CACHE_DIR")
	setString(&c.SeenDB, "GHWEEKLY_SEEN_DB")

	for key, dst := range map[string]*int{
		"GHWEEKLY_DAYS":        &c.Days,
		"GHWEEKLY_CONCURRENCY": &c.Concurrency,
		"PORT":                 &c.Port,
	} {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", key)
		}
		*dst = n
	}

	if v := strings.TrimSpace(getenv("GHWEEKLY_NO_CACHE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "parsing GHWEEKLY_NO_CACHE")
		}
		c.NoCache = b
	}
	return nil
}

// Validate rejects settings no command can run with.
func (c Config) Validate() error {
	if c.Days < 1 || c.Days > maxDays {
		return errors.Newf("days must be between 1 and %d, got %d", maxDays, c.Days)
	}
	if c.Concurrency < 1 {
		return errors.Newf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Newf("invalid port %d", c.Port)
	}
	if c.GeminiModel == "" {
		return errors.New("gemini model must not be empty")
	}
	return nil
}

// GitHubTokenFromCLI asks the gh CLI for a token when none is configured.
func (c *Config) GitHubTokenFromCLI(ctx context.Context) {
	if c.GitHubToken != "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if out, err := exec.CommandContext(ctx, "gh", "auth", "token").Output(); err == nil {
		c.GitHubToken = strings.TrimSpace(string(out))
	}
}

// ResolvedCacheDir returns the cache directory, defaulting to the user cache
// directory. It returns "" when caching to disk is not possible.
func (c Config) ResolvedCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ghweekly")
}
