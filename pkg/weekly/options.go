package weekly

import "github.com/codeGROOVE-dev/ghweekly/pkg/llm"

// Option is a functional option for configuring the Reporter.
type Option func(*OptionHolder)

// WithGitHubToken sets the GitHub API token.
func WithGitHubToken(token string) Option {
	return func(o *OptionHolder) {
		o.githubToken = token
	}
}

// WithGeminiAPIKey sets the Gemini API key.
func WithGeminiAPIKey(key string) Option {
	return func(o *OptionHolder) {
		o.geminiAPIKey = key
	}
}

// WithGeminiModel sets the Gemini model.
func WithGeminiModel(model string) Option {
	return func(o *OptionHolder) {
		o.geminiModel = model
	}
}

// WithGCPProject sets the GCP project used for Vertex AI.
func WithGCPProject(projectID string) Option {
	return func(o *OptionHolder) {
		o.gcpProject = projectID
	}
}

// WithCacheDir sets a custom cache directory.
func WithCacheDir(dir string) Option {
	return func(o *OptionHolder) {
		o.cacheDir = dir
	}
}

// WithNoCache disables caching and first-time contributor tracking.
func WithNoCache() Option {
	return func(o *OptionHolder) {
		o.noCache = true
	}
}

// WithMemoryOnlyCache keeps the cache and the seen contributors in memory,
// as the web server does.
func WithMemoryOnlyCache() Option {
	return func(o *OptionHolder) {
		o.memoryOnlyCache = true
	}
}

// WithSeenDB stores seen contributors in the SQLite database at path.
func WithSeenDB(path string) Option {
	return func(o *OptionHolder) {
		o.seenDB = path
	}
}

// WithConcurrency bounds in-flight generation calls.
func WithConcurrency(n int) Option {
	return func(o *OptionHolder) {
		o.concurrency = n
	}
}

// WithGenerator replaces the Gemini client.
func WithGenerator(g llm.Generator) Option {
	return func(o *OptionHolder) {
		o.generator = g
	}
}

// WithGitHubURLs points the GitHub client at another host.
func WithGitHubURLs(apiURL, graphqlURL, webURL string) Option {
	return func(o *OptionHolder) {
		o.apiURL = apiURL
		o.graphqlURL = graphqlURL
		o.webURL = webURL
	}
}

// OptionHolder holds all options for the Reporter.
type OptionHolder struct {
	generator       llm.Generator
	githubToken     string
	geminiAPIKey    string
	geminiModel     string
	gcpProject      string
	cacheDir        string
	seenDB          string
	apiURL          string
	graphqlURL      string
	webURL          string
	concurrency     int
	noCache         bool
	memoryOnlyCache bool
}
