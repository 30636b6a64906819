// Package gemini provides a client for Google's Gemini AI API.
package gemini

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"google.golang.org/genai"

	"github.com/codeGROOVE-dev/ghweekly/pkg/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// Client represents a Gemini API client. It implements llm.Generator.
type Client struct {
	cache      CacheInterface
	logger     Logger
	sdk        *genai.Client
	sdkErr     error
	apiKey     string
	model      string
	gcpProject string
	once       sync.Once
}

var _ llm.Generator = (*Client)(nil)

// NewClient creates a new Gemini API client. cache may be nil.
func NewClient(apiKey, model, gcpProject string, cache CacheInterface, logger Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:     apiKey,
		model:      strings.TrimPrefix(model, "models/"),
		gcpProject: gcpProject,
		cache:      cache,
		logger:     logger,
	}
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string { return c.model }

// cachedRequest is the cache payload: everything that influences the output.
type cachedRequest struct {
	System    string     `json:"system"`
	Turns     []llm.Turn `json:"turns"`
	MaxTokens int        `json:"max_tokens"`
}

// Generate sends the conversation and returns the model's reply.
// Failures are returned as is; the caller decides whether an item or a
// whole report section is lost.
func (c *Client) Generate(ctx context.Context, system string, turns []llm.Turn, maxTokens int) (string, error) {
	payload, err := json.Marshal(cachedRequest{System: system, Turns: turns, MaxTokens: maxTokens})
	if err != nil {
		return "", errors.Wrap(err, "encoding request for cache key")
	}
	cacheKey := "genai:" + c.model

	if text, ok := c.checkCache(cacheKey, payload); ok {
		return text, nil
	}

	client, err := c.client(ctx)
	if err != nil {
		return "", err
	}

	contents, config := c.configureRequest(system, turns, maxTokens)
	resp, err := client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", errors.Wrapf(err, "gemini %s call failed", c.model)
	}

	text, err := c.processResponse(resp)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if err := c.cache.SetAPICall(cacheKey, payload, []byte(text)); err != nil {
			c.logger.Debug("failed to cache Gemini response", "error", err)
		}
	}
	return text, nil
}

// checkCache returns a previously generated reply for the same request.
func (c *Client) checkCache(key string, payload []byte) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	data, found := c.cache.APICall(key, payload)
	if !found || len(data) == 0 {
		return "", false
	}
	c.logger.Debug("Gemini cache hit", "model", c.model, "length", len(data))
	return string(data), true
}

// client lazily creates the SDK client once.
func (c *Client) client(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		var config *genai.ClientConfig
		if c.apiKey != "" {
			config = &genai.ClientConfig{
				Backend: genai.BackendGeminiAPI,
				APIKey:  c.apiKey,
			}
			c.logger.Info("Using Gemini API with API key", "model", c.model)
		} else {
			projectID := c.projectID()
			config = &genai.ClientConfig{
				Backend:  genai.BackendVertexAI,
				Project:  projectID,
				Location: "us-central1",
			}
			c.logger.Info("Using Vertex AI with Application Default Credentials", "project", projectID, "location", "us-central1")
		}

		c.sdk, c.sdkErr = genai.NewClient(ctx, config)
		if c.sdkErr != nil {
			c.sdkErr = errors.Wrap(c.sdkErr, "failed to create genai client")
		}
	})
	return c.sdk, c.sdkErr
}

// projectID determines the GCP project ID to use.
func (c *Client) projectID() string {
	if c.gcpProject != "" {
		return c.gcpProject
	}
	if projectID := os.Getenv("GCP_PROJECT"); projectID != "" {
		return projectID
	}
	return os.Getenv("GOOGLE_CLOUD_PROJECT")
}

// configureRequest maps the conversation onto genai contents.
func (c *Client) configureRequest(system string, turns []llm.Turn, maxTokens int) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := string(genai.RoleUser)
		if t.Role == llm.RoleModel {
			role = string(genai.RoleModel)
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: t.Text}},
		})
	}

	temperature := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(maxTokens), //nolint:gosec // output caps are small constants
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	return contents, config
}

// processResponse extracts the reply text.
func (c *Client) processResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.Wrap(llm.ErrEmptyResponse, "no candidates in Gemini response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.Wrap(llm.ErrEmptyResponse, "no content in Gemini response")
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		b.WriteString(part.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.Wrap(llm.ErrEmptyResponse, "empty text in Gemini response")
	}

	c.logger.Debug("Raw Gemini response", "model", c.model, "length", len(text), "finish_reason", candidate.FinishReason)
	return text, nil
}
