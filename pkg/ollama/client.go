// Package ollama is a thin HTTP client for a local Ollama instance, covering
// the two model capabilities the engine needs: embeddings and text generation.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client talks to an Ollama server.
type Client struct {
	baseURL    string
	embedModel string
	genModel   string
	maxTokens  int
	http       *http.Client
}

// Opts configures a Client.
type Opts struct {
	BaseURL    string
	EmbedModel string
	GenModel   string
	// MaxTokens caps generation length (Ollama num_predict). Zero means the
	// model default.
	MaxTokens int
	Timeout   time.Duration
}

// New creates a Client. Outbound requests carry OTel spans.
func New(opts Opts) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    opts.BaseURL,
		embedModel: opts.EmbedModel,
		genModel:   opts.GenModel,
		maxTokens:  opts.MaxTokens,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := c.post(ctx, "/api/embeddings", embedRequest{
		Model:  c.embedModel,
		Prompt: text,
	}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding for model %q", c.embedModel)
	}
	return resp.Embedding, nil
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs a non-streaming completion for prompt. Smaller models
// sometimes echo the prompt back at the start of the response; callers that
// care should strip it.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Model:  c.genModel,
		Prompt: prompt,
		Stream: false,
	}
	if c.maxTokens > 0 {
		req.Options = map[string]interface{}{"num_predict": c.maxTokens}
	}
	var resp generateResponse
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return resp.Response, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
