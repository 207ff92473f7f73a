package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docchat/internal/domain"
)

// Client talks to a local Ollama server using its native API shapes.
type Client struct {
	baseURL       string
	embedModel    string
	generateModel string
	dimension     int
	client        *http.Client
}

// Config configures the Ollama client.
type Config struct {
	BaseURL       string
	EmbedModel    string
	GenerateModel string
	Dimension     int
	Timeout       time.Duration
}

// NewClient creates a client for a local model server.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "nomic-embed-text"
	}
	if cfg.GenerateModel == "" {
		cfg.GenerateModel = "llama3.1"
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("ollama: embedding dimension must be configured for model %s", cfg.EmbedModel)
	}
	t := cfg.Timeout
	if t == 0 {
		t = 120 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		embedModel:    cfg.EmbedModel,
		generateModel: cfg.GenerateModel,
		dimension:     cfg.Dimension,
		client:        &http.Client{Timeout: t},
	}, nil
}

// Name returns the identifier of this provider implementation.
func (c *Client) Name() string { return "ollama" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	body := map[string]any{"model": c.embedModel, "prompt": text}
	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := c.post(ctx, "/api/embeddings", body, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("%w: ollama: no embedding returned", domain.ErrProviderUnavailable)
	}
	return out.Embedding, nil
}

// Generate produces a completion for the prompt under the given system
// instruction.
func (c *Client) Generate(ctx context.Context, prompt, system string, maxTokens int, temperature float64) (string, error) {
	body := map[string]any{
		"model":  c.generateModel,
		"prompt": prompt,
		"system": system,
		"stream": false,
		"options": map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := c.post(ctx, "/api/generate", body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", fmt.Errorf("%w: ollama: empty completion", domain.ErrProviderUnavailable)
	}
	return out.Response, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: ollama: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: ollama: %s returned %s", domain.ErrProviderUnavailable, path, resp.Status)
	}
	return json.Unmarshal(payload, out)
}
