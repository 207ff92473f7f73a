package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"docchat/internal/domain"
)

// Client talks to an OpenAI-compatible API for both embeddings and chat
// completions.
type Client struct {
	baseURL    string
	apiKey     string
	embedModel string
	chatModel  string
	dimension  int
	client     *http.Client
	maxRetries int
}

// Config configures the OpenAI-compatible client.
type Config struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
	ChatModel  string
	Dimension  int
	Timeout    time.Duration
}

// modelDimensions maps known embedding models to their output dimension.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// NewClient creates a client. The embedding dimension must be known up
// front, either from the model table or the explicit config value.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-3-small"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	dim := cfg.Dimension
	if dim == 0 {
		dim = modelDimensions[cfg.EmbedModel]
	}
	if dim == 0 {
		return nil, fmt.Errorf("openai: unknown embedding dimension for model %s, set dimension explicitly", cfg.EmbedModel)
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		embedModel: cfg.EmbedModel,
		chatModel:  cfg.ChatModel,
		dimension:  dim,
		client:     &http.Client{Timeout: t},
		maxRetries: 3,
	}, nil
}

// Name returns the identifier of this provider implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	body := map[string]any{
		"input":           text,
		"model":           c.embedModel,
		"encoding_format": "float",
	}
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/embeddings", body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: openai: no embedding returned", domain.ErrProviderUnavailable)
	}
	return out.Data[0].Embedding, nil
}

// Generate produces a chat completion for the prompt under the given
// system instruction.
func (c *Client) Generate(ctx context.Context, prompt, system string, maxTokens int, temperature float64) (string, error) {
	messages := []map[string]string{}
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body := map[string]any{
		"model":       c.chatModel,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"top_p":       0.95,
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: openai: empty completion", domain.ErrProviderUnavailable)
	}
	return out.Choices[0].Message.Content, nil
}

// post sends a JSON request with exponential backoff on 429s and server
// errors, honoring Retry-After when present.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			sleep(ctx, retryDelay(attempt))
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("openai: %s returned %s", path, resp.Status)
			sleep(ctx, delay)
			continue
		}

		payload, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("%w: openai: %s returned %s", domain.ErrProviderUnavailable, path, resp.Status)
		}
		return json.Unmarshal(payload, out)
	}
	return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, lastErr)
}

func retryDelay(attempt int) time.Duration {
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
