package mock

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"math"
	"math/rand"
	"strings"
)

// Provider is a deterministic offline stand-in for a real model backend.
// Embeddings are unit vectors seeded by a hash of the text, so the same
// text always maps to the same vector; generation returns canned replies.
// It is selected when no real backend is configured and carries the test
// suites that need reproducible vectors.
type Provider struct {
	dim int
}

// New creates a mock provider with the given embedding dimension.
func New(dim int) *Provider {
	if dim <= 0 {
		dim = 256
	}
	return &Provider{dim: dim}
}

// Name returns the identifier of this provider implementation.
func (p *Provider) Name() string { return "mock" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (p *Provider) Dimension() int { return p.dim }

// Embed returns a deterministic unit vector derived from the text.
func (p *Provider) Embed(_ context.Context, text string) ([]float64, error) {
	sum := md5.Sum([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float64, p.dim)
	norm := 0.0
	for i := range vec {
		vec[i] = rng.NormFloat64()
		norm += vec[i] * vec[i]
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// Generate returns a canned reply shaped by the prompt.
func (p *Provider) Generate(_ context.Context, prompt, system string, maxTokens int, temperature float64) (string, error) {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "hello") || strings.Contains(lower, "hi "):
		return "Hello! I'm your document assistant. How can I help you today?", nil
	case strings.Contains(lower, "summary") || strings.Contains(lower, "summarize"):
		return "The conversation covered questions about the uploaded documents and the information found in them.", nil
	case strings.Contains(prompt, "?"):
		return "Based on the retrieved documents, here is what I found relevant to your question. " +
			"Please note this is a development response generated without a model backend.", nil
	default:
		return "I need a bit more information to provide a helpful response. Could you elaborate?", nil
	}
}
