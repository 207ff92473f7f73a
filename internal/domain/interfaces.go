package domain

import "context"

// EmbeddingProvider converts free text into a fixed-dimension vector.
// Implementations declare their dimension up front; the index manager
// rejects vectors that do not match it.
type EmbeddingProvider interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// GenerationProvider produces text from a prompt. Any failure is a single
// terminal error for that call; retries are the implementation's business.
type GenerationProvider interface {
	Name() string
	Generate(ctx context.Context, prompt, system string, maxTokens int, temperature float64) (string, error)
}

// Chunker splits raw document text into bounded, ordered segments.
type Chunker interface {
	Chunk(text string) []string
}
