package provider

import (
	"fmt"
	"log"
	"os"
	"time"

	"docchat/internal/config"
	"docchat/internal/domain"
	"docchat/internal/provider/mock"
	"docchat/internal/provider/ollama"
	"docchat/internal/provider/openai"
)

// New selects the embedding and generation backend from configuration.
// The same client serves both capabilities for every backend, so the two
// return values usually point at one object. An OpenAI configuration
// without an API key in the environment degrades to the mock provider
// with a warning instead of failing startup.
func New(cfg config.ProviderConfig) (domain.EmbeddingProvider, domain.GenerationProvider, error) {
	switch cfg.Type {
	case "mock", "":
		dim := 0
		if cfg.Mock != nil {
			dim = cfg.Mock.Dimension
		}
		p := mock.New(dim)
		return p, p, nil

	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &config.OpenAIConfig{APIKeyEnv: "OPENAI_API_KEY"}
		}
		key := os.Getenv(oc.APIKeyEnv)
		if key == "" {
			log.Printf("provider: no API key in %s; falling back to mock provider", oc.APIKeyEnv)
			p := mock.New(oc.Dimension)
			return p, p, nil
		}
		c, err := openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKey:     key,
			EmbedModel: oc.EmbedModel,
			ChatModel:  oc.ChatModel,
			Dimension:  oc.Dimension,
			Timeout:    time.Duration(oc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil

	case "ollama":
		ol := cfg.Ollama
		if ol == nil {
			return nil, nil, fmt.Errorf("provider: ollama config missing")
		}
		c, err := ollama.NewClient(ollama.Config{
			BaseURL:       ol.BaseURL,
			EmbedModel:    ol.EmbedModel,
			GenerateModel: ol.GenerateModel,
			Dimension:     ol.Dimension,
			Timeout:       time.Duration(ol.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil

	default:
		return nil, nil, fmt.Errorf("provider: unknown type %q", cfg.Type)
	}
}
