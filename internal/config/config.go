package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig configures the OpenAI-compatible provider.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	EmbedModel  string `yaml:"embed_model"`
	ChatModel   string `yaml:"chat_model"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OllamaConfig configures a local Ollama model server.
type OllamaConfig struct {
	BaseURL       string `yaml:"base_url"`
	EmbedModel    string `yaml:"embed_model"`
	GenerateModel string `yaml:"generate_model"`
	Dimension     int    `yaml:"dimension"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
}

// MockConfig configures the deterministic offline provider.
type MockConfig struct {
	Dimension int `yaml:"dimension"`
}

// ProviderConfig selects the embedding/generation backend at startup.
type ProviderConfig struct {
	Type   string        `yaml:"type"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
	Ollama *OllamaConfig `yaml:"ollama,omitempty"`
	Mock   *MockConfig   `yaml:"mock,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	TargetSize int `yaml:"target_size"`
	Overlap    int `yaml:"overlap"`
}

// RetrievalConfig bounds the retrieval and prompt-assembly step.
type RetrievalConfig struct {
	TopK            int     `yaml:"top_k"`
	HistoryTurns    int     `yaml:"history_turns"`
	MaxContextChars int     `yaml:"max_context_chars"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float64 `yaml:"temperature"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	DataDir   string          `yaml:"data_dir"`
	Provider  ProviderConfig  `yaml:"provider"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// IndexRoot is the directory holding per-user index artifacts.
func (c *AppConfig) IndexRoot() string { return filepath.Join(c.DataDir, "index") }

// DatabasePath is the SQLite record store location.
func (c *AppConfig) DatabasePath() string { return filepath.Join(c.DataDir, "docchat.db") }

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./docchat.yaml first, then ~/.config/docchat/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "docchat.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Provider:  ProviderConfig{Type: "mock"},
		Chunker:   ChunkerConfig{TargetSize: 1000, Overlap: 200},
		Retrieval: RetrievalConfig{TopK: 5, HistoryTurns: 5, MaxContextChars: 8000, MaxTokens: 1024, Temperature: 0.4},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.DataDir = filepath.Join(home, ".docchat")
	}
	if cfg.Chunker.TargetSize == 0 {
		cfg.Chunker.TargetSize = 1000
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 200
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.HistoryTurns == 0 {
		cfg.Retrieval.HistoryTurns = 5
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = 8000
	}
	if cfg.Retrieval.MaxTokens == 0 {
		cfg.Retrieval.MaxTokens = 1024
	}
	if cfg.Retrieval.Temperature == 0 {
		cfg.Retrieval.Temperature = 0.4
	}
	if cfg.Provider.Type == "openai" && cfg.Provider.OpenAI != nil {
		oa := cfg.Provider.OpenAI
		if oa.BaseURL == "" {
			oa.BaseURL = "https://api.openai.com/v1"
		}
		if oa.APIKeyEnv == "" {
			oa.APIKeyEnv = "OPENAI_API_KEY"
		}
		if oa.EmbedModel == "" {
			oa.EmbedModel = "text-embedding-3-small"
		}
		if oa.ChatModel == "" {
			oa.ChatModel = "gpt-4o-mini"
		}
		if oa.TimeoutSecs == 0 {
			oa.TimeoutSecs = 60
		}
	}
	if cfg.Provider.Type == "ollama" && cfg.Provider.Ollama != nil {
		ol := cfg.Provider.Ollama
		if ol.BaseURL == "" {
			ol.BaseURL = "http://localhost:11434"
		}
		if ol.EmbedModel == "" {
			ol.EmbedModel = "nomic-embed-text"
		}
		if ol.GenerateModel == "" {
			ol.GenerateModel = "llama3.1"
		}
		if ol.Dimension == 0 {
			ol.Dimension = 768
		}
		if ol.TimeoutSecs == 0 {
			ol.TimeoutSecs = 120
		}
	}
}
