package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Provider.Type)
	assert.Equal(t, 1000, cfg.Chunker.TargetSize)
	assert.Equal(t, 200, cfg.Chunker.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider:\n  type: openai\n  openai:\n    chat_model: gpt-4o\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider.Type)
	assert.Equal(t, "gpt-4o", cfg.Provider.OpenAI.ChatModel)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Provider.OpenAI.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Provider.OpenAI.APIKeyEnv)
	assert.Equal(t, "text-embedding-3-small", cfg.Provider.OpenAI.EmbedModel)
	assert.Equal(t, 1024, cfg.Retrieval.MaxTokens)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "docchat.yaml")
	cfg := defaultConfig()
	cfg.DataDir = "/var/lib/docchat"
	cfg.Retrieval.TopK = 9

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/docchat", got.DataDir)
	assert.Equal(t, 9, got.Retrieval.TopK)
}

func TestDerivedPaths(t *testing.T) {
	cfg := &AppConfig{DataDir: "/data"}
	assert.Equal(t, filepath.Join("/data", "index"), cfg.IndexRoot())
	assert.Equal(t, filepath.Join("/data", "docchat.db"), cfg.DatabasePath())
}
