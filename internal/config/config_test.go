package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
embedding:
  model: "text-embedding-004"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Ingestion.ChunkSize)
	assert.Equal(t, 200, cfg.Ingestion.ChunkOverlap)
	assert.Equal(t, 5, cfg.Answer.TopK)
	assert.Equal(t, "mysql", cfg.VectorStore.Backend)
	assert.Equal(t, 3, cfg.Kafka.MaxAttempts)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
}

func TestLoad_EnvOverridesAPIKey(t *testing.T) {
	t.Setenv("DOCCHAT_EMBEDDING_API_KEY", "secret-embed")
	t.Setenv("DOCCHAT_LLM_API_KEY", "secret-llm")
	path := writeConfig(t, `
embedding:
  api_key: "from-file"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-embed", cfg.Embedding.APIKey)
	assert.Equal(t, "secret-llm", cfg.LLM.APIKey)
}

func TestLoad_RejectsInvalidChunking(t *testing.T) {
	path := writeConfig(t, `
ingestion:
  chunk_size: 100
  chunk_overlap: 100
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
vector_store:
  backend: "faiss"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRepositoryConfigFileIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "I don't have enough information to answer that.", cfg.LLM.Prompt.FallbackText)
}
