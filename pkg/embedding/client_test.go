package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-go/internal/config"
	"docchat-go/internal/errs"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, dims int) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.EmbeddingConfig{
		Provider:   "openai",
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Model:      "text-embedding-004",
		Dimensions: dims,
	})
}

func TestOpenAIClient_Embed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hello"}, req.Input)
		assert.Equal(t, 3, req.Dimensions)

		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}, 3)

	vec, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, client.Dimension())
}

func TestOpenAIClient_Errors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}, 3)
		_, err := client.Embed(context.Background(), "hello")
		assert.ErrorIs(t, err, errs.ErrEmbeddingUnavailable)
	})

	t.Run("empty data", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		}, 3)
		_, err := client.Embed(context.Background(), "hello")
		assert.ErrorIs(t, err, errs.ErrEmbeddingUnavailable)
	})

	t.Run("empty text never calls the api", func(t *testing.T) {
		called := false
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			called = true
		}, 3)
		_, err := client.Embed(context.Background(), "  ")
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
		assert.ErrorIs(t, err, errs.ErrEmbeddingUnavailable)
		assert.False(t, called)
	})

	t.Run("wrong dimension", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}]}`))
		}, 3)
		_, err := client.Embed(context.Background(), "hello")
		assert.ErrorIs(t, err, errs.ErrDimensionMismatch)
	})

	t.Run("transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()
		client := NewClient(config.EmbeddingConfig{BaseURL: srv.URL, Dimensions: 3})
		_, err := client.Embed(context.Background(), "hello")
		assert.ErrorIs(t, err, errs.ErrEmbeddingUnavailable)
	})
}

func TestNewClient_LocalProvider(t *testing.T) {
	client := NewClient(config.EmbeddingConfig{Provider: "local", Dimensions: 64})
	assert.IsType(t, &HashClient{}, client)
	assert.Equal(t, 64, client.Dimension())
}
