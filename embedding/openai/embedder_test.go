package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedder(t *testing.T) {
	embedder, err := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
	)
	require.NoError(t, err)
	assert.Equal(t, "custom-model", embedder.ModelName())
	assert.Equal(t, 42, embedder.Dimension())

	embedder, err = NewEmbedder("dummy-key", WithEmbeddingModel(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultEmbeddingModel, embedder.ModelName())

	_, err = NewEmbedder("")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func embeddingsServer(t *testing.T, embedding []float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer dummy-key", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "embed-test", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "embed-test",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": embedding},
			},
			"usage": map[string]any{"prompt_tokens": 2, "total_tokens": 2},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedder_Embed(t *testing.T) {
	srv := embeddingsServer(t, []float64{0.25, -0.5, 1})

	embedder, err := NewEmbedder("dummy-key", WithEmbeddingModel("embed-test"), WithBaseURL(srv.URL+"/v1/"))
	require.NoError(t, err)
	vec, err := embedder.Embed(context.Background(), "coffee shop")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1}, vec)

	t.Run("Dimension mismatch", func(t *testing.T) {
		embedder, err := NewEmbedder("dummy-key",
			WithEmbeddingModel("embed-test"),
			WithEmbeddingDimension(4),
			WithBaseURL(srv.URL+"/v1/"),
		)
		require.NoError(t, err)
		_, err = embedder.Embed(context.Background(), "coffee shop")
		assert.Error(t, err)
	})
}
