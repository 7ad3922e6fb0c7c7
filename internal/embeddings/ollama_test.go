package embeddings_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framesearch/internal/embeddings"
)

func newOllamaEmbedder(t *testing.T, handler http.HandlerFunc) *embeddings.OllamaEmbedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("OLLAMA_HOST", srv.URL)

	e, err := embeddings.NewOllamaEmbedder("nomic-embed-text")
	require.NoError(t, err)
	return e
}

func TestOllamaEmbedder(t *testing.T) {
	var req struct {
		Model string `json:"model"`
		Input string `json:"input"`
	}
	e := newOllamaEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.5,-0.25,0.125]]}`))
	})

	vec, err := e.Embed(context.Background(), "a lighthouse on a cliff")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 0.125}, vec)
	assert.Equal(t, "nomic-embed-text", req.Model)
	assert.Equal(t, "a lighthouse on a cliff", req.Input)
	assert.Equal(t, "nomic-embed-text", e.Model())
}

func TestOllamaEmbedderEmptyResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no embeddings", `{"model":"nomic-embed-text","embeddings":[]}`},
		{"empty vector", `{"model":"nomic-embed-text","embeddings":[[]]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newOllamaEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := e.Embed(context.Background(), "text")
			assert.ErrorIs(t, err, embeddings.ErrEmptyEmbedding)
		})
	}
}

func TestOllamaEmbedderServerError(t *testing.T) {
	e := newOllamaEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model runner crashed"}`))
	})

	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model runner crashed")
}
