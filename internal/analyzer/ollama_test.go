package analyzer_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framesearch/internal/analyzer"
)

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 'f', 'r', 'a', 'm', 'e', 0xff, 0xd9}

type ollamaChatRequest struct {
	Model    string `json:"model"`
	Stream   *bool  `json:"stream"`
	Messages []struct {
		Role    string   `json:"role"`
		Content string   `json:"content"`
		Images  []string `json:"images"`
	} `json:"messages"`
	Options map[string]any `json:"options"`
}

// imageServer serves jpegBytes at /frame.jpg and 404 elsewhere.
func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/frame.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(jpegBytes)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ollamaServer answers /api/chat with reply and points OLLAMA_HOST at itself.
func ollamaServer(t *testing.T, reply string, got *ollamaChatRequest, calls *atomic.Int64) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   got.Model,
			"message": map[string]any{"role": "assistant", "content": reply},
			"done":    true,
		})
	}))
	t.Cleanup(srv.Close)
	t.Setenv("OLLAMA_HOST", srv.URL)
}

func TestOllamaCaptioner(t *testing.T) {
	images := imageServer(t)
	var got ollamaChatRequest
	var calls atomic.Int64
	ollamaServer(t, "  Two cyclists ride past a red tram at dusk. ", &got, &calls)

	c, err := analyzer.NewOllamaCaptioner(analyzer.CaptionOptions{
		Model:       "llava",
		Temperature: 0.1,
		MaxTokens:   300,
	})
	require.NoError(t, err)

	caption, err := c.Caption(context.Background(), images.URL+"/frame.jpg")
	require.NoError(t, err)
	assert.Equal(t, "Two cyclists ride past a red tram at dusk.", caption)
	assert.Equal(t, "llava", c.Model())

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, "llava", got.Model)
	require.NotNil(t, got.Stream)
	assert.False(t, *got.Stream)
	assert.InDelta(t, 0.1, got.Options["temperature"], 1e-6)
	assert.EqualValues(t, 300, got.Options["num_predict"])

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, analyzer.CaptionPrompt, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	require.Len(t, got.Messages[1].Images, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString(jpegBytes), got.Messages[1].Images[0])
}

func TestOllamaCaptionerImageFetchFails(t *testing.T) {
	images := imageServer(t)
	var got ollamaChatRequest
	var calls atomic.Int64
	ollamaServer(t, "unused", &got, &calls)

	c, err := analyzer.NewOllamaCaptioner(analyzer.CaptionOptions{Model: "llava"})
	require.NoError(t, err)

	_, err = c.Caption(context.Background(), images.URL+"/missing.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Zero(t, calls.Load(), "model must not be called without an image")
}

func TestOllamaCaptionerEmptyReply(t *testing.T) {
	images := imageServer(t)
	var got ollamaChatRequest
	var calls atomic.Int64
	ollamaServer(t, " \n ", &got, &calls)

	c, err := analyzer.NewOllamaCaptioner(analyzer.CaptionOptions{Model: "llava"})
	require.NoError(t, err)

	_, err = c.Caption(context.Background(), images.URL+"/frame.jpg")
	assert.ErrorIs(t, err, analyzer.ErrEmptyCaption)
}

func TestOllamaCaptionerServerError(t *testing.T) {
	images := imageServer(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"llava\" not found"}`))
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_HOST", srv.URL)

	c, err := analyzer.NewOllamaCaptioner(analyzer.CaptionOptions{Model: "llava"})
	require.NoError(t, err)

	_, err = c.Caption(context.Background(), images.URL+"/frame.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
