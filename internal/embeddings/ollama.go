package embeddings

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"
)

// OllamaEmbedder implements Embedder using a local Ollama server.
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder uses OLLAMA_HOST for the server URL
// (defaults to http://localhost:11434).
func NewOllamaEmbedder(model string) (*OllamaEmbedder, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return &OllamaEmbedder{client: client, model: model}, nil
}

func (e *OllamaEmbedder) Model() string {
	return e.model
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embeddings[0], nil
}
