package cli

import (
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/bdougie/framesearch/internal/analyzer"
	"github.com/bdougie/framesearch/internal/config"
	"github.com/bdougie/framesearch/internal/embeddings"
	"github.com/bdougie/framesearch/internal/storage"
)

// newProviders builds the captioner and embedder for the configured LLM
// provider.
func newProviders(c *config.Config) (analyzer.Captioner, embeddings.Embedder, error) {
	opts := analyzer.CaptionOptions{
		Model:       c.VisionModel,
		Temperature: c.CaptionTemperature,
		MaxTokens:   c.CaptionMaxTokens,
	}

	switch c.LLMProvider {
	case config.ProviderOpenAI:
		clientCfg := openai.DefaultConfig(c.OpenAIAPIKey)
		if c.OpenAIBaseURL != "" {
			clientCfg.BaseURL = c.OpenAIBaseURL
		}
		client := openai.NewClientWithConfig(clientCfg)
		return analyzer.NewOpenAICaptioner(client, opts), embeddings.NewOpenAIEmbedder(client, c.EmbeddingModel), nil

	case config.ProviderOllama:
		captioner, err := analyzer.NewOllamaCaptioner(opts)
		if err != nil {
			return nil, nil, err
		}
		embedder, err := embeddings.NewOllamaEmbedder(c.EmbeddingModel)
		if err != nil {
			return nil, nil, err
		}
		return captioner, embedder, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown LLM provider %q", config.ErrInvalidConfig, c.LLMProvider)
	}
}

func newMinioStore(c *config.Config, bucket string) (*storage.MinioStore, error) {
	return storage.NewMinioStore(storage.MinioConfig{
		Endpoint:      c.MinIOEndpoint,
		AccessKey:     c.MinIOAccessKey,
		SecretKey:     c.MinIOSecretKey,
		UseSSL:        c.MinIOUseSSL,
		Bucket:        bucket,
		PublicBaseURL: c.MinIOPublicBaseURL,
		PresignExpiry: c.MinIOPresignExpiry,
	})
}
