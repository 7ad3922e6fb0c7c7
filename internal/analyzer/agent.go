package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
)

// CaptionPrompt is the fixed system instruction sent with every frame.
const CaptionPrompt = `You are a visual analysis assistant that writes captions used for semantic video search.
Describe the image in one dense paragraph covering:
1. Physical descriptions of every person: apparent age, build, hair, clothing and notable features.
2. Named identification of any recognizable actors, public figures or fictional characters.
3. Key objects, including their colors, materials and positions.
4. The overall mood and atmosphere of the scene, including lighting.
5. The actions and activities taking place.
Do not speculate beyond what is visible.`

const userInstruction = "Describe this video frame."

// ErrEmptyCaption is returned when the model answers with no text.
var ErrEmptyCaption = errors.New("model returned an empty caption")

// Captioner describes an image reachable at a URL.
type Captioner interface {
	Caption(ctx context.Context, imageURL string) (string, error)
	Model() string
}

// CaptionOptions tunes generation. Low temperature keeps captions
// consistent between runs.
type CaptionOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// OpenAICaptioner captions images with an OpenAI-compatible vision model.
type OpenAICaptioner struct {
	client *openai.Client
	opts   CaptionOptions
}

var _ Captioner = (*OpenAICaptioner)(nil)

func NewOpenAICaptioner(client *openai.Client, opts CaptionOptions) *OpenAICaptioner {
	return &OpenAICaptioner{client: client, opts: opts}
}

func (c *OpenAICaptioner) Model() string {
	return c.opts.Model
}

func (c *OpenAICaptioner) Caption(ctx context.Context, imageURL string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: CaptionPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: userInstruction},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCaption
	}

	caption := strings.TrimSpace(resp.Choices[0].Message.Content)
	if caption == "" {
		return "", ErrEmptyCaption
	}
	return caption, nil
}

// OllamaCaptioner captions images with a local Ollama vision model. Ollama
// takes image bytes, so the published URL is downloaded first.
type OllamaCaptioner struct {
	client     *api.Client
	httpClient *http.Client
	opts       CaptionOptions
}

var _ Captioner = (*OllamaCaptioner)(nil)

// NewOllamaCaptioner uses OLLAMA_HOST for the server URL.
func NewOllamaCaptioner(opts CaptionOptions) (*OllamaCaptioner, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return &OllamaCaptioner{
		client:     client,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		opts:       opts,
	}, nil
}

func (c *OllamaCaptioner) Model() string {
	return c.opts.Model
}

func (c *OllamaCaptioner) Caption(ctx context.Context, imageURL string) (string, error) {
	image, err := fetchImage(ctx, c.httpClient, imageURL)
	if err != nil {
		return "", err
	}

	stream := false
	var caption strings.Builder
	err = c.client.Chat(ctx, &api.ChatRequest{
		Model: c.opts.Model,
		Messages: []api.Message{
			{Role: "system", Content: CaptionPrompt},
			{Role: "user", Content: userInstruction, Images: []api.ImageData{image}},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature": c.opts.Temperature,
			"num_predict": c.opts.MaxTokens,
		},
	}, func(resp api.ChatResponse) error {
		caption.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	out := strings.TrimSpace(caption.String())
	if out == "" {
		return "", ErrEmptyCaption
	}
	return out, nil
}

func fetchImage(ctx context.Context, client *http.Client, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}
