package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/lehigh-university-libraries/scanstudy/internal/providers"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI is a provider for OpenAI chat completions
type OpenAI struct {
	apiKey  string
	baseURL string
}

// New returns a new OpenAI provider
func New(apiKey string) *OpenAI {
	return &OpenAI{apiKey: apiKey}
}

// WithBaseURL points the provider at an OpenAI-compatible endpoint
func (o *OpenAI) WithBaseURL(url string) *OpenAI {
	o.baseURL = url
	return o
}

func (o *OpenAI) Name() string { return "openai" }

// ExtractText generates text from the given prompt using OpenAI
func (o *OpenAI) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	return o.complete(ctx, config, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: config.Prompt,
	})
}

// ExtractImageText sends the prompt and the image as a data URL
func (o *OpenAI) ExtractImageText(ctx context.Context, config providers.Config, image []byte, mediaType string) (string, error) {
	if mediaType == "" {
		mediaType = "image/png"
	}
	dataURL := "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(image)

	return o.complete(ctx, config, goopenai.ChatCompletionMessage{
		Role: goopenai.ChatMessageRoleUser,
		MultiContent: []goopenai.ChatMessagePart{
			{
				Type: goopenai.ChatMessagePartTypeText,
				Text: config.Prompt,
			},
			{
				Type: goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: goopenai.ImageURLDetailHigh,
				},
			},
		},
	})
}

func (o *OpenAI) complete(ctx context.Context, config providers.Config, msg goopenai.ChatCompletionMessage) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set: %w", providers.ErrMissingCredential)
	}

	clientConfig := goopenai.DefaultConfig(o.apiKey)
	if o.baseURL != "" {
		clientConfig.BaseURL = o.baseURL
	}
	client := goopenai.NewClientWithConfig(clientConfig)

	req := goopenai.ChatCompletionRequest{
		Model:       config.Model,
		Messages:    []goopenai.ChatCompletionMessage{msg},
		Temperature: float32(config.Temperature),
		TopP:        float32(config.TopP),
		MaxTokens:   config.MaxOutputTokens,
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}
