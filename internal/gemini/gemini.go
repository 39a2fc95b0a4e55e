package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/scanstudy/internal/providers"
	"google.golang.org/api/option"
)

// Gemini is a provider for Google Gemini
type Gemini struct {
	apiKey string
	opts   []option.ClientOption
}

// New returns a new Gemini provider. An empty key is reported on first use.
func New(apiKey string, opts ...option.ClientOption) *Gemini {
	return &Gemini{apiKey: apiKey, opts: opts}
}

func (g *Gemini) Name() string { return "gemini" }

// ExtractText generates text from the given prompt using Gemini
func (g *Gemini) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	return g.generate(ctx, config, genai.Text(config.Prompt))
}

// ExtractImageText sends the prompt together with an inline image
func (g *Gemini) ExtractImageText(ctx context.Context, config providers.Config, image []byte, mediaType string) (string, error) {
	format := strings.TrimPrefix(mediaType, "image/")
	if format == "" || format == mediaType {
		format = "png"
	}
	return g.generate(ctx, config, genai.ImageData(format, image), genai.Text(config.Prompt))
}

func (g *Gemini) generate(ctx context.Context, config providers.Config, parts ...genai.Part) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY not set: %w", providers.ErrMissingCredential)
	}

	opts := append([]option.ClientOption{option.WithAPIKey(g.apiKey)}, g.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(config.Model)
	model.SetTemperature(float32(config.Temperature))
	if config.TopP > 0 {
		model.SetTopP(float32(config.TopP))
	}
	if config.TopK > 0 {
		model.SetTopK(int32(config.TopK))
	}
	if config.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(config.MaxOutputTokens))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	if txt, ok := candidate.Content.Parts[0].(genai.Text); ok {
		return string(txt), nil
	}

	return "", fmt.Errorf("unexpected response format from Gemini")
}
