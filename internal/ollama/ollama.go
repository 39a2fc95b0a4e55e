package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/scanstudy/internal/providers"
)

const DefaultURL = "http://localhost:11434"

// Ollama is a provider for a local Ollama server
type Ollama struct {
	url    string
	client *http.Client
}

// New returns a new Ollama provider; an empty url uses DefaultURL
func New(url string) *Ollama {
	if url == "" {
		url = DefaultURL
	}
	return &Ollama{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{},
	}
}

func (o *Ollama) Name() string { return "ollama" }

// ExtractText generates text from the given prompt using Ollama
func (o *Ollama) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	return o.generate(ctx, config, nil)
}

// ExtractImageText runs the prompt against a multimodal model with the image attached
func (o *Ollama) ExtractImageText(ctx context.Context, config providers.Config, image []byte, mediaType string) (string, error) {
	return o.generate(ctx, config, []string{base64.StdEncoding.EncodeToString(image)})
}

func (o *Ollama) generate(ctx context.Context, config providers.Config, images []string) (string, error) {
	options := map[string]interface{}{
		"temperature": config.Temperature,
	}
	if config.TopP > 0 {
		options["top_p"] = config.TopP
	}
	if config.TopK > 0 {
		options["top_k"] = config.TopK
	}
	if config.MaxOutputTokens > 0 {
		options["num_predict"] = config.MaxOutputTokens
	}

	body := map[string]interface{}{
		"model":   config.Model,
		"prompt":  config.Prompt,
		"stream":  false,
		"options": options,
	}
	if len(images) > 0 {
		body["images"] = images
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+"/api/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return response.Response, nil
}
