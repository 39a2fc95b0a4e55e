package providers

import (
	"context"
	"errors"
)

// ErrMissingCredential is returned when a provider has no API key configured
var ErrMissingCredential = errors.New("provider credential not configured")

// Config represents the configuration for an LLM call
type Config struct {
	Model           string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
	Prompt          string
}

// Provider defines the interface for an LLM provider
type Provider interface {
	ExtractText(ctx context.Context, config Config) (string, error)
}

// VisionProvider is a provider that can read text out of an image
type VisionProvider interface {
	ExtractImageText(ctx context.Context, config Config, image []byte, mediaType string) (string, error)
}

// Named is implemented by providers that can report which backend they talk to
type Named interface {
	Name() string
}

// NameOf returns the provider's name, or "unknown"
func NameOf(p any) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return "unknown"
}
