package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/scanstudy/internal/models"
	"github.com/lehigh-university-libraries/scanstudy/internal/providers"
)

// Sampling parameters used for every generation call
const (
	Temperature     = 0.7
	TopP            = 0.95
	TopK            = 40
	MaxOutputTokens = 2048
)

var (
	ErrMissingText       = errors.New("text is required")
	ErrMissingQuestion   = errors.New("question is required for qa")
	ErrUnknownAction     = errors.New("unknown action")
	ErrEmptyResult       = errors.New("generation returned no content")
	ErrMissingCredential = providers.ErrMissingCredential
)

// Request is the body accepted by the generation endpoint
type Request struct {
	Text     string        `json:"text"`
	Action   models.Action `json:"action"`
	Question string        `json:"question,omitempty"`
}

// Response is the body returned by the generation endpoint; exactly one field is set
type Response struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Validate checks the request before any provider call is made
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrMissingText
	}
	if !r.Action.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, r.Action)
	}
	if r.Action == models.ActionQA && strings.TrimSpace(r.Question) == "" {
		return ErrMissingQuestion
	}
	return nil
}

// Service turns generation requests into provider calls
type Service struct {
	provider providers.Provider
	model    string
}

// NewService returns a service backed by provider. A nil provider makes
// every call fail with ErrMissingCredential.
func NewService(provider providers.Provider, model string) *Service {
	return &Service{provider: provider, model: model}
}

func (s *Service) Model() string { return s.model }

// Generate validates req, prompts the provider once and returns its text verbatim
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if s.provider == nil {
		return "", ErrMissingCredential
	}

	prompt, err := BuildPrompt(req.Action, req.Text, req.Question)
	if err != nil {
		return "", err
	}

	start := time.Now()
	result, err := s.provider.ExtractText(ctx, providers.Config{
		Model:           s.model,
		Temperature:     Temperature,
		TopP:            TopP,
		TopK:            TopK,
		MaxOutputTokens: MaxOutputTokens,
		Prompt:          prompt,
	})
	if err != nil {
		slog.Error("Generation failed", "action", req.Action, "provider", providers.NameOf(s.provider), "err", err)
		if errors.Is(err, providers.ErrMissingCredential) {
			return "", err
		}
		return "", fmt.Errorf("generation provider failed: %w", err)
	}

	if strings.TrimSpace(result) == "" {
		return "", ErrEmptyResult
	}

	slog.Info("Generated content",
		"action", req.Action,
		"provider", providers.NameOf(s.provider),
		"model", s.model,
		"chars", len(result),
		"duration", time.Since(start))
	return result, nil
}
