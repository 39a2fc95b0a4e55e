package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/scanstudy/internal/providers"
)

// VisionEngine performs OCR by asking a multimodal LLM to transcribe the image.
// The provider gives no progress, so the engine reports an estimate that
// approaches 90% while the call is pending.
type VisionEngine struct {
	provider providers.VisionProvider
	model    string

	// Tick is how often progress is estimated; zero means 250ms
	Tick time.Duration
	// TimeConstant controls how fast the estimate rises; zero means 10s
	TimeConstant time.Duration
}

func NewVisionEngine(provider providers.VisionProvider, model string) *VisionEngine {
	return &VisionEngine{provider: provider, model: model}
}

func (e *VisionEngine) Recognize(ctx context.Context, image []byte, language string, progress ProgressFunc) (string, error) {
	tick := e.Tick
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	timeConstant := e.TimeConstant
	if timeConstant <= 0 {
		timeConstant = 10 * time.Second
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		start := time.Now()
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				elapsed := time.Since(start).Seconds()
				progress(0.9 * (1 - math.Exp(-elapsed/timeConstant.Seconds())))
			}
		}
	}()

	cfg := providers.Config{
		Model:       e.model,
		Temperature: 0.0,
		Prompt:      buildOCRPrompt(language),
	}
	text, err := e.provider.ExtractImageText(ctx, cfg, image, http.DetectContentType(image))
	if err != nil {
		return "", fmt.Errorf("vision OCR via %s failed: %w", providers.NameOf(e.provider), err)
	}

	slog.Info("Extracted OCR text", "provider", providers.NameOf(e.provider), "model", e.model, "length", len(text))
	return cleanTranscript(text), nil
}

func buildOCRPrompt(language string) string {
	return fmt.Sprintf(`You are performing OCR (Optical Character Recognition) on a photographed or scanned document page.
The expected language is %q (Tesseract language code).

Your task is to extract ALL visible text from the image exactly as it appears, preserving:
- Line breaks and paragraph breaks
- Capitalization
- Punctuation
- Special characters and mathematical notation
- Reading order

INSTRUCTIONS:
1. Read the image carefully from top to bottom, left to right
2. Transcribe every piece of visible text
3. Preserve the original line breaks
4. Do not add any interpretation, commentary, or explanations
5. Do not summarize or correct the text
6. If text is partially obscured or unclear, transcribe what you can see and use [?] for illegible portions
7. If the image contains no text at all, respond with an empty message

OUTPUT FORMAT:
Provide ONLY the extracted text. Do not include phrases like "Here is the text:" or "The image contains:".
Start immediately with the transcribed text.`, language)
}

// cleanTranscript strips a surrounding markdown fence some models add
func cleanTranscript(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") && strings.HasSuffix(t, "```") && len(t) >= 6 {
		t = strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```")
		if nl := strings.IndexByte(t, '\n'); nl >= 0 && !strings.Contains(t[:nl], " ") {
			t = t[nl+1:]
		}
		return strings.TrimSpace(t)
	}
	return text
}
