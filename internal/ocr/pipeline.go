package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/scanstudy/internal/models"
)

const DefaultLanguage = "eng"

// ErrOCRNotEnabled is returned by the tesseract engine in builds without the "ocr" tag
var ErrOCRNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags ocr")

// ProgressFunc receives engine progress as a fraction in [0, 1]
type ProgressFunc func(fraction float64)

// Engine turns image bytes into text. Implementations may report progress
// from any goroutine, including after Recognize has returned.
type Engine interface {
	Recognize(ctx context.Context, image []byte, language string, progress ProgressFunc) (string, error)
}

// RecognitionFailure is the single error type returned by Pipeline.Recognize
type RecognitionFailure struct {
	Reason string
	Err    error
}

func (e *RecognitionFailure) Error() string {
	if e.Err == nil {
		return "text recognition failed: " + e.Reason
	}
	return fmt.Sprintf("text recognition failed: %s: %v", e.Reason, e.Err)
}

func (e *RecognitionFailure) Unwrap() error { return e.Err }

var supportedFormats = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/webp": true,
}

// Pipeline runs an engine over finalized images and normalizes its progress
// reports into a monotonic integer percentage.
type Pipeline struct {
	engine   Engine
	language string
}

func NewPipeline(engine Engine, defaultLanguage string) *Pipeline {
	if defaultLanguage == "" {
		defaultLanguage = DefaultLanguage
	}
	return &Pipeline{engine: engine, language: defaultLanguage}
}

// Language is the language used when Recognize is called without one
func (p *Pipeline) Language() string { return p.language }

// Recognize extracts text from img. onProgress, when set, is called with 0
// first and then with strictly increasing percentages, never after Recognize
// returns. The image bytes are released once the engine has them.
func (p *Pipeline) Recognize(ctx context.Context, img *models.FinalizedImage, language string, onProgress func(percent int)) (string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", &RecognitionFailure{Reason: "empty image"}
	}
	if img.MediaType != "" && !supportedFormats[img.MediaType] {
		return "", &RecognitionFailure{Reason: fmt.Sprintf("unsupported image format %q", img.MediaType)}
	}
	if language == "" {
		language = p.language
	}

	data := img.Data
	img.Data = nil

	tracker := &progressTracker{emit: onProgress, last: -1}
	tracker.report(0)
	defer tracker.finish()

	start := time.Now()
	text, err := p.engine.Recognize(ctx, data, language, tracker.fraction)
	if err != nil {
		slog.Warn("Recognition failed", "language", language, "duration", time.Since(start), "err", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", &RecognitionFailure{Reason: "cancelled", Err: ctxErr}
		}
		return "", &RecognitionFailure{Reason: "engine error", Err: err}
	}

	if strings.TrimSpace(text) == "" {
		return "", &RecognitionFailure{Reason: "no text recognized"}
	}

	tracker.report(100)
	slog.Info("Recognized text", "language", language, "chars", len(text), "duration", time.Since(start))
	return text, nil
}

type progressTracker struct {
	mu   sync.Mutex
	emit func(int)
	last int
	done bool
}

func (t *progressTracker) fraction(f float64) {
	if math.IsNaN(f) {
		return
	}
	t.report(int(math.Floor(f * 100)))
}

func (t *progressTracker) report(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || pct <= t.last {
		return
	}
	t.last = pct
	if t.emit != nil {
		t.emit(pct)
	}
}

func (t *progressTracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
}
