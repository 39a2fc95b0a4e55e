package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/scanstudy/internal/capture"
	"github.com/lehigh-university-libraries/scanstudy/internal/export"
	"github.com/lehigh-university-libraries/scanstudy/internal/gemini"
	"github.com/lehigh-university-libraries/scanstudy/internal/genclient"
	"github.com/lehigh-university-libraries/scanstudy/internal/generation"
	"github.com/lehigh-university-libraries/scanstudy/internal/ocr"
	"github.com/lehigh-university-libraries/scanstudy/internal/ollama"
	"github.com/lehigh-university-libraries/scanstudy/internal/openai"
	"github.com/lehigh-university-libraries/scanstudy/internal/providers"
	"github.com/lehigh-university-libraries/scanstudy/internal/study"
)

// llm is what every bundled provider implements
type llm interface {
	providers.Provider
	providers.VisionProvider
}

func (a *app) provider(name string) (llm, error) {
	switch strings.ToLower(name) {
	case "gemini":
		return gemini.New(a.cfg.Gemini.APIKey), nil
	case "openai":
		p := openai.New(a.cfg.OpenAI.APIKey)
		if a.cfg.OpenAI.BaseURL != "" {
			p = p.WithBaseURL(a.cfg.OpenAI.BaseURL)
		}
		return p, nil
	case "ollama":
		return ollama.New(a.cfg.Ollama.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (must be gemini, openai or ollama)", name)
	}
}

// generator returns the study session backend: a remote generation service
// when serviceURL is set, the configured provider otherwise
func (a *app) generator(serviceURL string) (study.Generator, error) {
	if serviceURL == "" {
		serviceURL = a.cfg.Generation.ServiceURL
	}
	if serviceURL != "" {
		slog.Debug("Using remote generation service", "url", serviceURL)
		return genclient.New(serviceURL), nil
	}
	return a.generationService()
}

func (a *app) generationService() (*generation.Service, error) {
	name := a.cfg.Generation.Provider
	p, err := a.provider(name)
	if err != nil {
		return nil, err
	}
	model := a.cfg.ModelFor(name, a.cfg.Generation.Model)
	slog.Debug("Using generation provider", "provider", providers.NameOf(p), "model", model)
	return generation.NewService(p, model), nil
}

// ocrEngine builds the recognition engine. Empty arguments fall back to the
// OCR section of the config, then to the generation provider.
func (a *app) ocrEngine(engine, provider, model string) (ocr.Engine, error) {
	if engine == "" {
		engine = a.cfg.OCR.Engine
	}
	switch strings.ToLower(engine) {
	case "tesseract":
		return ocr.NewTesseractEngine(), nil
	case "vision":
		if provider == "" {
			provider = a.cfg.OCR.Provider
		}
		if provider == "" {
			provider = a.cfg.Generation.Provider
		}
		if model == "" {
			model = a.cfg.OCR.Model
		}
		p, err := a.provider(provider)
		if err != nil {
			return nil, err
		}
		return ocr.NewVisionEngine(p, a.cfg.ModelFor(provider, model)), nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q (must be tesseract or vision)", engine)
	}
}

func (a *app) ocrDefaults() (engine, provider, model, language string) {
	provider = a.cfg.OCR.Provider
	if provider == "" {
		provider = a.cfg.Generation.Provider
	}
	return a.cfg.OCR.Engine, provider, a.cfg.OCR.Model, a.cfg.OCR.Language
}

// camera returns nil when no snapshot endpoints are configured
func (a *app) camera() *capture.Camera {
	c := a.cfg.Camera
	if c.UserURL == "" && c.EnvironmentURL == "" {
		return nil
	}
	return capture.NewCamera(capture.NewSnapshotDevice(c.UserURL, c.EnvironmentURL))
}

// layout uses export.font_file when set so PDFs can carry scripts the bundled font lacks
func (a *app) layout() (export.Layout, error) {
	if a.cfg.Export.FontFile == "" {
		return export.DefaultLayout, nil
	}
	return export.LoadFont(a.cfg.Export.FontFile)
}

// sink writes exports to MinIO when an endpoint is configured, else to dir
func (a *app) sink(ctx context.Context, dir string) (export.Sink, error) {
	if a.cfg.Export.MinIO.Endpoint != "" {
		return export.NewMinIOSink(ctx, a.cfg.Export.MinIO)
	}
	if dir == "" {
		dir = a.cfg.Export.Dir
	}
	return export.DirSink{Dir: dir}, nil
}
