package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/scanstudy/internal/export"
)

// DefaultPath is read when --config is not given; a missing file is not an error
const DefaultPath = "scanstudy.yaml"

type Config struct {
	Port       int              `yaml:"port"`
	Log        LogConfig        `yaml:"log"`
	Generation GenerationConfig `yaml:"generation"`
	Gemini     ProviderConfig   `yaml:"gemini"`
	OpenAI     ProviderConfig   `yaml:"openai"`
	Ollama     ProviderConfig   `yaml:"ollama"`
	OCR        OCRConfig        `yaml:"ocr"`
	Camera     CameraConfig     `yaml:"camera"`
	Export     ExportConfig     `yaml:"export"`
	Upload     UploadConfig     `yaml:"upload"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

type GenerationConfig struct {
	Provider string `yaml:"provider"` // gemini, openai, ollama
	Model    string `yaml:"model"`
	// ServiceURL sends study requests to a remote /api/generate instead of a local provider
	ServiceURL string `yaml:"service_url"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type OCRConfig struct {
	Engine   string `yaml:"engine"` // tesseract or vision
	Language string `yaml:"language"`
	// Provider and Model select the LLM used by the vision engine
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type CameraConfig struct {
	UserURL        string `yaml:"user_url"`
	EnvironmentURL string `yaml:"environment_url"`
}

type ExportConfig struct {
	Dir      string             `yaml:"dir"`
	Prefix   string             `yaml:"prefix"`
	// FontFile is a TrueType font for PDF exports; the bundled font has no CJK glyphs
	FontFile string             `yaml:"font_file"`
	MinIO    export.MinIOConfig `yaml:"minio"`
}

type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Port: 8888,
		Log:  LogConfig{Level: "info", Format: "text"},
		Generation: GenerationConfig{
			Provider: "gemini",
		},
		Gemini: ProviderConfig{Model: "gemini-1.5-flash"},
		OpenAI: ProviderConfig{Model: "gpt-4o"},
		Ollama: ProviderConfig{BaseURL: "http://localhost:11434", Model: "llama3.1"},
		OCR: OCRConfig{
			Engine:   "vision",
			Language: "eng",
		},
		Export: ExportConfig{Dir: ".", Prefix: export.DefaultPrefix},
		Upload: UploadConfig{MaxBytes: 20 << 20},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. A missing file at DefaultPath is ignored.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("GEMINI_API_KEY", &c.Gemini.APIKey)
	str("GEMINI_MODEL", &c.Gemini.Model)
	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	str("OPENAI_MODEL", &c.OpenAI.Model)
	str("OLLAMA_URL", &c.Ollama.BaseURL)
	str("OLLAMA_MODEL", &c.Ollama.Model)
	str("GENERATION_PROVIDER", &c.Generation.Provider)
	str("GENERATION_MODEL", &c.Generation.Model)
	str("GENERATION_SERVICE_URL", &c.Generation.ServiceURL)
	str("OCR_ENGINE", &c.OCR.Engine)
	str("OCR_LANGUAGE", &c.OCR.Language)
	str("OCR_PROVIDER", &c.OCR.Provider)
	str("OCR_MODEL", &c.OCR.Model)
	str("CAMERA_USER_URL", &c.Camera.UserURL)
	str("CAMERA_ENVIRONMENT_URL", &c.Camera.EnvironmentURL)
	str("EXPORT_DIR", &c.Export.Dir)
	str("EXPORT_FONT", &c.Export.FontFile)
	str("MINIO_ENDPOINT", &c.Export.MinIO.Endpoint)
	str("MINIO_ACCESS_KEY", &c.Export.MinIO.AccessKey)
	str("MINIO_SECRET_KEY", &c.Export.MinIO.SecretKey)
	str("MINIO_BUCKET", &c.Export.MinIO.Bucket)
	str("MINIO_REGION", &c.Export.MinIO.Region)
	str("MINIO_PREFIX", &c.Export.MinIO.Prefix)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("MINIO_USE_SSL"); ok && v != "" {
		c.Export.MinIO.UseSSL = v == "true"
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	return nil
}

// ModelFor returns the model configured for a provider, preferring override
func (c *Config) ModelFor(provider, override string) string {
	if override != "" {
		return override
	}
	switch strings.ToLower(provider) {
	case "gemini":
		return c.Gemini.Model
	case "openai":
		return c.OpenAI.Model
	case "ollama":
		return c.Ollama.Model
	}
	return ""
}

// ParseLevel maps a level name to a slog.Level, defaulting to info
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger builds the process logger on w
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
