package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama transcribes any image as "Sky is blue." and answers text prompts by action
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prompt string   `json:"prompt"`
			Images []string `json:"images"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		response := "A short summary."
		switch {
		case len(body.Images) > 0:
			response = "Sky is blue."
		case strings.Contains(body.Prompt, "QUESTION:"):
			response = "Blue."
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": response})
	}))
}

func setup(t *testing.T, serverURL string) string {
	t.Helper()
	color.NoColor = true
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{"GENERATION_PROVIDER", "GENERATION_SERVICE_URL", "OLLAMA_URL", "OCR_ENGINE", "OCR_PROVIDER", "EXPORT_DIR", "EXPORT_FONT", "MINIO_ENDPOINT", "CAMERA_USER_URL", "CAMERA_ENVIRONMENT_URL"} {
		t.Setenv(k, "")
	}

	cfg := `generation:
  provider: ollama
ollama:
  base_url: ` + serverURL + `
ocr:
  engine: vision
log:
  level: error
`
	path := filepath.Join(dir, "scanstudy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerateCommand(t *testing.T) {
	srv := fakeOllama(t)
	defer srv.Close()
	cfg := setup(t, srv.URL)

	require.NoError(t, os.WriteFile("notes.txt", []byte("Sky is blue."), 0o644))

	out, err := run(t, "--config", cfg, "generate", "--action", "summarize", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "A short summary.\n", out)

	_, err = run(t, "--config", cfg, "generate", "--action", "qa", "notes.txt")
	assert.ErrorContains(t, err, "question is required")
}

func TestScanCommand(t *testing.T) {
	srv := fakeOllama(t)
	defer srv.Close()
	cfg := setup(t, srv.URL)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 4))))
	require.NoError(t, os.WriteFile("page.png", buf.Bytes(), 0o644))

	outDir := filepath.Join(t.TempDir(), "exports")
	out, err := run(t, "--config", cfg, "scan", "page.png",
		"--rotate", "90",
		"--ask", "What color is the sky?",
		"--feature", "summarize",
		"--export", "txt",
		"--out", outDir)
	require.NoError(t, err)

	assert.Contains(t, out, "Extracted text\nSky is blue.")
	assert.Contains(t, out, "Q: What color is the sky?\nBlue.")
	assert.Contains(t, out, "Summary\nA short summary.")

	files, err := filepath.Glob(filepath.Join(outDir, "extracted-text-*.txt"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "Sky is blue.", string(data))
}

func TestScanCommandValidation(t *testing.T) {
	srv := fakeOllama(t)
	defer srv.Close()
	cfg := setup(t, srv.URL)

	_, err := run(t, "--config", cfg, "scan")
	assert.ErrorContains(t, err, "image path or --camera")

	_, err = run(t, "--config", cfg, "scan", "page.png", "--rotate", "45")
	assert.ErrorContains(t, err, "multiple of 90")

	_, err = run(t, "--config", cfg, "scan", "--camera", "user")
	assert.ErrorContains(t, err, "no camera configured")
}
