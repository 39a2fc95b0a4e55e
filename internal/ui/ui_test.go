package ui

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestPrinter(t *testing.T) {
	color.NoColor = true

	var out, errOut bytes.Buffer
	p := &Printer{Out: &out, Err: &errOut}

	p.Success("recognized %d characters", 42)
	p.Info("language %s", "eng")
	p.Warning("camera %s unavailable", "user")
	p.Error("failed: %v", "boom")
	p.Section("Summary", "Sky is blue.\n")

	assert.Equal(t, "✓ recognized 42 characters\nℹ language eng\n⚠ camera user unavailable\n\nSummary\nSky is blue.\n", out.String())
	assert.Equal(t, "✗ failed: boom\n", errOut.String())
}

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, "Recognizing")
	bar.Set(40)
	bar.Set(100)
	bar.Finish()
	assert.Contains(t, buf.String(), "Recognizing")
}
