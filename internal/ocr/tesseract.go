//go:build ocr

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine runs the local Tesseract library. Requires the "ocr" build
// tag and tesseract with the relevant language data installed.
type TesseractEngine struct {
	PageSegMode gosseract.PageSegMode
}

func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{PageSegMode: gosseract.PSM_AUTO}
}

func (e *TesseractEngine) Recognize(ctx context.Context, image []byte, language string, progress ProgressFunc) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	closeClient := true
	defer func() {
		if closeClient {
			client.Close()
		}
	}()

	if err := client.SetLanguage(language); err != nil {
		return "", fmt.Errorf("failed to set OCR language '%s': %w", language, err)
	}
	if err := client.SetPageSegMode(e.PageSegMode); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("failed to set OCR image data: %w", err)
	}
	progress(0.1)

	// tesseract has no cancellation hook; a cancelled run finishes in the
	// background and closes its own client
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	closeClient = false
	go func() {
		defer client.Close()
		text, err := client.Text()
		done <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("OCR text extraction failed: %w", r.err)
		}
		progress(1)
		return r.text, nil
	}
}
