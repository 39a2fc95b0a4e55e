//go:build !ocr

package ocr

import "context"

// TesseractEngine is unavailable in this build; Recognize returns ErrOCRNotEnabled
type TesseractEngine struct{}

func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{}
}

func (e *TesseractEngine) Recognize(ctx context.Context, image []byte, language string, progress ProgressFunc) (string, error) {
	return "", ErrOCRNotEnabled
}
