package dataset

import "path/filepath"

// OCRRecord is one page image with its reference transcription
type OCRRecord struct {
	ID           string `json:"id" parquet:"id"`
	ImagePath    string `json:"image_path" parquet:"image_path"` // relative paths resolve against the dataset file
	ExpectedText string `json:"expected_text" parquet:"expected_text"`
	Language     string `json:"language,omitempty" parquet:"language,optional"` // tesseract code, e.g. "eng"
}

// ResolveImagePath returns the image path, joined to base when it is relative
func (r *OCRRecord) ResolveImagePath(base string) string {
	if r.ImagePath == "" || filepath.IsAbs(r.ImagePath) {
		return r.ImagePath
	}
	return filepath.Join(base, r.ImagePath)
}

// LanguageOr returns the record language, or fallback when none is set
func (r *OCRRecord) LanguageOr(fallback string) string {
	if r.Language != "" {
		return r.Language
	}
	return fallback
}
