package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
)

const DefaultPrefix = "extracted-text"

// ErrUnknownFormat is returned by Encode for anything but "txt" and "pdf"
var ErrUnknownFormat = errors.New("unsupported export format (must be 'txt' or 'pdf')")

// creationDate is stamped into every PDF so identical text gives identical bytes
var creationDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// PlainText returns the text as UTF-8 bytes, unchanged
func PlainText(text string) []byte {
	return []byte(text)
}

// FileName builds "<prefix>-YYYYMMDD-HHMMSS.<ext>"
func FileName(prefix, ext string, t time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s-%s.%s", prefix, t.Format("20060102-150405"), ext)
}

// Encode renders text in format and returns the bytes with their content type
func Encode(text, format string) ([]byte, string, error) {
	return EncodeWithLayout(text, format, DefaultLayout)
}

// EncodeWithLayout is Encode with the PDF page layout and font chosen by the caller
func EncodeWithLayout(text, format string, layout Layout) ([]byte, string, error) {
	switch format {
	case "txt":
		return PlainText(text), "text/plain; charset=utf-8", nil
	case "pdf":
		data, err := RenderDocument(text, layout)
		if err != nil {
			return nil, "", err
		}
		return data, "application/pdf", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// PaginatedDocument renders text as an A4 PDF using DefaultLayout
func PaginatedDocument(text string) ([]byte, error) {
	return RenderDocument(text, DefaultLayout)
}

// RenderDocument renders text as a PDF with the given layout
func RenderDocument(text string, layout Layout) ([]byte, error) {
	pdf, err := render(text, layout)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func render(text string, layout Layout) (*gofpdf.Fpdf, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(creationDate)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Extracted text", true)
	pdf.SetCreator("scanstudy", true)
	pdf.SetMargins(layout.Margin, layout.Margin, layout.Margin)
	pdf.SetAutoPageBreak(false, layout.Margin)

	encode := bmpOnly
	if layout.FontData != nil {
		pdf.AddUTF8FontFromBytes(layout.FontFamily, "", layout.FontData)
	} else {
		// core fonts are cp1252; characters outside it render as '.'
		encode = pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.SetFont(layout.FontFamily, "", layout.FontSize)

	measure := func(s string) float64 {
		return pdf.GetStringWidth(encode(s))
	}

	for _, page := range Paginate(text, layout, measure) {
		pdf.AddPage()
		y := layout.Margin
		for _, line := range page.Lines {
			pdf.SetXY(layout.Margin, y)
			pdf.CellFormat(layout.TextWidth(), layout.LineHeight, encode(line), "", 0, "L", false, 0, "")
			y += layout.LineHeight
		}
	}

	if pdf.Err() {
		return nil, fmt.Errorf("render pdf: %w", pdf.Error())
	}
	return pdf, nil
}

// bmpOnly replaces runes outside the Basic Multilingual Plane, which gofpdf
// cannot encode, with U+FFFD
func bmpOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return utf8.RuneError
		}
		return r
	}, s)
}
