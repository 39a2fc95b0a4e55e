package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runeWidth measures one unit per rune
func runeWidth(s string) float64 { return float64(utf8.RuneCountInString(s)) }

// narrow is a layout ten units wide and three lines tall
var narrow = Layout{PageWidth: 12, PageHeight: 5, Margin: 1, LineHeight: 1}

func allLines(pages []Page) []string {
	var out []string
	for _, p := range pages {
		out = append(out, p.Lines...)
	}
	return out
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a\nb\nc\n    d", Normalize("a\r\nb\rc\n\td"))
}

func TestPaginateWrapsGreedily(t *testing.T) {
	pages := Paginate("the quick brown fox jumps", narrow, runeWidth)
	assert.Equal(t, []string{"the quick", "brown fox", "jumps"}, allLines(pages))
	assert.Len(t, pages, 1)
}

func TestPaginateKeepsBlankLines(t *testing.T) {
	lines := allLines(Paginate("one\n\ntwo\r\n", narrow, runeWidth))
	assert.Equal(t, []string{"one", "", "two", ""}, lines)
}

func TestPaginateHardSplitsLongWords(t *testing.T) {
	lines := allLines(Paginate("abcdefghijklmnopqrstuvwxyz end", narrow, runeWidth))
	assert.Equal(t, []string{"abcdefghij", "klmnopqrst", "uvwxyz end"}, lines)
	for _, l := range lines {
		assert.LessOrEqual(t, runeWidth(l), narrow.TextWidth())
	}
}

func TestPaginateSplitsPages(t *testing.T) {
	pages := Paginate("1\n2\n3\n4\n5\n6\n7", narrow, runeWidth)
	require.Len(t, pages, 3)
	assert.Equal(t, []string{"1", "2", "3"}, pages[0].Lines)
	assert.Equal(t, []string{"7"}, pages[2].Lines)
}

func TestPaginateEmpty(t *testing.T) {
	pages := Paginate("", narrow, runeWidth)
	require.Len(t, pages, 1)
	assert.Equal(t, []string{""}, pages[0].Lines)
}

func TestLayout(t *testing.T) {
	assert.Equal(t, 170.0, DefaultLayout.TextWidth())
	assert.Equal(t, 36, DefaultLayout.LinesPerPage())
}

func longText(n int) string {
	words := []string{"Photosynthesis", "converts", "light", "energy", "into", "chemical", "energy,", "stored", "in", "glucose."}
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(words[i%len(words)])
	}
	return b.String()[:n]
}

func TestPaginatedDocumentLongText(t *testing.T) {
	text := longText(10000)
	require.Len(t, text, 10000)

	pdf, err := render(text, DefaultLayout)
	require.NoError(t, err)
	assert.Greater(t, pdf.PageCount(), 1)

	measure := func(s string) float64 { return pdf.GetStringWidth(s) }
	pages := Paginate(text, DefaultLayout, measure)
	assert.Equal(t, pdf.PageCount(), len(pages))

	lines := allLines(pages)
	assert.Equal(t, stripSpace(Normalize(text)), stripSpace(strings.Join(lines, "")))
	// no word was hard split, so each break consumed exactly one space
	assert.Equal(t, text, strings.Join(lines, " "))
	for _, l := range lines {
		assert.LessOrEqual(t, measure(l), DefaultLayout.TextWidth())
	}
}

func TestPaginatedDocumentOutput(t *testing.T) {
	text := "Line one\r\n\tIndented line\n\nCafé résumé"

	a, err := PaginatedDocument(text)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(a, []byte("%PDF-")))

	b, err := PaginatedDocument(text)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPaginatedDocumentKeepsNonLatinText(t *testing.T) {
	text := "фотосинтез 光合作用 — “ok” Ελληνικά"

	pdf, err := render(text, DefaultLayout)
	require.NoError(t, err)

	measure := func(s string) float64 { return pdf.GetStringWidth(s) }
	assert.Greater(t, measure("ф"), 0.0)
	assert.NotEqual(t, measure("фотосинтез"), measure(".........."))
	assert.Equal(t, []string{text}, allLines(Paginate(text, DefaultLayout, measure)))

	pdf.SetCompression(false)
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	// page text is written as UTF-16BE
	assert.Contains(t, buf.String(), "\x04\x44\x04\x3e\x04\x42\x04\x3e", "фото")
	assert.Contains(t, buf.String(), "\x51\x49\x54\x08", "光合")
}

func TestPaginatedDocumentOutsideBMP(t *testing.T) {
	data, err := PaginatedDocument("leaf 🌿 cell")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Equal(t, "leaf \uFFFD cell", bmpOnly("leaf 🌿 cell"))
}

func TestCoreFontLayout(t *testing.T) {
	layout := DefaultLayout
	layout.FontFamily = "Helvetica"
	layout.FontData = nil

	data, err := RenderDocument("Café résumé", layout)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestLoadFont(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Custom-Regular.ttf")
	require.NoError(t, os.WriteFile(path, dejaVuSansCondensed, 0o644))

	layout, err := LoadFont(path)
	require.NoError(t, err)
	assert.Equal(t, "Custom-Regular", layout.FontFamily)
	assert.Equal(t, DefaultLayout.FontSize, layout.FontSize)

	data, ct, err := EncodeWithLayout("фотосинтез", "pdf", layout)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", ct)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = LoadFont(filepath.Join(t.TempDir(), "missing.ttf"))
	assert.Error(t, err)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, []byte("héllo\n"), PlainText("héllo\n"))
}

func TestEncode(t *testing.T) {
	data, ct, err := Encode("Sky is blue.", "txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", ct)
	assert.Equal(t, "Sky is blue.", string(data))

	data, ct, err = Encode("Sky is blue.", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", ct)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	_, _, err = Encode("Sky is blue.", "docx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFileName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 2, 0, time.UTC)
	assert.Equal(t, "extracted-text-20240309-070502.pdf", FileName("", "pdf", ts))
	assert.Equal(t, "notes-20240309-070502.txt", FileName("notes", "txt", ts))
}

func TestMeasureMatchesGofpdf(t *testing.T) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	assert.Greater(t, pdf.GetStringWidth("MMMM"), pdf.GetStringWidth("iiii"))
}
