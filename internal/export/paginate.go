package export

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Layout describes the printable page in millimetres. FontData holds a
// TrueType font; without it FontFamily must name a core PDF font, which only
// covers cp1252.
type Layout struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64
	FontFamily string
	FontData   []byte
	FontSize   float64
	LineHeight float64
}

//go:embed fonts/DejaVuSansCondensed.ttf
var dejaVuSansCondensed []byte

// DefaultLayout is A4 portrait with 20mm margins and 12pt DejaVu Sans Condensed
var DefaultLayout = Layout{
	PageWidth:  210,
	PageHeight: 297,
	Margin:     20,
	FontFamily: "DejaVuSansCondensed",
	FontData:   dejaVuSansCondensed,
	FontSize:   12,
	LineHeight: 7,
}

// LoadFont returns DefaultLayout with the TrueType font at path, for scripts
// the bundled font lacks (e.g. CJK)
func LoadFont(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to read font: %w", err)
	}
	if len(data) == 0 {
		return Layout{}, fmt.Errorf("font file %s is empty", path)
	}
	layout := DefaultLayout
	layout.FontFamily = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	layout.FontData = data
	return layout, nil
}

// TextWidth is the usable line width
func (l Layout) TextWidth() float64 {
	return l.PageWidth - 2*l.Margin
}

// LinesPerPage is how many lines fit between the top and bottom margins
func (l Layout) LinesPerPage() int {
	n := int(math.Floor((l.PageHeight - 2*l.Margin) / l.LineHeight))
	if n < 1 {
		return 1
	}
	return n
}

// Page is one page of wrapped lines
type Page struct {
	Lines []string
}

// Normalize converts line endings to \n and tabs to four spaces
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.ReplaceAll(text, "\t", "    ")
}

// Paginate wraps text to the layout's line width and splits it into pages.
// Paragraphs break on \n, lines break greedily at single spaces (the space
// at the break is dropped), words wider than a line are split by rune and
// blank lines are kept. measure returns the rendered width of a string.
func Paginate(text string, layout Layout, measure func(string) float64) []Page {
	width := layout.TextWidth()

	var lines []string
	for _, para := range strings.Split(Normalize(text), "\n") {
		lines = append(lines, wrapParagraph(para, width, measure)...)
	}

	perPage := layout.LinesPerPage()
	var pages []Page
	for start := 0; start < len(lines); start += perPage {
		end := min(start+perPage, len(lines))
		pages = append(pages, Page{Lines: lines[start:end]})
	}
	if len(pages) == 0 {
		pages = []Page{{}}
	}
	return pages
}

func wrapParagraph(para string, width float64, measure func(string) float64) []string {
	if para == "" {
		return []string{""}
	}

	var lines []string
	current := ""
	started := false

	for _, word := range strings.Split(para, " ") {
		if !started {
			current = word
			started = true
		} else if candidate := current + " " + word; measure(candidate) <= width {
			current = candidate
		} else {
			lines = append(lines, current)
			current = word
		}

		for current != "" && measure(current) > width {
			head, tail := splitToWidth(current, width, measure)
			lines = append(lines, head)
			current = tail
		}
	}
	return append(lines, current)
}

// splitToWidth returns the longest rune prefix that fits (at least one rune) and the rest
func splitToWidth(s string, width float64, measure func(string) float64) (string, string) {
	runes := []rune(s)
	n := 1
	for n < len(runes) && measure(string(runes[:n+1])) <= width {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}
