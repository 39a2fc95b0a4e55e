package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"p1","image_path":"img/p1.png","expected_text":"Sky is blue.","language":"eng"}

{"image_path":"/abs/p2.png","expected_text":"Grass is green."}
{"id":"p3","image_path":"p3.png","expected_text":"Snow is white."}
`), 0o644))

	loader := NewLoader(path)
	records, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "p1", records[0].ID)
	assert.Equal(t, filepath.Join(loader.Dir(), "img/p1.png"), records[0].ResolveImagePath(loader.Dir()))
	assert.Equal(t, "eng", records[0].LanguageOr("deu"))

	assert.Equal(t, "line-3", records[1].ID)
	assert.Equal(t, "/abs/p2.png", records[1].ResolveImagePath(loader.Dir()))
	assert.Equal(t, "deu", records[1].LanguageOr("deu"))

	sample, err := loader.LoadSample(2)
	require.NoError(t, err)
	assert.Len(t, sample, 2)
}

func TestLoadJSONLMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"id\":\"p1\"}\n{oops\n"), 0o644))

	_, err := NewLoader(path).Load()
	assert.ErrorContains(t, err, "line 2")
}

func TestLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.parquet")
	rows := make([]OCRRecord, 0, 300)
	for i := 0; i < 300; i++ {
		rows = append(rows, OCRRecord{ImagePath: "p.png", ExpectedText: "text"})
	}
	rows[0].ID = "first"
	rows[0].Language = "fra"
	require.NoError(t, parquet.WriteFile(path, rows))

	loader := NewLoader(path)
	records, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, records, 300)
	assert.Equal(t, "first", records[0].ID)
	assert.Equal(t, "fra", records[0].Language)
	assert.Equal(t, "row-2", records[1].ID)
	assert.Equal(t, "row-300", records[299].ID)

	sample, err := loader.LoadSample(130)
	require.NoError(t, err)
	assert.Len(t, sample, 130)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := NewLoader("pages.csv").Load()
	assert.ErrorContains(t, err, "unsupported file format")
}
