package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"café", "cafe", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, levenshtein([]rune(tt.a), []rune(tt.b)))
		})
	}
}

func TestCompareText(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		actual   string
		cer      float64
		wer      float64
		exact    bool
	}{
		{"identical", "Sky is blue.", "Sky is blue.", 0, 0, true},
		{"whitespace ignored", "Sky is\nblue.", "  Sky  is blue.\n", 0, 0, true},
		{"one substitution", "Sky is blue.", "Sky is bluo.", 1.0 / 12, 1.0 / 3, false},
		{"missing word", "Sky is blue.", "Sky blue.", 3.0 / 12, 1.0 / 3, false},
		{"both empty", "", "", 0, 0, true},
		{"empty reference", "", "noise", 1, 1, false},
		{"nothing recognized", "Sky is blue.", "", 1, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := CompareText(tt.expected, tt.actual)
			assert.InDelta(t, tt.cer, s.CER, 1e-9)
			assert.InDelta(t, tt.wer, s.WER, 1e-9)
			assert.Equal(t, tt.exact, s.Exact)
		})
	}
}

func TestCompareFolded(t *testing.T) {
	s := CompareFolded("The Sky, is blue!", "the sky is blue")
	assert.True(t, s.Exact)
	assert.Zero(t, s.CER)

	assert.False(t, CompareText("The Sky, is blue!", "the sky is blue").Exact)
}

func TestAggregateEvaluationResults(t *testing.T) {
	perfect := CompareText("abcd", "abcd")
	half := CompareText("abcd", "abxx")
	results := []EvaluationResult{
		{ID: "a", Score: &perfect, Folded: &perfect, ProcessingTime: time.Second},
		{ID: "b", Score: &half, Folded: &half, ProcessingTime: 3 * time.Second},
		{ID: "c", Error: "no text recognized", ProcessingTime: 2 * time.Second},
	}

	agg := AggregateEvaluationResults(results, "tesseract", "")
	assert.Equal(t, 3, agg.TotalRecords)
	assert.Equal(t, 2, agg.SuccessCount)
	assert.Equal(t, 1, agg.FailureCount)
	assert.Equal(t, 1, agg.ExactMatches)
	assert.InDelta(t, 0.25, agg.MeanCER, 1e-9)
	assert.InDelta(t, 0.25, agg.MedianCER, 1e-9)
	assert.InDelta(t, 0.25, agg.CorpusCER, 1e-9)
	assert.InDelta(t, 0.5, agg.MeanWER, 1e-9)
	assert.Equal(t, 2*time.Second, agg.AverageProcessingTime)
	assert.Equal(t, 6*time.Second, agg.TotalProcessingTime)

	var buf bytes.Buffer
	agg.WriteSummary(&buf)
	require.Contains(t, buf.String(), "Engine: tesseract")
	assert.Contains(t, buf.String(), "CER: mean 25.00%")
	assert.NotContains(t, buf.String(), "Model:")
}

func TestAggregateAllFailed(t *testing.T) {
	agg := AggregateEvaluationResults([]EvaluationResult{{ID: "a", Error: "boom"}}, "vision", "gpt-4o")
	assert.Equal(t, 1, agg.FailureCount)
	assert.Zero(t, agg.MeanCER)

	var buf bytes.Buffer
	agg.WriteSummary(&buf)
	assert.Contains(t, buf.String(), "succeeded 0, failed 1")
}
