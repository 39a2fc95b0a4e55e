package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// EvaluationResult is the outcome for a single dataset record
type EvaluationResult struct {
	ID             string
	Language       string
	Expected       string
	Recognized     string
	Score          *Score
	Folded         *Score
	ProcessingTime time.Duration
	Error          string // set when recognition failed
}

// AggregateResults summarises an evaluation run
type AggregateResults struct {
	TotalRecords int
	SuccessCount int
	FailureCount int
	ExactMatches int

	MeanCER       float64
	MedianCER     float64
	MeanWER       float64
	MedianWER     float64
	MeanFoldedCER float64

	// CorpusCER weights every character equally instead of every page
	CorpusCER float64

	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration

	Results []EvaluationResult

	EvaluationDate time.Time
	Engine         string
	Model          string
}

// AggregateEvaluationResults computes summary statistics over results
func AggregateEvaluationResults(results []EvaluationResult, engine, model string) *AggregateResults {
	agg := &AggregateResults{
		TotalRecords:   len(results),
		Results:        results,
		EvaluationDate: time.Now(),
		Engine:         engine,
		Model:          model,
	}

	var (
		cers, wers, folded []float64
		charErrors, chars  int
		successDuration    time.Duration
	)

	for _, r := range results {
		agg.TotalProcessingTime += r.ProcessingTime

		if r.Error != "" || r.Score == nil {
			agg.FailureCount++
			continue
		}

		agg.SuccessCount++
		successDuration += r.ProcessingTime

		cers = append(cers, r.Score.CER)
		wers = append(wers, r.Score.WER)
		if r.Folded != nil {
			folded = append(folded, r.Folded.CER)
		}
		charErrors += r.Score.CharDistance
		chars += r.Score.ReferenceChars
		if r.Score.Exact {
			agg.ExactMatches++
		}
	}

	if agg.SuccessCount > 0 {
		agg.MeanCER = mean(cers)
		agg.MedianCER = median(cers)
		agg.MeanWER = mean(wers)
		agg.MedianWER = median(wers)
		agg.MeanFoldedCER = mean(folded)
		agg.CorpusCER = rate(charErrors, chars)
		agg.AverageProcessingTime = successDuration / time.Duration(agg.SuccessCount)
	}

	return agg
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// WriteSummary prints a human-readable summary of the run
func (a *AggregateResults) WriteSummary(w io.Writer) {
	line := strings.Repeat("=", 60)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "OCR EVALUATION SUMMARY")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Engine: %s\n", a.Engine)
	if a.Model != "" {
		fmt.Fprintf(w, "Model: %s\n", a.Model)
	}
	fmt.Fprintf(w, "Records: %d (succeeded %d, failed %d)\n", a.TotalRecords, a.SuccessCount, a.FailureCount)
	if a.SuccessCount == 0 {
		fmt.Fprintln(w, line)
		return
	}
	fmt.Fprintf(w, "Exact matches: %d (%.1f%%)\n", a.ExactMatches, float64(a.ExactMatches)/float64(a.SuccessCount)*100)
	fmt.Fprintf(w, "CER: mean %.2f%%, median %.2f%%, corpus %.2f%%\n", a.MeanCER*100, a.MedianCER*100, a.CorpusCER*100)
	fmt.Fprintf(w, "WER: mean %.2f%%, median %.2f%%\n", a.MeanWER*100, a.MedianWER*100)
	fmt.Fprintf(w, "Folded CER: mean %.2f%%\n", a.MeanFoldedCER*100)
	fmt.Fprintf(w, "Average time: %s (total %s)\n", a.AverageProcessingTime.Round(time.Millisecond), a.TotalProcessingTime.Round(time.Millisecond))
	fmt.Fprintln(w, line)
}
