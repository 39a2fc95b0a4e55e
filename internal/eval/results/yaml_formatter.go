package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/scanstudy/internal/eval/metrics"
)

// EvalConfig is the configuration section of the eval YAML
type EvalConfig struct {
	Engine      string `yaml:"engine"`
	Model       string `yaml:"model,omitempty"`
	Language    string `yaml:"language"`
	DatasetPath string `yaml:"datasetpath"`
	SampleSize  int    `yaml:"samplesize"`
	Timestamp   string `yaml:"timestamp"`
}

type EvalSummary struct {
	Succeeded     int     `yaml:"succeeded"`
	Failed        int     `yaml:"failed"`
	ExactMatches  int     `yaml:"exactmatches"`
	MeanCER       float64 `yaml:"meancer"`
	MedianCER     float64 `yaml:"mediancer"`
	CorpusCER     float64 `yaml:"corpuscer"`
	MeanWER       float64 `yaml:"meanwer"`
	MeanFoldedCER float64 `yaml:"meanfoldedcer"`
}

// EvalResult is a single record in the eval YAML
type EvalResult struct {
	Identifier string         `yaml:"identifier"`
	Language   string         `yaml:"language,omitempty"`
	Recognized string         `yaml:"recognized,omitempty"`
	Expected   string         `yaml:"expected"`
	Score      *metrics.Score `yaml:"score,omitempty"`
	Error      string         `yaml:"error,omitempty"`
	DurationMS int64          `yaml:"durationms"`
}

// EvalSpec is the complete file written for one run
type EvalSpec struct {
	Config  EvalConfig   `yaml:"config"`
	Summary EvalSummary  `yaml:"summary"`
	Results []EvalResult `yaml:"results"`
}

// Build converts an aggregate into its YAML form
func Build(cfg EvalConfig, agg *metrics.AggregateResults) EvalSpec {
	if cfg.Timestamp == "" {
		cfg.Timestamp = Timestamp(agg.EvaluationDate)
	}
	spec := EvalSpec{
		Config: cfg,
		Summary: EvalSummary{
			Succeeded:     agg.SuccessCount,
			Failed:        agg.FailureCount,
			ExactMatches:  agg.ExactMatches,
			MeanCER:       agg.MeanCER,
			MedianCER:     agg.MedianCER,
			CorpusCER:     agg.CorpusCER,
			MeanWER:       agg.MeanWER,
			MeanFoldedCER: agg.MeanFoldedCER,
		},
		Results: make([]EvalResult, 0, len(agg.Results)),
	}

	for _, r := range agg.Results {
		spec.Results = append(spec.Results, EvalResult{
			Identifier: r.ID,
			Language:   r.Language,
			Recognized: r.Recognized,
			Expected:   r.Expected,
			Score:      r.Score,
			Error:      r.Error,
			DurationMS: r.ProcessingTime.Milliseconds(),
		})
	}
	return spec
}

// SaveToYAML writes the run to dir/<engine>[-model]-<timestamp>.yaml and returns the path
func SaveToYAML(dir string, cfg EvalConfig, agg *metrics.AggregateResults) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	spec := Build(cfg, agg)

	name := spec.Config.Engine
	if spec.Config.Model != "" {
		name += "-" + strings.ReplaceAll(spec.Config.Model, "/", "_")
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", name, spec.Config.Timestamp))

	data, err := yaml.Marshal(&spec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}
	return filename, nil
}

// Timestamp formats t the way result files are named
func Timestamp(t time.Time) string {
	return t.Format("2006-01-02_15-04-05")
}
