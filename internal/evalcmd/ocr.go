package evalcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/scanstudy/internal/adjust"
	"github.com/lehigh-university-libraries/scanstudy/internal/capture"
	"github.com/lehigh-university-libraries/scanstudy/internal/eval/dataset"
	"github.com/lehigh-university-libraries/scanstudy/internal/eval/metrics"
	"github.com/lehigh-university-libraries/scanstudy/internal/eval/results"
	"github.com/lehigh-university-libraries/scanstudy/internal/ocr"
	"github.com/lehigh-university-libraries/scanstudy/internal/ui"
)

// EngineFactory builds the OCR engine for a run. provider and model only
// matter for the vision engine.
type EngineFactory func(engine, provider, model string) (ocr.Engine, error)

// Options are the inputs of one OCR evaluation run
type Options struct {
	DatasetPath string
	SampleSize  int
	Engine      string
	Provider    string
	Model       string
	Language    string
	Concurrency int
	OutputDir   string
	Timeout     time.Duration
}

// Defaults supplies flag defaults taken from the loaded configuration
type Defaults func() (engine, provider, model, language string)

// NewOCRCmd creates the "eval ocr" command
func NewOCRCmd(factory EngineFactory, defaults Defaults) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "ocr",
		Short: "Measure OCR accuracy against reference transcriptions",
		Long: `Runs every image in a dataset through the recognition pipeline and
compares the result with the reference text using character and word error rates.

The dataset is a JSONL or Parquet file with one record per page:
  {"id": "...", "image_path": "...", "expected_text": "...", "language": "eng"}
Relative image paths are resolved against the dataset's directory.`,
		Example: `  # Evaluate 10 pages with the configured engine
  scanstudy eval ocr --dataset ./pages.jsonl

  # Compare a vision model on the full dataset
  scanstudy eval ocr --dataset ./pages.parquet --sample -1 --engine vision --provider openai --model gpt-4o`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.DatasetPath); os.IsNotExist(err) {
				return fmt.Errorf("dataset file not found: %s", opts.DatasetPath)
			}

			engine, provider, model, language := defaults()
			if opts.Engine == "" {
				opts.Engine = engine
			}
			if opts.Provider == "" {
				opts.Provider = provider
			}
			if opts.Model == "" {
				opts.Model = model
			}
			if opts.Language == "" {
				opts.Language = language
			}

			e, err := factory(opts.Engine, opts.Provider, opts.Model)
			if err != nil {
				return err
			}

			agg, err := Run(cmd.Context(), ocr.NewPipeline(e, opts.Language), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			agg.WriteSummary(cmd.OutOrStdout())

			cfg := results.EvalConfig{
				Engine:      opts.Engine,
				Language:    opts.Language,
				DatasetPath: opts.DatasetPath,
				SampleSize:  opts.SampleSize,
			}
			if opts.Engine == "vision" {
				cfg.Model = opts.Provider + "/" + opts.Model
			}
			path, err := results.SaveToYAML(opts.OutputDir, cfg, agg)
			if err != nil {
				return err
			}
			(&ui.Printer{Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}).Success("Evaluation results saved to: %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.DatasetPath, "dataset", "", "Path to a JSONL or Parquet dataset (required)")
	cmd.Flags().IntVar(&opts.SampleSize, "sample", 10, "Number of records to evaluate (-1 for all)")
	cmd.Flags().StringVar(&opts.Engine, "engine", "", "OCR engine (tesseract or vision)")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "LLM provider for the vision engine (gemini, openai, ollama)")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Model for the vision engine (defaults to the provider's model)")
	cmd.Flags().StringVar(&opts.Language, "language", "", "Language used when a record does not name one")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 2, "Number of pages recognized at once")
	cmd.Flags().StringVar(&opts.OutputDir, "output", "evals", "Directory for the results YAML")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "Time limit per page")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

// Run evaluates the dataset with pipeline. Progress is drawn on progress
// when it is non-nil. Per-record failures are recorded, not returned.
func Run(ctx context.Context, pipeline *ocr.Pipeline, opts Options, progress io.Writer) (*metrics.AggregateResults, error) {
	loader := dataset.NewLoader(opts.DatasetPath)
	records, err := loader.LoadSample(opts.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset %s has no records", opts.DatasetPath)
	}
	slog.Info("Dataset loaded", "records", len(records), "engine", opts.Engine)

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var bar *ui.ProgressBar
	if progress != nil {
		bar = ui.NewProgressBar(progress, "Recognizing")
	}

	out := make([]metrics.EvaluationResult, len(records))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	semaphore := make(chan struct{}, concurrency)

	for i, record := range records {
		wg.Add(1)
		go func(idx int, record dataset.OCRRecord) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			out[idx] = processRecord(ctx, pipeline, loader.Dir(), record, opts)

			mu.Lock()
			completed++
			if bar != nil {
				bar.Set(completed * 100 / len(records))
			}
			mu.Unlock()
		}(i, record)
	}
	wg.Wait()

	if bar != nil {
		bar.Finish()
	}

	return metrics.AggregateEvaluationResults(out, opts.Engine, opts.Model), nil
}

func processRecord(ctx context.Context, pipeline *ocr.Pipeline, base string, record dataset.OCRRecord, opts Options) (result metrics.EvaluationResult) {
	language := record.LanguageOr(opts.Language)
	result = metrics.EvaluationResult{
		ID:       record.ID,
		Language: language,
		Expected: record.ExpectedText,
	}

	start := time.Now()
	defer func() { result.ProcessingTime = time.Since(start) }()

	path := record.ResolveImagePath(base)
	if path == "" {
		result.Error = "record has no image_path"
		return result
	}
	data, err := os.ReadFile(path)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read image: %v", err)
		return result
	}

	img, err := capture.FromFile(path, "", data)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	finalized, err := adjust.New(img).Finalize()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	text, err := pipeline.Recognize(ctx, finalized, language, nil)
	if err != nil {
		slog.Debug("Record failed", "id", record.ID, "err", err)
		result.Error = err.Error()
		return result
	}

	score := metrics.CompareText(record.ExpectedText, text)
	folded := metrics.CompareFolded(record.ExpectedText, text)
	result.Recognized = text
	result.Score = &score
	result.Folded = &folded
	return result
}
