package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/scanstudy/internal/adjust"
	"github.com/lehigh-university-libraries/scanstudy/internal/capture"
	"github.com/lehigh-university-libraries/scanstudy/internal/export"
	"github.com/lehigh-university-libraries/scanstudy/internal/models"
	"github.com/lehigh-university-libraries/scanstudy/internal/ocr"
	"github.com/lehigh-university-libraries/scanstudy/internal/study"
	"github.com/lehigh-university-libraries/scanstudy/internal/ui"
	"github.com/lehigh-university-libraries/scanstudy/internal/workflow"
)

type scanOptions struct {
	camera      string
	rotate      int
	scale       float64
	language    string
	engine      string
	feature     string
	questions   []string
	interactive bool
	exportAs    string
	outDir      string
	serviceURL  string
}

func (a *app) newScanCmd() *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan [image]",
		Short: "Extract text from a page image and study it",
		Long: `Loads an image (or takes one from the configured camera), applies the
requested rotation and scale, recognizes the text and then answers questions
or generates study material from it.`,
		Example: `  # Recognize a photo and summarize it
  scanstudy scan page.jpg --feature summarize

  # Rotate a sideways scan, ask two questions and save a PDF
  scanstudy scan scan.png --rotate 90 --ask "What is the main idea?" --ask "Who is mentioned?" --export pdf

  # Take a picture with the rear camera and keep asking questions
  scanstudy scan --camera environment --interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.camera == "" {
				return errors.New("an image path or --camera is required")
			}
			if opts.rotate%90 != 0 {
				return fmt.Errorf("--rotate must be a multiple of 90, got %d", opts.rotate)
			}
			if opts.feature != "" && !models.Action(opts.feature).IsStudyKind() {
				return fmt.Errorf("unknown --feature %q (must be lesson, flashcards, summarize or quiz)", opts.feature)
			}
			if opts.exportAs != "" && opts.exportAs != "txt" && opts.exportAs != "pdf" {
				return fmt.Errorf("unknown --export %q (must be txt or pdf)", opts.exportAs)
			}
			if !cmd.Flags().Changed("scale") {
				opts.scale = 0
			}
			return a.runScan(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.camera, "camera", "", "Capture from the camera facing user or environment instead of a file")
	cmd.Flags().IntVar(&opts.rotate, "rotate", 0, "Clockwise rotation in degrees (multiple of 90)")
	cmd.Flags().Float64Var(&opts.scale, "scale", 1.0, "Scale factor, clamped to [0.5, 2.0]")
	cmd.Flags().StringVar(&opts.language, "language", "", "OCR language (default from config)")
	cmd.Flags().StringVar(&opts.engine, "engine", "", "OCR engine: tesseract or vision (default from config)")
	cmd.Flags().StringVar(&opts.feature, "feature", "", "Study material to generate: lesson, flashcards, summarize or quiz")
	cmd.Flags().StringArrayVar(&opts.questions, "ask", nil, "Question about the text (repeatable)")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Keep reading questions and commands from stdin")
	cmd.Flags().StringVar(&opts.exportAs, "export", "", "Save the extracted text as txt or pdf")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "Directory for exports (default from config)")
	cmd.Flags().StringVar(&opts.serviceURL, "service-url", "", "Send study requests to a remote generation service")

	return cmd
}

func (a *app) runScan(cmd *cobra.Command, args []string, opts scanOptions) error {
	ctx := cmd.Context()
	printer := &ui.Printer{Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}

	gen, err := a.generator(opts.serviceURL)
	if err != nil {
		return err
	}
	engine, err := a.ocrEngine(opts.engine, "", "")
	if err != nil {
		return err
	}

	var camera *capture.Camera
	if opts.camera != "" {
		if camera = a.camera(); camera == nil {
			return errors.New("no camera configured (set camera.user_url or camera.environment_url)")
		}
	}

	wf := workflow.New(camera, ocr.NewPipeline(engine, a.cfg.OCR.Language), study.NewSession(gen))
	defer wf.Reset()

	img, err := loadScanImage(ctx, wf, args, opts.camera)
	if err != nil {
		printer.Error("%v", err)
		return err
	}
	printer.Info("Loaded %s image %dx%d from %s", img.MediaType, img.Width, img.Height, img.Source)

	if err := applyAdjustments(wf, opts, printer); err != nil {
		return err
	}

	bar := ui.NewProgressBar(cmd.ErrOrStderr(), "Recognizing")
	text, err := wf.Recognize(ctx, opts.language, bar.Set)
	bar.Finish()
	if err != nil {
		printer.Error("Recognition failed: %v", err)
		return err
	}
	printer.Section("Extracted text", text)

	session := wf.Session()
	for _, q := range opts.questions {
		if err := askQuestion(ctx, session, q, printer); err != nil {
			return err
		}
	}
	if opts.feature != "" {
		if err := generateArtifact(ctx, session, models.Action(opts.feature), printer); err != nil {
			return err
		}
	}
	if opts.exportAs != "" {
		if err := a.exportText(ctx, session.Text(), opts.exportAs, opts.outDir, printer); err != nil {
			return err
		}
	}
	if opts.interactive {
		return a.interact(ctx, session, cmd.InOrStdin(), opts.outDir, printer)
	}
	return nil
}

func loadScanImage(ctx context.Context, wf *workflow.Workflow, args []string, facing string) (*models.CapturedImage, error) {
	if facing != "" {
		f, err := capture.ParseFacing(facing)
		if err != nil {
			return nil, err
		}
		if err := wf.OpenCamera(ctx, f); err != nil {
			return nil, err
		}
		return wf.CaptureFromCamera(ctx)
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return wf.LoadFile(filepath.Base(path), "", data)
}

func applyAdjustments(wf *workflow.Workflow, opts scanOptions, printer *ui.Printer) error {
	turns := adjust.NormalizeRotation(opts.rotate) / 90
	for i := 0; i < turns; i++ {
		if _, err := wf.Rotate(); err != nil {
			return err
		}
	}
	if opts.scale != 0 {
		state, err := wf.SetScale(opts.scale)
		if err != nil {
			return err
		}
		if state.Scale != opts.scale {
			printer.Warning("Scale %.2f clamped to %.2f", opts.scale, state.Scale)
		}
	}
	return nil
}

func askQuestion(ctx context.Context, session *study.Session, question string, printer *ui.Printer) error {
	spin := ui.NewSpinner(printer.Err, "Thinking...")
	spin.Start()
	turn, err := session.Ask(ctx, question)
	spin.Stop()
	if err != nil {
		printer.Error("Question failed: %v", err)
		return err
	}
	printer.Section("Q: "+turn.Question, turn.Answer)
	return nil
}

func generateArtifact(ctx context.Context, session *study.Session, kind models.Action, printer *ui.Printer) error {
	spin := ui.NewSpinner(printer.Err, fmt.Sprintf("Generating %s...", kind))
	spin.Start()
	artifact, err := session.Generate(ctx, kind)
	spin.Stop()
	if err != nil {
		printer.Error("Generating %s failed: %v", kind, err)
		return err
	}
	printer.Section(titleFor(kind), artifact.Content)
	return nil
}

func titleFor(kind models.Action) string {
	switch kind {
	case models.ActionLesson:
		return "Lesson"
	case models.ActionFlashcards:
		return "Flashcards"
	case models.ActionSummarize:
		return "Summary"
	case models.ActionQuiz:
		return "Quiz"
	}
	return string(kind)
}

func (a *app) exportText(ctx context.Context, text, format, dir string, printer *ui.Printer) error {
	layout, err := a.layout()
	if err != nil {
		return err
	}
	data, contentType, err := export.EncodeWithLayout(text, format, layout)
	if err != nil {
		return err
	}
	sink, err := a.sink(ctx, dir)
	if err != nil {
		return err
	}
	location, err := sink.Save(ctx, export.FileName(a.cfg.Export.Prefix, format, time.Now()), contentType, data)
	if err != nil {
		printer.Error("Export failed: %v", err)
		return err
	}
	printer.Success("Saved %s", location)
	return nil
}

const interactiveHelp = `Type a question, or one of:
  /lesson /flashcards /summarize /quiz   generate study material
  /export txt|pdf                        save the extracted text
  /text                                  show the extracted text again
  /quit                                  leave`

// interact reads questions and commands until EOF or /quit. Failures are
// reported and the loop continues.
func (a *app) interact(ctx context.Context, session *study.Session, in io.Reader, outDir string, printer *ui.Printer) error {
	printer.Info("%s", interactiveHelp)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(printer.Out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(printer.Out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			_ = askQuestion(ctx, session, line, printer)
			continue
		}

		command, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
		switch command {
		case "quit", "exit":
			return nil
		case "text":
			printer.Section("Extracted text", session.Text())
		case "export":
			format := strings.TrimSpace(arg)
			if format == "" {
				format = "txt"
			}
			_ = a.exportText(ctx, session.Text(), format, outDir, printer)
		default:
			kind := models.Action(command)
			if !kind.IsStudyKind() {
				printer.Warning("Unknown command /%s", command)
				printer.Info("%s", interactiveHelp)
				continue
			}
			_ = generateArtifact(ctx, session, kind, printer)
		}
	}
}
