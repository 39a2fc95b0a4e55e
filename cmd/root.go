package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/scanstudy/internal/config"
)

// app carries the configuration loaded before any subcommand runs
type app struct {
	configPath string
	cfg        *config.Config
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "scanstudy",
		Short: "Turn photographed pages into text and study material",
		Long: `Scanstudy extracts text from a photo or scan of a printed page and uses an LLM
to answer questions about it, or to build a lesson, flashcards, a summary or a quiz.

It runs as a one-shot CLI (scan), as an HTTP service (serve), and includes an
evaluation harness for measuring OCR accuracy.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			slog.SetDefault(config.NewLogger(cfg.Log, os.Stderr))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file (default "+config.DefaultPath+" if present)")

	cmd.AddCommand(a.newServeCmd())
	cmd.AddCommand(a.newScanCmd())
	cmd.AddCommand(a.newGenerateCmd())
	cmd.AddCommand(a.newEvalCmd())

	return cmd
}
