package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/scanstudy/internal/generation"
	"github.com/lehigh-university-libraries/scanstudy/internal/models"
	"github.com/lehigh-university-libraries/scanstudy/internal/ui"
)

func (a *app) newGenerateCmd() *cobra.Command {
	var (
		action     string
		question   string
		serviceURL string
	)

	cmd := &cobra.Command{
		Use:   "generate <textfile>",
		Short: "Run one generation request against a text file",
		Long: `Sends the contents of a text file to the generation service with the given
action and prints the result. Use "-" to read the text from stdin.`,
		Example: `  scanstudy generate --action quiz notes.txt
  scanstudy generate --action qa --question "When was it written?" notes.txt
  cat notes.txt | scanstudy generate --action summarize -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				text []byte
				err  error
			)
			if args[0] == "-" {
				text, err = io.ReadAll(cmd.InOrStdin())
			} else {
				text, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read text: %w", err)
			}

			req := generation.Request{Text: string(text), Action: models.Action(action), Question: question}
			if err := req.Validate(); err != nil {
				return err
			}

			gen, err := a.generator(serviceURL)
			if err != nil {
				return err
			}

			spin := ui.NewSpinner(cmd.ErrOrStderr(), "Generating...")
			spin.Start()
			result, err := gen.Generate(cmd.Context(), req)
			spin.Stop()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&action, "action", "a", "", "qa, lesson, flashcards, summarize or quiz (required)")
	cmd.Flags().StringVarP(&question, "question", "q", "", "Question for the qa action")
	cmd.Flags().StringVar(&serviceURL, "service-url", "", "Send the request to a remote generation service")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}
