package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/scanstudy/internal/evalcmd"
)

func (a *app) newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Recognition accuracy evaluation tools",
		Long: `Evaluation tools for measuring how accurately the OCR engines transcribe
page images against reference text.`,
	}

	cmd.AddCommand(evalcmd.NewOCRCmd(a.ocrEngine, a.ocrDefaults))

	return cmd
}
