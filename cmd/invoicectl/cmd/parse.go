package cmd

import (
	"github.com/spf13/cobra"

	"github.com/snaptosheet/invoice-extract-service/internal/metrics"
	"github.com/snaptosheet/invoice-extract-service/internal/ocr"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file|-]",
	Short: "Parse OCR text with local heuristics",
	Long: `Parse OCR text into a partial invoice record without calling a model.

Examples:
  # Parse a text file
  invoicectl parse scan.txt

  # Parse from stdin
  tesseract invoice.png - | invoicectl parse -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	text, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	inv := ocr.ParseText(string(text))
	metrics.ObserveHeuristicParse()
	return printJSON(cmd, inv)
}
