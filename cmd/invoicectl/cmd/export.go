package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snaptosheet/invoice-extract-service/internal/export"
	"github.com/snaptosheet/invoice-extract-service/internal/normalize"
)

var exportCmd = &cobra.Command{
	Use:   "export RECORD.json",
	Short: "Write an invoice record as an XLSX workbook",
	Long: `Render an invoice record (or the output of "invoicectl extract") as a
five-sheet workbook.

Examples:
  invoicectl extract --text scan.txt > record.json
  invoicectl export record.json -o invoice.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "", "output file (default: generated from the record)")
}

func runExport(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	if m, ok := body.(map[string]any); ok {
		if inner, ok := m["data"]; ok {
			body = inner
		}
	}
	inv := normalize.Invoice(body)

	_, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	exporter := export.NewExporter(logger)
	if output == "" {
		output = exporter.Filename(inv)
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := exporter.Write(f, inv); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}
