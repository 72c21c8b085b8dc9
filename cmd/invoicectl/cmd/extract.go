package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snaptosheet/invoice-extract-service/internal/ai"
	"github.com/snaptosheet/invoice-extract-service/internal/ocr"
	"github.com/snaptosheet/invoice-extract-service/internal/services"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the full extraction pipeline",
	Long: `Send an image or OCR text to the configured model, then repair, normalize
and reconcile the answer.

Examples:
  # From OCR text
  invoicectl extract --text scan.txt

  # From an image with a specific model
  invoicectl extract --image invoice.jpg --model google/gemini-2.0-flash-001`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("text", "", "OCR text file (- for stdin)")
	extractCmd.Flags().String("image", "", "invoice image file")
	extractCmd.Flags().String("model", "", "model override")
	extractCmd.Flags().String("provider", "", "provider (openrouter, openai, gemini, ollama)")
	extractCmd.Flags().String("api-key", "", "API key override")
	extractCmd.Flags().Bool("trace", false, "print the pipeline states to stderr")
	extractCmd.MarkFlagsMutuallyExclusive("text", "image")
}

func runExtract(cmd *cobra.Command, args []string) error {
	textPath, _ := cmd.Flags().GetString("text")
	imagePath, _ := cmd.Flags().GetString("image")
	model, _ := cmd.Flags().GetString("model")
	providerName, _ := cmd.Flags().GetString("provider")
	apiKey, _ := cmd.Flags().GetString("api-key")
	trace, _ := cmd.Flags().GetBool("trace")

	if textPath == "" && imagePath == "" {
		return ai.ErrMissingInput
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	in := ai.ExtractInput{Model: model}
	if textPath != "" {
		text, err := readInput(cmd, textPath)
		if err != nil {
			return err
		}
		in.OCRText = string(text)
	} else {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("read %s: %w", imagePath, err)
		}
		in.ImageDataURL = ocr.EncodeDataURL(http.DetectContentType(data), data)
	}

	provider, err := ai.NewProvider(cfg.AI, providerName, apiKey)
	if err != nil {
		return err
	}

	extractor := ai.NewExtractor(
		provider,
		services.NewReconciler(logger),
		ocr.NewPreprocessor(cfg.Image.MaxDimension, logger),
		logger,
	)
	result, err := extractor.Extract(cmd.Context(), in)
	if trace {
		fmt.Fprintln(cmd.ErrOrStderr(), result.States)
	}
	if err != nil {
		var upstream *ai.UpstreamError
		if errors.As(err, &upstream) {
			return errors.New(upstream.Message())
		}
		logger.Debug("extract.failed", zap.Error(err))
		return err
	}

	return printJSON(cmd, map[string]any{
		"data":       result.Invoice,
		"validation": services.NewValidator().Validate(result.Invoice),
		"model":      result.Model,
	})
}
