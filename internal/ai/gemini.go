package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/snaptosheet/invoice-extract-service/internal/ocr"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiProvider calls Google Gemini through the generative-ai-go client
type GeminiProvider struct {
	apiKey  string
	model   string
	timeout time.Duration
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(apiKey, model string, timeout time.Duration) *GeminiProvider {
	if model == "" {
		model = defaultGeminiModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &GeminiProvider{apiKey: apiKey, model: model, timeout: timeout}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) DefaultModel() string { return p.model }

// Complete sends the prompt and optional inline image and concatenates the
// text parts of the first candidate.
func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	parts := []genai.Part{genai.Text(req.Prompt)}
	if req.ImageURL != "" {
		mimeType, data, err := ocr.DecodeDataURL(req.ImageURL)
		if err != nil {
			return "", fmt.Errorf("gemini image: %w", err)
		}
		parts = append(parts, genai.ImageData(strings.TrimPrefix(mimeType, "image/"), data))
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return "", &TransportError{Provider: p.Name(), Err: err}
	}
	defer client.Close()

	model := client.GenerativeModel(firstNonEmpty(req.Model, p.model))
	model.ResponseMIMEType = "application/json"
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.Temperature != nil {
		model.SetTemperature(*req.Temperature)
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return "", NewUpstreamError(gerr.Code, firstNonEmpty(gerr.Message, gerr.Body), p.model)
		}
		return "", &TransportError{Provider: p.Name(), Err: err}
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
