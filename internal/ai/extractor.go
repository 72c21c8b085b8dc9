package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/snaptosheet/invoice-extract-service/internal/metrics"
	"github.com/snaptosheet/invoice-extract-service/internal/models"
	"github.com/snaptosheet/invoice-extract-service/internal/normalize"
	"github.com/snaptosheet/invoice-extract-service/internal/ocr"
	"github.com/snaptosheet/invoice-extract-service/internal/services"
)

// State is one step of an extraction run
type State string

const (
	StateReceived              State = "received"
	StateImageRequest          State = "image_request"
	StateTextRequest           State = "text_request"
	StateRejected              State = "rejected"
	StateRemoteCallSucceeded   State = "remote_call_succeeded"
	StateRemoteCallFailed      State = "remote_call_failed"
	StateRetryWithDefaultModel State = "retry_with_default_model"
	StateResponseRepaired      State = "response_repaired"
	StateRepairFailed          State = "repair_failed"
	StateNormalized            State = "normalized"
	StateReconciled            State = "reconciled"
	StateReturned              State = "returned"
)

// Call purposes, used as metric labels
const (
	purposeExtract = "extract"
	purposeRetry   = "retry"
	purposeRescue  = "rescue"
	purposeDebug   = "debug"
)

const (
	debugMaxTokens = 1000
)

// ExtractInput is one extraction request. ImageDataURL wins over OCRText
// when both are set.
type ExtractInput struct {
	ImageDataURL string
	OCRText      string
	Model        string
}

// Mode names the request path taken for in
func (in ExtractInput) Mode() string {
	switch {
	case in.ImageDataURL != "":
		return "image"
	case strings.TrimSpace(in.OCRText) != "":
		return "text"
	default:
		return "none"
	}
}

// Result is the reconciled record plus a trace of the run
type Result struct {
	Invoice *models.InvoiceData
	Model   string  // model that produced the accepted answer
	Retried bool    // true when the default model was used after a rejection
	States  []State // every state entered, in order
	Raw     string  // model content before repair

	// SchemaDrift is set when the repaired answer did not match InvoiceSchema
	SchemaDrift bool
}

func (r *Result) enter(s State) {
	r.States = append(r.States, s)
}

// Extractor runs the remote extraction pipeline: one model call (with at most
// one retry on the default model), JSON repair, normalization and
// reconciliation.
type Extractor struct {
	provider     Provider
	prompts      Prompts
	reconciler   *services.Reconciler
	preprocessor *ocr.Preprocessor
	logger       *zap.Logger
}

// NewExtractor creates a new AI extractor. preprocessor may be nil, in which
// case images are sent as received.
func NewExtractor(provider Provider, reconciler *services.Reconciler, preprocessor *ocr.Preprocessor, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reconciler == nil {
		reconciler = services.NewReconciler(logger)
	}
	return &Extractor{
		provider:     provider,
		prompts:      DefaultPrompts(),
		reconciler:   reconciler,
		preprocessor: preprocessor,
		logger:       logger,
	}
}

// WithPrompts replaces the prompt set
func (e *Extractor) WithPrompts(p Prompts) *Extractor {
	e.prompts = p
	return e
}

// Extract processes an image or OCR text and returns the structured invoice.
// The returned Result is non-nil even on failure so callers can inspect the
// states reached.
func (e *Extractor) Extract(ctx context.Context, in ExtractInput) (*Result, error) {
	start := time.Now()
	res := &Result{}
	res.enter(StateReceived)

	mode := in.Mode()
	outcome := "error"
	defer func() {
		metrics.ObserveExtract(mode, outcome, time.Since(start))
	}()

	req, requestState, ok := e.buildRequest(in)
	if !ok {
		res.enter(StateRejected)
		outcome = "rejected"
		return res, ErrMissingInput
	}
	res.enter(requestState)

	model := firstNonEmpty(in.Model, e.provider.DefaultModel(), DefaultModel)
	req.Model = model

	content, err := e.call(ctx, req, purposeExtract)
	if err != nil && ShouldRetryWithDefaultModel(err, model, DefaultModel) {
		res.enter(StateRemoteCallFailed)
		res.enter(StateRetryWithDefaultModel)
		res.enter(requestState)
		e.logger.Info("extract.retry_default_model",
			zap.String("model", model),
			zap.String("default_model", DefaultModel),
		)
		model = DefaultModel
		req.Model = model
		res.Retried = true
		content, err = e.call(ctx, req, purposeRetry)
	}
	if err != nil {
		res.enter(StateRemoteCallFailed)
		return res, err
	}
	res.enter(StateRemoteCallSucceeded)
	res.Model = model
	res.Raw = content

	parsed, err := ParseContent(content)
	if err != nil {
		res.enter(StateRepairFailed)
		e.logger.Warn("extract.repair_failed",
			zap.String("model", model),
			zap.String("excerpt", Truncate(content, 200)),
			zap.Error(err),
		)
		return res, err
	}
	res.enter(StateResponseRepaired)

	if err := ValidateModelOutput(parsed); err != nil {
		res.SchemaDrift = true
		metrics.ObserveSchemaDrift(e.provider.Name())
		e.logger.Warn("extract.schema_drift",
			zap.String("model", model),
			zap.Error(err),
		)
	}

	record := normalize.Invoice(parsed)
	res.enter(StateNormalized)

	var source services.LineItemSource
	if in.OCRText != "" {
		source = &lineItemRescuer{extractor: e, model: model}
	}
	res.Invoice = e.reconciler.Reconcile(ctx, services.Input{
		Invoice:  record,
		OCRText:  in.OCRText,
		HasImage: in.ImageDataURL != "",
	}, source)
	res.enter(StateReconciled)

	e.logger.Info("extract.result",
		zap.String("mode", mode),
		zap.String("model", model),
		zap.Bool("retried", res.Retried),
		zap.Stringp("vendor_name", res.Invoice.VendorName),
		zap.Stringp("invoice_number", res.Invoice.InvoiceNumber),
		zap.Float64p("subtotal", res.Invoice.Subtotal),
		zap.Float64p("total", res.Invoice.Total),
		zap.Int("line_items", len(res.Invoice.LineItems)),
		zap.Duration("elapsed", time.Since(start)),
	)

	res.enter(StateReturned)
	outcome = "ok"
	return res, nil
}

// buildRequest picks the image or text path. ok is false when neither input
// is usable.
func (e *Extractor) buildRequest(in ExtractInput) (CompletionRequest, State, bool) {
	req := CompletionRequest{System: e.prompts.System}
	switch {
	case in.ImageDataURL != "":
		image := in.ImageDataURL
		if e.preprocessor != nil {
			image = e.preprocessor.PrepareDataURL(image)
		}
		req.Prompt = e.prompts.ImagePrompt()
		req.ImageURL = image
		return req, StateImageRequest, true
	case strings.TrimSpace(in.OCRText) != "":
		req.Prompt = e.prompts.TextPrompt(in.OCRText)
		return req, StateTextRequest, true
	default:
		return req, StateRejected, false
	}
}

// call performs one remote completion and records its outcome
func (e *Extractor) call(ctx context.Context, req CompletionRequest, purpose string) (string, error) {
	started := time.Now()
	content, err := e.provider.Complete(ctx, req)

	fields := []zap.Field{
		zap.String("provider", e.provider.Name()),
		zap.String("model", req.Model),
		zap.String("purpose", purpose),
		zap.Bool("image", req.ImageURL != ""),
		zap.Duration("elapsed", time.Since(started)),
	}
	if err != nil {
		metrics.ObserveRemoteCall(e.provider.Name(), purpose, resultLabel(err))
		e.logger.Warn("extract.remote_call", append(fields, zap.Error(err))...)
		return "", err
	}
	metrics.ObserveRemoteCall(e.provider.Name(), purpose, "ok")
	e.logger.Debug("extract.remote_call", append(fields, zap.Int("content_length", len(content)))...)
	return content, nil
}

func resultLabel(err error) string {
	var upstream *UpstreamError
	var transport *TransportError
	switch {
	case errors.As(err, &upstream):
		return "upstream_" + string(upstream.Class)
	case errors.As(err, &transport):
		return "transport"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	default:
		return "error"
	}
}

// ShouldRetryWithDefaultModel reports whether a failed call should be repeated
// once on the default model: only when the upstream answered 404 because the
// chosen model has no image-capable endpoint.
func ShouldRetryWithDefaultModel(err error, model, defaultModel string) bool {
	if err == nil || model == defaultModel {
		return false
	}
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		return false
	}
	return upstream.Status == 404 && upstream.Class == ClassImageUnsupported
}

// lineItemRescuer asks the same model for the line items alone
type lineItemRescuer struct {
	extractor *Extractor
	model     string
}

func (r *lineItemRescuer) LineItems(ctx context.Context, ocrText string) ([]models.InvoiceLineItem, error) {
	e := r.extractor
	content, err := e.call(ctx, CompletionRequest{
		Model:  r.model,
		System: e.prompts.System,
		Prompt: e.prompts.LineItemPrompt(ocrText) + "\n\n" + e.prompts.Rules,
	}, purposeRescue)
	if err != nil {
		return nil, err
	}
	items, err := ParseLineItemArray(content)
	if err != nil {
		return nil, err
	}
	return normalize.LineItems(items), nil
}

// DebugResult is the unprocessed answer of a debug call. Raw is set when the
// content parsed as JSON, RawText otherwise.
type DebugResult struct {
	Raw     any
	RawText string
	Model   string
}

// Debug sends an image with a minimal prompt and returns the model's answer
// without normalization or reconciliation.
func (e *Extractor) Debug(ctx context.Context, imageDataURL, model string) (*DebugResult, error) {
	if imageDataURL == "" {
		return nil, ErrMissingInput
	}
	model = firstNonEmpty(model, e.provider.DefaultModel(), DefaultModel)
	temperature := float32(0)

	content, err := e.call(ctx, CompletionRequest{
		Model:       model,
		System:      e.prompts.DebugSystem,
		Prompt:      e.prompts.DebugImage,
		ImageURL:    imageDataURL,
		MaxTokens:   debugMaxTokens,
		Temperature: &temperature,
	}, purposeDebug)
	if err != nil {
		return nil, err
	}

	out := &DebugResult{Model: model}
	if parsed, err := RepairJSON(content); err == nil {
		out.Raw = parsed
	} else {
		out.RawText = content
	}
	return out, nil
}
