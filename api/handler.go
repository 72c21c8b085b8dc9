package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/snaptosheet/invoice-extract-service/internal/ai"
	"github.com/snaptosheet/invoice-extract-service/internal/export"
	"github.com/snaptosheet/invoice-extract-service/internal/metrics"
	"github.com/snaptosheet/invoice-extract-service/internal/models"
	"github.com/snaptosheet/invoice-extract-service/internal/normalize"
	"github.com/snaptosheet/invoice-extract-service/internal/ocr"
	"github.com/snaptosheet/invoice-extract-service/internal/services"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB multipart file
	MaxBodySize   = 16 * 1024 * 1024 // JSON body carrying a base64 image
	Version       = "1.0.0"
)

// ProviderFactory builds the model provider for one request
type ProviderFactory func(cfg models.AIConfig, name, apiKey string) (ai.Provider, error)

// Handler handles HTTP requests for invoice extraction
type Handler struct {
	config       *models.Config
	newProvider  ProviderFactory
	reconciler   *services.Reconciler
	validator    *services.Validator
	preprocessor *ocr.Preprocessor
	exporter     *export.Exporter
	logger       *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		config:       config,
		newProvider:  ai.NewProvider,
		reconciler:   services.NewReconciler(logger),
		validator:    services.NewValidator(),
		preprocessor: ocr.NewPreprocessor(config.Image.MaxDimension, logger),
		exporter:     export.NewExporter(logger),
		logger:       logger,
	}
}

// WithProviderFactory replaces the provider constructor
func (h *Handler) WithProviderFactory(f ProviderFactory) *Handler {
	h.newProvider = f
	return h
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.requestID)

	// Extraction
	router.HandleFunc("/api/extract-invoice", h.ExtractInvoice).Methods("POST")
	router.HandleFunc("/api/extract-invoice/debug", h.DebugExtract).Methods("POST")
	router.HandleFunc("/api/parse-ocr", h.ParseOCR).Methods("POST")

	// Workbook
	router.HandleFunc("/api/export-invoice", h.ExportInvoice).Methods("POST")

	// Health check and metrics
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}

type requestIDKey struct{}

// requestID tags every request with a uuid, echoed in X-Request-ID
func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requestLogger(r *http.Request) *zap.Logger {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return h.logger.With(zap.String("request_id", id), zap.String("path", r.URL.Path))
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Memory    MemoryStats       `json:"memory"`
	AI        map[string]string `json:"ai"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

var startTime = time.Now()

// Health endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.sendJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		AI: map[string]string{
			"defaultProvider": h.config.AI.DefaultProvider,
			"defaultModel":    ai.DefaultModel,
		},
	})
}

// ExtractResponse is the body of a successful extraction
type ExtractResponse struct {
	Data       *models.InvoiceData        `json:"data"`
	Validation *services.ValidationResult `json:"validation"`
	Model      string                     `json:"model"`
}

// ExtractInvoice runs the full pipeline on an image or OCR text. It accepts a
// JSON body or a multipart form with a "file" or "image" field.
func (h *Handler) ExtractInvoice(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeExtractRequest(w, r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Image == "" && strings.TrimSpace(req.OCRText) == "" {
		metrics.ObserveExtract("none", "rejected", 0)
		h.writeError(w, r, ai.ErrMissingInput)
		return
	}

	provider, err := h.newProvider(h.config.AI, req.Provider, req.APIKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	logger := h.requestLogger(r)
	extractor := ai.NewExtractor(provider, h.reconciler, h.preprocessor, logger)
	result, err := extractor.Extract(r.Context(), ai.ExtractInput{
		ImageDataURL: req.Image,
		OCRText:      req.OCRText,
		Model:        req.Model,
	})
	if err != nil {
		logger.Debug("extract.states", zap.Any("states", result.States))
		h.writeError(w, r, err)
		return
	}

	h.sendJSON(w, http.StatusOK, ExtractResponse{
		Data:       result.Invoice,
		Validation: h.validator.Validate(result.Invoice),
		Model:      result.Model,
	})
}

func (h *Handler) decodeExtractRequest(w http.ResponseWriter, r *http.Request) (*models.ExtractRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.decodeMultipart(w, r)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	var req models.ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	return &req, nil
}

func (h *Handler) decodeMultipart(w http.ResponseWriter, r *http.Request) (*models.ExtractRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		return nil, fmt.Errorf("file too large or invalid form data")
	}

	req := &models.ExtractRequest{
		OCRText:  r.FormValue("ocrText"),
		APIKey:   r.FormValue("apiKey"),
		Model:    r.FormValue("model"),
		Provider: r.FormValue("provider"),
	}

	// Accept both "file" and "image" field names
	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("image")
	}
	if err != nil {
		return req, nil
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file")
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	req.Image = ocr.EncodeDataURL(contentType, data)
	return req, nil
}

// DebugExtract sends an image with a minimal prompt and returns the model's
// answer untouched. Disabled unless debug is configured.
func (h *Handler) DebugExtract(w http.ResponseWriter, r *http.Request) {
	if !h.config.Debug {
		h.sendError(w, http.StatusForbidden, "Debug endpoint disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	var req models.ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Image == "" {
		h.sendError(w, http.StatusBadRequest, "Missing image")
		return
	}

	provider, err := h.newProvider(h.config.AI, req.Provider, req.APIKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	extractor := ai.NewExtractor(provider, h.reconciler, nil, h.requestLogger(r))
	result, err := extractor.Debug(r.Context(), req.Image, req.Model)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	body := map[string]any{"ok": true}
	if result.Raw != nil {
		body["raw"] = result.Raw
	} else {
		body["rawText"] = result.RawText
	}
	h.sendJSON(w, http.StatusOK, body)
}

// ParseOCR extracts what it can from OCR text with local heuristics only
func (h *Handler) ParseOCR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	var req models.ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.OCRText) == "" {
		h.sendError(w, http.StatusBadRequest, "Missing ocrText in request")
		return
	}

	inv := ocr.ParseText(req.OCRText)
	metrics.ObserveHeuristicParse()
	h.requestLogger(r).Info("parse.result",
		zap.Stringp("invoice_number", inv.InvoiceNumber),
		zap.Float64p("total", inv.Total),
		zap.Int("line_items", len(inv.LineItems)),
	)

	h.sendJSON(w, http.StatusOK, map[string]any{"data": inv})
}

// ExportInvoice renders a record as an XLSX download. The body is either the
// record itself or {"data": record}.
func (h *Handler) ExportInvoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	var body any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if m, ok := body.(map[string]any); ok {
		if data, ok := m["data"]; ok {
			body = data
		}
	}
	inv := normalize.Invoice(body)

	buf, err := h.exporter.Bytes(inv)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": h.exporter.Filename(inv),
	}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf); err != nil {
		h.requestLogger(r).Warn("export.write_failed", zap.Error(err))
	}
}
