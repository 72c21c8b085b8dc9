package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/snaptosheet/invoice-extract-service/internal/ai"
	"github.com/snaptosheet/invoice-extract-service/internal/ocr"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Hint    string `json:"hint,omitempty"`    // upstream body excerpt
	Details string `json:"details,omitempty"` // internal detail, hidden in production
}

// statusFor maps a pipeline error to an HTTP status and response body
func statusFor(err error) (int, ErrorResponse) {
	var (
		upstream  *ai.UpstreamError
		transport *ai.TransportError
		repair    *ai.RepairError
	)
	switch {
	case errors.Is(err, ai.ErrMissingInput):
		return http.StatusBadRequest, ErrorResponse{Error: "Missing image or ocrText in request"}
	case errors.Is(err, ai.ErrMissingCredential):
		return http.StatusBadRequest, ErrorResponse{Error: "No API key configured. Set OPENROUTER_API_KEY in your environment or pass apiKey."}
	case errors.Is(err, ai.ErrUnsupportedProvider):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	case errors.Is(err, ocr.ErrInvalidDataURL):
		return http.StatusBadRequest, ErrorResponse{Error: "Image must be a base64 data URL"}
	case errors.As(err, &upstream):
		status := http.StatusBadGateway
		if upstream.Class == ai.ClassPayment {
			status = http.StatusPaymentRequired
		}
		return status, ErrorResponse{
			Error: upstream.Message(),
			Hint:  ai.Truncate(upstream.Body, ai.MaxDiagnosticLength),
		}
	case errors.As(err, &transport):
		return http.StatusBadGateway, ErrorResponse{
			Error:   "Failed to contact " + transport.Provider,
			Details: ai.Truncate(transport.Err.Error(), ai.MaxDiagnosticLength),
		}
	case errors.Is(err, ai.ErrEmptyResponse):
		return http.StatusInternalServerError, ErrorResponse{Error: "No response from API"}
	case errors.As(err, &repair):
		return http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to parse invoice data. Raw response: " + repair.Excerpt,
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "Internal error",
			Details: ai.Truncate(err.Error(), ai.MaxDiagnosticLength),
		}
	}
}

// writeError logs err and sends the mapped response
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if h.config.IsProduction() {
		body.Details = ""
	}

	logger := h.requestLogger(r)
	if status >= http.StatusInternalServerError {
		logger.Error("request.failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Warn("request.rejected", zap.Int("status", status), zap.Error(err))
	}

	h.sendJSON(w, status, body)
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, ErrorResponse{Error: message})
}

func (h *Handler) sendJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("response.encode_failed", zap.Error(err))
	}
}
