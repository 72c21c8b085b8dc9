package ai

import (
	"errors"
	"fmt"
	"regexp"
)

// MaxDiagnosticLength bounds upstream bodies and raw content echoed in errors
const MaxDiagnosticLength = 1000

var (
	// ErrMissingInput means neither an image nor OCR text was supplied
	ErrMissingInput = errors.New("missing image or ocrText in request")

	// ErrMissingCredential means no API key was supplied or configured
	ErrMissingCredential = errors.New("no API key provided and none configured on the server")

	// ErrEmptyResponse means the model answered without any content
	ErrEmptyResponse = errors.New("no response content from model")
)

// UpstreamClass groups non-2xx model responses by the remedy offered to the user
type UpstreamClass string

const (
	ClassPayment          UpstreamClass = "payment"
	ClassImageUnsupported UpstreamClass = "image_unsupported"
	ClassDataPolicy       UpstreamClass = "data_policy"
	ClassGeneric          UpstreamClass = "generic"
)

var (
	imageUnsupportedPattern = regexp.MustCompile(`(?i)no endpoints found that support image input`)
	dataPolicyPattern       = regexp.MustCompile(`(?i)data policy`)
)

// UpstreamError is a non-2xx answer from the model provider
type UpstreamError struct {
	Status       int
	Body         string
	Class        UpstreamClass
	DefaultModel string
}

// NewUpstreamError classifies a rejected call by status and body
func NewUpstreamError(status int, body, defaultModel string) *UpstreamError {
	return &UpstreamError{
		Status:       status,
		Body:         body,
		Class:        classify(status, body),
		DefaultModel: defaultModel,
	}
}

func classify(status int, body string) UpstreamClass {
	switch {
	case status == 402:
		return ClassPayment
	case imageUnsupportedPattern.MatchString(body):
		return ClassImageUnsupported
	case dataPolicyPattern.MatchString(body):
		return ClassDataPolicy
	default:
		return ClassGeneric
	}
}

// Message is the user-facing explanation for this class of rejection
func (e *UpstreamError) Message() string {
	switch e.Class {
	case ClassPayment:
		return "Payment required or invalid OpenRouter key/model. Add credit or use a free/allowed model."
	case ClassImageUnsupported:
		return fmt.Sprintf("Model does not support image input. Try a vision-capable model such as %s.", e.DefaultModel)
	case ClassDataPolicy:
		return "Your OpenRouter data policy blocks this free model. Update privacy settings or choose a paid/allowed model."
	default:
		return "API error: " + Truncate(e.Body, MaxDiagnosticLength)
	}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d (%s): %s", e.Status, e.Class, Truncate(e.Body, MaxDiagnosticLength))
}

// TransportError is a failure to reach the model provider at all
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to contact %s: %s", e.Provider, Truncate(e.Err.Error(), MaxDiagnosticLength))
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RepairError means no JSON object could be recovered from the model output
type RepairError struct {
	Excerpt string
	Err     error
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("failed to parse invoice data: %v", e.Err)
}

func (e *RepairError) Unwrap() error {
	return e.Err
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}
