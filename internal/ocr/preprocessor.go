package ocr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// DefaultMaxDimension bounds the longest image side sent to a vision model
const DefaultMaxDimension = 2000

// ErrInvalidDataURL is returned for strings that are not base64 data URLs
var ErrInvalidDataURL = errors.New("invalid data URL")

// Preprocessor prepares invoice images before they are sent to a vision model
type Preprocessor struct {
	maxDimension int
	logger       *zap.Logger
}

// NewPreprocessor creates a new image preprocessor
func NewPreprocessor(maxDimension int, logger *zap.Logger) *Preprocessor {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preprocessor{
		maxDimension: maxDimension,
		logger:       logger,
	}
}

// PrepareDataURL downscales oversized images, keeping aspect ratio, and
// re-encodes them as JPEG. Inputs that cannot be decoded (PDF, WebP, plain
// URLs) are returned unchanged.
func (p *Preprocessor) PrepareDataURL(dataURL string) string {
	_, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return dataURL
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		p.logger.Debug("image.decode_skipped", zap.Error(err))
		return dataURL
	}

	bounds := img.Bounds()
	if bounds.Dx() <= p.maxDimension && bounds.Dy() <= p.maxDimension {
		return dataURL
	}

	resized := imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		p.logger.Warn("image.encode_failed", zap.Error(err))
		return dataURL
	}

	p.logger.Info("image.downscaled",
		zap.Int("from_width", bounds.Dx()),
		zap.Int("from_height", bounds.Dy()),
		zap.Int("to_width", resized.Bounds().Dx()),
		zap.Int("to_height", resized.Bounds().Dy()),
		zap.Int("bytes_before", len(data)),
		zap.Int("bytes_after", buf.Len()),
	)
	return EncodeDataURL("image/jpeg", buf.Bytes())
}

// DecodeDataURL splits "data:<mime>;base64,<payload>" into its MIME type and
// decoded bytes.
func DecodeDataURL(s string) (string, []byte, error) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", nil, ErrInvalidDataURL
	}
	mimeType := strings.TrimSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mimeType, data, nil
}

// EncodeDataURL builds a base64 data URL
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
