package ocr

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 240, G: 240, B: 240, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return EncodeDataURL("image/png", buf.Bytes())
}

func decodeDims(t *testing.T, dataURL string) image.Point {
	t.Helper()
	_, data, err := DecodeDataURL(dataURL)
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Size()
}

func TestPreprocessor_DownscalesLargeImage(t *testing.T) {
	p := NewPreprocessor(200, zaptest.NewLogger(t))

	out := p.PrepareDataURL(pngDataURL(t, 600, 300))

	mimeType, _, err := DecodeDataURL(out)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)

	size := decodeDims(t, out)
	assert.Equal(t, 200, size.X)
	assert.Equal(t, 100, size.Y)
}

func TestPreprocessor_LeavesSmallImage(t *testing.T) {
	p := NewPreprocessor(200, zaptest.NewLogger(t))
	in := pngDataURL(t, 120, 80)

	assert.Equal(t, in, p.PrepareDataURL(in))
}

func TestPreprocessor_PassesThroughUndecodable(t *testing.T) {
	p := NewPreprocessor(0, nil)

	for _, in := range []string{
		"https://example.com/invoice.png",
		EncodeDataURL("application/pdf", []byte("%PDF-1.4")),
		"data:image/png;base64,@@@",
	} {
		assert.Equal(t, in, p.PrepareDataURL(in))
	}
}

func TestDecodeDataURL(t *testing.T) {
	mimeType, data, err := DecodeDataURL(EncodeDataURL("image/png", []byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, []byte("abc"), data)

	mimeType, _, err = DecodeDataURL("data:;base64,YWJj")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", mimeType)

	for _, bad := range []string{"", "image/png;base64,YWJj", "data:image/png,YWJj", "data:image/png;base64,%%%"} {
		_, _, err := DecodeDataURL(bad)
		assert.ErrorIs(t, err, ErrInvalidDataURL, bad)
	}
}
