package ai

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeReply struct {
	content string
	err     error
}

// fakeProvider answers calls from a queue of replies and records every request
type fakeProvider struct {
	mu      sync.Mutex
	model   string
	replies []fakeReply
	calls   []CompletionRequest
}

func (f *fakeProvider) Name() string         { return "fake" }
func (f *fakeProvider) DefaultModel() string { return f.model }

func (f *fakeProvider) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.replies) == 0 {
		return "", errors.New("unexpected call")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.content, r.err
}

func newTestExtractor(t *testing.T, p Provider) *Extractor {
	return NewExtractor(p, nil, nil, zaptest.NewLogger(t))
}

const acmeReply = "```json\n" + `{
  "vendor_name": "Acme Traders",
  "invoice_number": "INV-77",
  "invoice_date": "05/01/2024",
  "total": 118,
  "line_items": [
    {"description": "Widget", "quantity": 2, "unit_price": 50, "line_total": 100, "tax": 18}
  ]
}` + "\n```"

func TestExtract_TextMode(t *testing.T) {
	p := &fakeProvider{model: "vendor/model", replies: []fakeReply{{content: acmeReply}}}

	res, err := newTestExtractor(t, p).Extract(context.Background(), ExtractInput{
		OCRText: "Acme Traders\nInvoice No: INV-77",
	})
	require.NoError(t, err)

	assert.Equal(t, []State{
		StateReceived,
		StateTextRequest,
		StateRemoteCallSucceeded,
		StateResponseRepaired,
		StateNormalized,
		StateReconciled,
		StateReturned,
	}, res.States)
	assert.Equal(t, "vendor/model", res.Model)
	assert.False(t, res.Retried)

	require.Len(t, p.calls, 1)
	assert.Equal(t, "vendor/model", p.calls[0].Model)
	assert.Contains(t, p.calls[0].Prompt, "Invoice No: INV-77")
	assert.Empty(t, p.calls[0].ImageURL)

	inv := res.Invoice
	assert.Equal(t, "Acme Traders", *inv.VendorName)
	assert.Equal(t, "INV-77", *inv.InvoiceNumber)
	assert.Equal(t, "2024-01-05", *inv.InvoiceDate)
	assert.Equal(t, 118.0, *inv.Total)
	require.Len(t, inv.LineItems, 1)
	assert.Nil(t, inv.Notes, "totals agree so nothing is inferred")
}

func TestExtract_SchemaDrift(t *testing.T) {
	t.Run("drifted answer is still normalized", func(t *testing.T) {
		p := &fakeProvider{model: "vendor/model", replies: []fakeReply{{content: acmeReply}}}
		res, err := newTestExtractor(t, p).Extract(context.Background(), ExtractInput{OCRText: "Acme Traders"})
		require.NoError(t, err)

		assert.True(t, res.SchemaDrift, "day-first date does not match the schema")
		assert.Equal(t, "2024-01-05", *res.Invoice.InvoiceDate)
	})

	t.Run("conforming answer", func(t *testing.T) {
		reply := `{"invoice_number": "INV-77", "invoice_date": "2024-01-05", "currency": "INR", "total": 118, "line_items": []}`
		p := &fakeProvider{model: "vendor/model", replies: []fakeReply{{content: reply}}}
		res, err := newTestExtractor(t, p).Extract(context.Background(), ExtractInput{OCRText: "Acme Traders"})
		require.NoError(t, err)

		assert.False(t, res.SchemaDrift)
	})
}

func TestExtract_ImageWinsOverText(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{{content: acmeReply}}}
	image := "data:image/png;base64,AAAA"

	res, err := newTestExtractor(t, p).Extract(context.Background(), ExtractInput{
		ImageDataURL: image,
		OCRText:      "ignored for the prompt",
		Model:        "chosen/model",
	})
	require.NoError(t, err)

	assert.Equal(t, StateImageRequest, res.States[1])
	require.Len(t, p.calls, 1)
	assert.Equal(t, image, p.calls[0].ImageURL)
	assert.Equal(t, "chosen/model", p.calls[0].Model)
	assert.NotContains(t, p.calls[0].Prompt, "ignored for the prompt")
}

func TestExtract_RetriesOnDefaultModel(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{
		{err: NewUpstreamError(404, "No endpoints found that support image input", DefaultModel)},
		{content: acmeReply},
	}}

	res, err := newTestExtractor(t, p).Extract(context.Background(), ExtractInput{
		ImageDataURL: "data:image/png;base64,AAAA",
		Model:        "text-only/model",
	})
	require.NoError(t, err)

	assert.True(t, res.Retried)
	assert.Equal(t, DefaultModel, res.Model)
	require.Len(t, p.calls, 2)
	assert.Equal(t, "text-only/model", p.calls[0].Model)
	assert.Equal(t, DefaultModel, p.calls[1].Model)
	assert.Equal(t, []State{
		StateReceived,
		StateImageRequest,
		StateRemoteCallFailed,
		StateRetryWithDefaultModel,
		StateImageRequest,
		StateRemoteCallSucceeded,
	}, res.States[:6])
}

func TestExtract_RetriesAtMostOnce(t *testing.T) {
	imageErr := NewUpstreamError(404, "No endpoints found that support image input", DefaultModel)
	p := &fakeProvider{replies: []fakeReply{{err: imageErr}, {err: imageErr}}}

	res, err := newTestExtractor(t, p).Extract(context.Background(), ExtractInput{
		ImageDataURL: "data:image/png;base64,AAAA",
		Model:        "text-only/model",
	})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Len(t, p.calls, 2)
	assert.Equal(t, StateRemoteCallFailed, res.States[len(res.States)-1])
}

func TestExtract_NoRetry(t *testing.T) {
	tests := []struct {
		name  string
		model string
		err   error
	}{
		{"already default model", DefaultModel, NewUpstreamError(404, "No endpoints found that support image input", DefaultModel)},
		{"payment", "paid/model", NewUpstreamError(402, "no credit", DefaultModel)},
		{"transport", "paid/model", &TransportError{Provider: "fake", Err: errors.New("dial tcp: refused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{replies: []fakeReply{{err: tt.err}, {content: acmeReply}}}

			res, err := newTestExtractor(t, p).Extract(context.Background(), ExtractInput{
				ImageDataURL: "data:image/png;base64,AAAA",
				Model:        tt.model,
			})

			assert.ErrorIs(t, err, tt.err)
			assert.Len(t, p.calls, 1)
			assert.False(t, res.Retried)
			assert.NotContains(t, res.States, StateRetryWithDefaultModel)
		})
	}
}

func TestExtract_RescuesLineItems(t *testing.T) {
	p := &fakeProvider{model: "vendor/model", replies: []fakeReply{
		{content: `{"vendor_name": "Bolt Co", "line_items": []}`},
		{content: "```json\n[{\"description\": \"Bolt\", \"quantity\": 10, \"unit_price\": 5, \"line_total\": 50}]\n```"},
	}}

	res, err := newTestExtractor(t, p).Extract(context.Background(), ExtractInput{
		OCRText: "Bolt Co\nDescription Qty Rate Amount\nBolt 10 5 50",
	})
	require.NoError(t, err)

	require.Len(t, p.calls, 2)
	assert.Equal(t, "vendor/model", p.calls[1].Model, "rescue uses the same model")
	assert.Contains(t, p.calls[1].Prompt, "line_items")
	assert.Contains(t, p.calls[1].Prompt, "Bolt 10 5 50")

	require.Len(t, res.Invoice.LineItems, 1)
	assert.Equal(t, "Bolt", *res.Invoice.LineItems[0].Description)
	assert.Equal(t, 50.0, *res.Invoice.LineItems[0].LineTotal)
}

func TestExtract_RescueFailureKeepsRecord(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{
		{content: `{"vendor_name": "Bolt Co"}`},
		{err: NewUpstreamError(500, "overloaded", DefaultModel)},
	}}

	res, err := newTestExtractor(t, p).Extract(context.Background(), ExtractInput{
		OCRText: "Bolt Co\nDescription Qty Amount",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bolt Co", *res.Invoice.VendorName)
	assert.Empty(t, res.Invoice.LineItems)
}

func TestExtract_NoRescueForImages(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{{content: `{"vendor_name": "Bolt Co"}`}}}

	_, err := newTestExtractor(t, p).Extract(context.Background(), ExtractInput{
		ImageDataURL: "data:image/png;base64,AAAA",
	})
	require.NoError(t, err)
	assert.Len(t, p.calls, 1)
}

func TestExtract_RepairFailure(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{{content: "Sorry, I cannot read this invoice."}}}

	res, err := newTestExtractor(t, p).Extract(context.Background(), ExtractInput{OCRText: "text"})

	var repairErr *RepairError
	require.ErrorAs(t, err, &repairErr)
	assert.Equal(t, "Sorry, I cannot read this invoice.", res.Raw)
	assert.Equal(t, StateRepairFailed, res.States[len(res.States)-1])
	assert.Nil(t, res.Invoice)
}

func TestExtract_MissingInput(t *testing.T) {
	p := &fakeProvider{}

	res, err := newTestExtractor(t, p).Extract(context.Background(), ExtractInput{OCRText: "  \n "})

	assert.ErrorIs(t, err, ErrMissingInput)
	assert.Equal(t, []State{StateReceived, StateRejected}, res.States)
	assert.Empty(t, p.calls)
}

func TestShouldRetryWithDefaultModel(t *testing.T) {
	imageErr := NewUpstreamError(404, "No endpoints found that support image input", DefaultModel)

	assert.True(t, ShouldRetryWithDefaultModel(imageErr, "other/model", DefaultModel))
	assert.False(t, ShouldRetryWithDefaultModel(imageErr, DefaultModel, DefaultModel))
	assert.False(t, ShouldRetryWithDefaultModel(nil, "other/model", DefaultModel))
	assert.False(t, ShouldRetryWithDefaultModel(
		NewUpstreamError(400, "No endpoints found that support image input", DefaultModel), "other/model", DefaultModel))
	assert.False(t, ShouldRetryWithDefaultModel(
		NewUpstreamError(404, "model not found", DefaultModel), "other/model", DefaultModel))
	assert.False(t, ShouldRetryWithDefaultModel(errors.New("boom"), "other/model", DefaultModel))
}

func TestDebug(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{
		{content: `{"vendor": "Acme"}`},
		{content: "just some text"},
	}}
	e := newTestExtractor(t, p)

	res, err := e.Debug(context.Background(), "data:image/png;base64,AAAA", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"vendor": "Acme"}, res.Raw)
	assert.Empty(t, res.RawText)
	assert.Equal(t, DefaultModel, res.Model)

	require.Len(t, p.calls, 1)
	assert.Equal(t, 1000, p.calls[0].MaxTokens)
	require.NotNil(t, p.calls[0].Temperature)
	assert.Zero(t, *p.calls[0].Temperature)

	res, err = e.Debug(context.Background(), "data:image/png;base64,AAAA", "m")
	require.NoError(t, err)
	assert.Nil(t, res.Raw)
	assert.Equal(t, "just some text", res.RawText)

	_, err = e.Debug(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrMissingInput)
}
