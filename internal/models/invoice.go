package models

import "time"

// InvoiceLineItem represents one purchased good or service on an invoice.
// Every field is optional; nil marshals to JSON null.
type InvoiceLineItem struct {
	Description        *string  `json:"description"`
	HSNCode            *string  `json:"hsn_code"`
	Quantity           *float64 `json:"quantity"`
	Unit               *string  `json:"unit"`
	UnitPrice          *float64 `json:"unit_price"`
	Discount           *float64 `json:"discount"`
	DiscountPercentage *float64 `json:"discount_percentage"`
	Tax                *float64 `json:"tax"`
	TaxRate            *float64 `json:"tax_rate"`
	LineTotal          *float64 `json:"line_total"`
}

// InvoiceData is the canonical extracted invoice
type InvoiceData struct {
	// Vendor
	VendorName      *string `json:"vendor_name"`
	VendorGSTNumber *string `json:"vendor_gst_number"`
	VendorAddress   *string `json:"vendor_address"`
	VendorPhone     *string `json:"vendor_phone"`
	VendorEmail     *string `json:"vendor_email"`
	VendorWebsite   *string `json:"vendor_website"`

	// Invoice metadata
	InvoiceNumber  *string `json:"invoice_number"`
	InvoiceDate    *string `json:"invoice_date"` // YYYY-MM-DD
	DueDate        *string `json:"due_date"`     // YYYY-MM-DD
	PONumber       *string `json:"po_number"`
	EwayBillNumber *string `json:"eway_bill_number"`
	VehicleNumber  *string `json:"vehicle_number"`

	// Buyer
	BuyerName      *string `json:"buyer_name"`
	BuyerGSTNumber *string `json:"buyer_gst_number"`
	BuyerAddress   *string `json:"buyer_address"`

	// Ship to
	ShippingName    *string `json:"shipping_name"`
	ShippingAddress *string `json:"shipping_address"`

	Currency *string `json:"currency"`

	// Financial summary
	Subtotal           *float64 `json:"subtotal"`
	Discount           *float64 `json:"discount"`
	DiscountPercentage *float64 `json:"discount_percentage"`
	Shipping           *float64 `json:"shipping"`
	Tax                *float64 `json:"tax"`
	Total              *float64 `json:"total"`
	AmountInWords      *string  `json:"amount_in_words"`

	// GST breakdown
	IGSTRate   *float64 `json:"igst_rate"`
	IGSTAmount *float64 `json:"igst_amount"`
	CGSTRate   *float64 `json:"cgst_rate"`
	CGSTAmount *float64 `json:"cgst_amount"`
	SGSTRate   *float64 `json:"sgst_rate"`
	SGSTAmount *float64 `json:"sgst_amount"`

	// Bank
	BankName      *string `json:"bank_name"`
	BankBranch    *string `json:"bank_branch"`
	AccountNumber *string `json:"account_number"`
	IFSCCode      *string `json:"ifsc_code"`
	UPIID         *string `json:"upi_id"`

	LineItems []InvoiceLineItem `json:"line_items"`

	TermsAndConditions *string `json:"terms_and_conditions"`
	Notes              *string `json:"notes"`
}

// NewInvoiceData returns an empty record with a non-nil line item slice
func NewInvoiceData() *InvoiceData {
	return &InvoiceData{LineItems: []InvoiceLineItem{}}
}

// ExtractRequest is the body of POST /api/extract-invoice
type ExtractRequest struct {
	Image    string `json:"image,omitempty"`   // base64 data URL
	OCRText  string `json:"ocrText,omitempty"` // raw OCR output
	APIKey   string `json:"apiKey,omitempty"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// ParseRequest is the body of POST /api/parse-ocr
type ParseRequest struct {
	OCRText string `json:"ocrText"`
}

// Config represents the service configuration
type Config struct {
	// Server settings
	Port        int    `yaml:"port"`
	Host        string `yaml:"host"`
	Environment string `yaml:"environment"` // "production" hides error details

	Log LogConfig `yaml:"log"`

	// AI provider settings
	AI AIConfig `yaml:"ai"`

	Auth AuthConfig `yaml:"auth"`

	Image ImageConfig `yaml:"image"`

	// Debug enables POST /api/extract-invoice/debug
	Debug bool `yaml:"debug"`
}

// IsProduction reports whether internal error details must be hidden
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Style string `yaml:"style"` // "json" or "console"
}

// AIConfig represents AI provider configuration
type AIConfig struct {
	// OpenRouter (OpenAI-compatible)
	OpenRouter OpenAIConfig `yaml:"openrouter"`

	// Plain OpenAI
	OpenAI OpenAIConfig `yaml:"openai"`

	// Google Gemini
	Gemini GeminiConfig `yaml:"gemini"`

	// Local Ollama
	Ollama OllamaConfig `yaml:"ollama"`

	// Default provider to use
	DefaultProvider string `yaml:"default_provider"` // "openrouter", "openai", "gemini", "ollama"

	// Transport timeout for a single remote call
	Timeout time.Duration `yaml:"timeout"`
}

// OpenAIConfig for OpenRouter and other OpenAI-compatible endpoints
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
	Referer string `yaml:"referer,omitempty"` // HTTP-Referer header
	Title   string `yaml:"title,omitempty"`   // X-Title header
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// OllamaConfig for local Ollama
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"` // OpenAI-compatible endpoint, e.g. http://localhost:11434/v1
	Model   string `yaml:"model"`
}

// AuthConfig enables bearer token checks when JWTSecret is set
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// ImageConfig controls image preparation before a vision call
type ImageConfig struct {
	MaxDimension int `yaml:"max_dimension"`
}
