package normalize

import "github.com/snaptosheet/invoice-extract-service/internal/models"

// Invoice maps an untyped JSON value onto InvoiceData field by field.
// A non-object input is treated as an empty object and a non-array
// line_items as no items.
func Invoice(v any) *models.InvoiceData {
	obj, _ := v.(map[string]any)
	if obj == nil {
		obj = map[string]any{}
	}

	return &models.InvoiceData{
		VendorName:      String(obj["vendor_name"]),
		VendorGSTNumber: String(obj["vendor_gst_number"]),
		VendorAddress:   String(obj["vendor_address"]),
		VendorPhone:     String(obj["vendor_phone"]),
		VendorEmail:     String(obj["vendor_email"]),
		VendorWebsite:   String(obj["vendor_website"]),

		InvoiceNumber:  String(obj["invoice_number"]),
		InvoiceDate:    Date(obj["invoice_date"]),
		DueDate:        Date(obj["due_date"]),
		PONumber:       String(obj["po_number"]),
		EwayBillNumber: String(obj["eway_bill_number"]),
		VehicleNumber:  String(obj["vehicle_number"]),

		BuyerName:      String(obj["buyer_name"]),
		BuyerGSTNumber: String(obj["buyer_gst_number"]),
		BuyerAddress:   String(obj["buyer_address"]),

		ShippingName:    String(obj["shipping_name"]),
		ShippingAddress: String(obj["shipping_address"]),

		Currency: Currency(obj["currency"]),

		Subtotal:           Number(obj["subtotal"]),
		Discount:           Number(obj["discount"]),
		DiscountPercentage: Percent(obj["discount_percentage"]),
		Shipping:           Number(obj["shipping"]),
		Tax:                Number(obj["tax"]),
		Total:              Number(obj["total"]),
		AmountInWords:      String(obj["amount_in_words"]),

		IGSTRate:   Percent(obj["igst_rate"]),
		IGSTAmount: Number(obj["igst_amount"]),
		CGSTRate:   Percent(obj["cgst_rate"]),
		CGSTAmount: Number(obj["cgst_amount"]),
		SGSTRate:   Percent(obj["sgst_rate"]),
		SGSTAmount: Number(obj["sgst_amount"]),

		BankName:      String(obj["bank_name"]),
		BankBranch:    String(obj["bank_branch"]),
		AccountNumber: String(obj["account_number"]),
		IFSCCode:      String(obj["ifsc_code"]),
		UPIID:         String(obj["upi_id"]),

		LineItems: LineItems(obj["line_items"]),

		TermsAndConditions: String(obj["terms_and_conditions"]),
		Notes:              String(obj["notes"]),
	}
}

// LineItems normalizes every element of an untyped array. Anything that is
// not an array yields an empty, non-nil slice.
func LineItems(v any) []models.InvoiceLineItem {
	arr, ok := v.([]any)
	if !ok {
		return []models.InvoiceLineItem{}
	}
	items := make([]models.InvoiceLineItem, 0, len(arr))
	for _, el := range arr {
		items = append(items, LineItem(el))
	}
	return items
}

// LineItem normalizes a single untyped line item.
func LineItem(v any) models.InvoiceLineItem {
	obj, _ := v.(map[string]any)
	if obj == nil {
		obj = map[string]any{}
	}
	return models.InvoiceLineItem{
		Description:        String(obj["description"]),
		HSNCode:            String(obj["hsn_code"]),
		Quantity:           Number(obj["quantity"]),
		Unit:               String(obj["unit"]),
		UnitPrice:          Number(obj["unit_price"]),
		Discount:           Number(obj["discount"]),
		DiscountPercentage: Number(obj["discount_percentage"]),
		Tax:                Number(obj["tax"]),
		TaxRate:            Number(obj["tax_rate"]),
		LineTotal:          Number(obj["line_total"]),
	}
}
