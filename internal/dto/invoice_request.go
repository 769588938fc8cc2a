package dto

// InvoiceRequest is the body sent to the backend to persist an invoice.
type InvoiceRequest struct {
	KamyonPlaka string  `json:"kamyon_plaka"`
	Tonaj       float64 `json:"tonaj"`
	Tarih       string  `json:"tarih"` // ISO-8601
}

// SubmitForm holds the operator-supplied metadata for a submission.
type SubmitForm struct {
	KamyonPlaka string `json:"kamyon_plaka"`
}

// CreatedInvoice is what the backend acknowledged for a submission.
type CreatedInvoice struct {
	RemoteID string
	Request  InvoiceRequest
}
