package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder is generated for an approved requisition with a known vendor
type PurchaseOrder struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	Number        string          `json:"number"`
	RequisitionID string          `json:"requisition_id"`
	VendorID      string          `json:"vendor_id"`
	Status        DocumentStatus  `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	CreatedBy     string          `json:"created_by"`
	Items         []*DocumentItem `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RFQ is a request for quotation generated when no single vendor is known
type RFQ struct {
	ID                 string          `json:"id"`
	TenantID           string          `json:"tenant_id"`
	Number             string          `json:"number"`
	RequisitionID      string          `json:"requisition_id"`
	Title              string          `json:"title"`
	Status             DocumentStatus  `json:"status"`
	EstimatedTotal     decimal.Decimal `json:"estimated_total"`
	Currency           string          `json:"currency"`
	SubmissionDeadline time.Time       `json:"submission_deadline"`
	CreatedBy          string          `json:"created_by"`
	Items              []*DocumentItem `json:"items"`
	CreatedAt          time.Time       `json:"created_at"`
}

// DocumentItem is a PO or RFQ line copied from a requisition item
type DocumentItem struct {
	ID                string          `json:"id"`
	DocumentID        string          `json:"document_id"`
	RequisitionItemID string          `json:"requisition_item_id"`
	LineNo            int             `json:"line_no"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Quantity          decimal.Decimal `json:"quantity"`
	UnitOfMeasure     string          `json:"unit_of_measure,omitempty"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	TotalPrice        decimal.Decimal `json:"total_price"`
}

// GeneratedDocument is the result summary of a generation attempt
type GeneratedDocument struct {
	Type   DocumentType `json:"type"`
	ID     string       `json:"id"`
	Number string       `json:"number"`
}
