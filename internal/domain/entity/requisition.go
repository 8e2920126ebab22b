package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Requisition is a procurement request raised by a requester
type Requisition struct {
	ID           string            `json:"id"`
	TenantID     string            `json:"tenant_id"`
	Number       string            `json:"number"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	CreatedBy    string            `json:"created_by"`
	CostCenterID string            `json:"cost_center_id"`
	TotalAmount  decimal.Decimal   `json:"total_amount"`
	Currency     string            `json:"currency"`
	Type         RequisitionType   `json:"requisition_type"`
	Status       RequisitionStatus `json:"status"`

	// Denormalized approval snapshot, kept in sync with the approval instance
	ApprovalInstanceID string   `json:"approval_instance_id,omitempty"`
	CurrentStageName   string   `json:"current_stage_name,omitempty"`
	CurrentApproverIDs []string `json:"current_approver_ids,omitempty"`

	// Downstream document back-reference
	DocumentType       DocumentType     `json:"document_type,omitempty"`
	DocumentID         string           `json:"document_id,omitempty"`
	GenerationStatus   GenerationStatus `json:"generation_status,omitempty"`
	GenerationAttempts int              `json:"generation_attempts"`
	GenerationError    string           `json:"generation_error,omitempty"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasDocument reports whether a PO or RFQ is linked to the requisition
func (r *Requisition) HasDocument() bool {
	return r.DocumentID != ""
}

// GenerationPending reports the "approved with no linked PO/RFQ" gap
func (r *Requisition) GenerationPending() bool {
	return r.Status == RequisitionStatusApproved && !r.HasDocument() && r.GenerationStatus.IsRetryable()
}

// RequisitionItem is a line item owned by exactly one requisition
type RequisitionItem struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenant_id"`
	RequisitionID    string          `json:"requisition_id"`
	LineNo           int             `json:"line_no"`
	IsCatalogItem    bool            `json:"is_catalog_item"`
	CatalogProductID string          `json:"catalog_product_id,omitempty"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitOfMeasure    string          `json:"unit_of_measure,omitempty"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Currency         string          `json:"currency"`
	VendorID         string          `json:"vendor_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Recompute derives the line total from quantity and unit price
func (i *RequisitionItem) Recompute() {
	i.TotalPrice = i.Quantity.Mul(i.UnitPrice)
}

// Validate checks the catalog/custom invariant and the amounts
func (i *RequisitionItem) Validate() error {
	if i.IsCatalogItem && strings.TrimSpace(i.CatalogProductID) == "" {
		return fmt.Errorf("catalog item requires a catalog product id")
	}
	if !i.IsCatalogItem {
		if strings.TrimSpace(i.Name) == "" {
			return fmt.Errorf("custom item requires a name")
		}
		if !i.UnitPrice.IsPositive() {
			return fmt.Errorf("custom item requires a positive unit price")
		}
	}
	if !i.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive")
	}
	if i.UnitPrice.IsNegative() {
		return fmt.Errorf("unit price must not be negative")
	}
	return nil
}

// Totals is the derived aggregate of a requisition's live items
type Totals struct {
	TotalAmount decimal.Decimal
	Type        RequisitionType
}

// ComputeTotals sums item totals and derives the requisition type.
// A requisition with any non-catalog item is a custom-item requisition.
func ComputeTotals(items []*RequisitionItem) Totals {
	totals := Totals{TotalAmount: decimal.Zero, Type: RequisitionTypeCatalogItem}
	for _, item := range items {
		item.Recompute()
		totals.TotalAmount = totals.TotalAmount.Add(item.TotalPrice)
		if !item.IsCatalogItem {
			totals.Type = RequisitionTypeCustomItem
		}
	}
	return totals
}
