package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
)

// NumberingConfig controls human-readable document numbers
type NumberingConfig struct {
	RequisitionPrefix   string
	PurchaseOrderPrefix string
	RFQPrefix           string
	Padding             int
}

// DefaultNumberingConfig returns REQ/PO/RFQ prefixes with six-digit sequences
func DefaultNumberingConfig() NumberingConfig {
	return NumberingConfig{
		RequisitionPrefix:   "REQ",
		PurchaseOrderPrefix: entity.DocumentTypePurchaseOrder.Prefix(),
		RFQPrefix:           entity.DocumentTypeRFQ.Prefix(),
		Padding:             6,
	}
}

func (c NumberingConfig) prefixFor(docType entity.DocumentType) string {
	switch docType {
	case entity.DocumentTypePurchaseOrder:
		if c.PurchaseOrderPrefix != "" {
			return c.PurchaseOrderPrefix
		}
	case entity.DocumentTypeRFQ:
		if c.RFQPrefix != "" {
			return c.RFQPrefix
		}
	}
	return docType.Prefix()
}

// numberAllocator formats {PREFIX}-{TENANT}-{YEAR}-{SEQ}. The sequence is
// per tenant and prefix and never resets.
type numberAllocator struct {
	tenants   port.TenantRepository
	sequences port.SequenceRepository
	padding   int
}

func newNumberAllocator(tenants port.TenantRepository, sequences port.SequenceRepository, padding int) *numberAllocator {
	if padding <= 0 {
		padding = 6
	}
	return &numberAllocator{tenants: tenants, sequences: sequences, padding: padding}
}

func (a *numberAllocator) next(ctx context.Context, tenantID, prefix string, at time.Time) (string, error) {
	tenant, err := a.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("get tenant: %w", err)
	}
	code := tenantID
	if tenant != nil && tenant.Code != "" {
		code = tenant.Code
	}

	seq, err := a.sequences.Next(ctx, tenantID, prefix)
	if err != nil {
		return "", fmt.Errorf("allocate %s sequence: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%s-%d-%0*d", prefix, code, at.Year(), a.padding, seq), nil
}
