package entity

// RequisitionStatus is the lifecycle status of a requisition
type RequisitionStatus string

const (
	RequisitionStatusDraft           RequisitionStatus = "DRAFT"
	RequisitionStatusPendingApproval RequisitionStatus = "PENDING_APPROVAL"
	RequisitionStatusApproved        RequisitionStatus = "APPROVED"
	RequisitionStatusRejected        RequisitionStatus = "REJECTED"
	RequisitionStatusReturned        RequisitionStatus = "RETURNED"
	RequisitionStatusCancelled       RequisitionStatus = "CANCELLED"
)

// IsEditable reports whether line items may still change
func (s RequisitionStatus) IsEditable() bool {
	return s == RequisitionStatusDraft || s == RequisitionStatusReturned
}

// RequisitionType discriminates catalog-sourced from custom requisitions
type RequisitionType string

const (
	RequisitionTypeCatalogItem RequisitionType = "CATALOG_ITEM"
	RequisitionTypeCustomItem  RequisitionType = "CUSTOM_ITEM"
)

// ApproverStatus is the decision status of one approver in a stage
type ApproverStatus string

const (
	ApproverStatusPending   ApproverStatus = "PENDING"
	ApproverStatusApproved  ApproverStatus = "APPROVED"
	ApproverStatusRejected  ApproverStatus = "REJECTED"
	ApproverStatusReturned  ApproverStatus = "RETURNED"
	ApproverStatusCancelled ApproverStatus = "CANCELLED"
)

// DocumentType identifies the downstream document generated for an approved requisition
type DocumentType string

const (
	DocumentTypePurchaseOrder DocumentType = "PURCHASE_ORDER"
	DocumentTypeRFQ           DocumentType = "RFQ"
)

// Prefix returns the number prefix used for the document type
func (t DocumentType) Prefix() string {
	switch t {
	case DocumentTypePurchaseOrder:
		return "PO"
	case DocumentTypeRFQ:
		return "RFQ"
	default:
		return ""
	}
}

// GenerationStatus tracks downstream document generation on a requisition
type GenerationStatus string

const (
	GenerationStatusNone      GenerationStatus = ""
	GenerationStatusPending   GenerationStatus = "PENDING"
	GenerationStatusGenerated GenerationStatus = "GENERATED"
	GenerationStatusSkipped   GenerationStatus = "SKIPPED"
	GenerationStatusFailed    GenerationStatus = "FAILED"
)

// IsRetryable reports whether the generation can be attempted again
func (s GenerationStatus) IsRetryable() bool {
	return s == GenerationStatusPending || s == GenerationStatusFailed
}

// DocumentStatus is the status of a generated PO or RFQ
type DocumentStatus string

const (
	DocumentStatusDraft DocumentStatus = "DRAFT"
)

// Role labels used when seeding stage approvers
const (
	RoleCostCenterHead = "COST_CENTER_HEAD"
	RoleApprover       = "APPROVER"
)

// History action types
const (
	HistoryActionSubmit   = "SUBMIT"
	HistoryActionResubmit = "RESUBMIT"
	HistoryActionApprove  = "APPROVE"
	HistoryActionReject   = "REJECT"
	HistoryActionReturn   = "RETURN"
	HistoryActionCancel   = "CANCEL"
)
