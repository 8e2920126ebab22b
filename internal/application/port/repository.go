package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/procurement-approvals/internal/domain/entity"
)

// Repositories return (nil, nil) when a tenant-scoped record does not exist.

// RequisitionRepository defines persistence operations for Requisition
type RequisitionRepository interface {
	Create(ctx context.Context, req *entity.Requisition) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.Requisition, error)
	GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*entity.Requisition, error)

	// UpdateTotals writes the derived total and requisition type
	UpdateTotals(ctx context.Context, tenantID, id string, total decimal.Decimal, reqType entity.RequisitionType) error

	// UpdateApprovalSnapshot writes status, instance reference, current stage,
	// current approvers, submission/approval timestamps and generation status
	UpdateApprovalSnapshot(ctx context.Context, req *entity.Requisition) error

	// LinkDocument sets the document back-reference only when none exists.
	// It reports false when another writer linked a document first.
	LinkDocument(ctx context.Context, tenantID, id string, docType entity.DocumentType, documentID string) (bool, error)

	// UpdateGeneration records a generation attempt outcome
	UpdateGeneration(ctx context.Context, tenantID, id string, status entity.GenerationStatus, errMsg string, countAttempt bool) error

	// ListGenerationBacklog lists approved requisitions across tenants whose
	// document is still pending or failed
	ListGenerationBacklog(ctx context.Context, approvedBefore time.Time, maxAttempts, limit int) ([]*entity.Requisition, error)
}

// ItemRepository defines persistence operations for RequisitionItem
type ItemRepository interface {
	Create(ctx context.Context, item *entity.RequisitionItem) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.RequisitionItem, error)
	ListByRequisition(ctx context.Context, tenantID, requisitionID string) ([]*entity.RequisitionItem, error)
	Update(ctx context.Context, item *entity.RequisitionItem) error
	UpdateTotalPrice(ctx context.Context, tenantID, id string, total decimal.Decimal) error
	Delete(ctx context.Context, tenantID, id string) error
}

// InstanceRepository defines persistence operations for ApprovalInstance.
// Stages and approvers are persisted with their instance.
type InstanceRepository interface {
	// Create inserts a new instance; a duplicate id yields ErrConcurrentModification
	Create(ctx context.Context, inst *entity.ApprovalInstance) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.ApprovalInstance, error)
	GetByRequisitionID(ctx context.Context, tenantID, requisitionID string) (*entity.ApprovalInstance, error)

	// Update writes the instance when its stored version equals inst.Version,
	// then increments inst.Version. Otherwise it returns ErrConcurrentModification.
	Update(ctx context.Context, inst *entity.ApprovalInstance) error

	// ListPendingForApprover lists pending instances whose current stage
	// holds userID as a Pending approver
	ListPendingForApprover(ctx context.Context, tenantID, userID string) ([]*entity.ApprovalInstance, error)
}

// HistoryRepository defines persistence operations for ApprovalHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ApprovalHistory) error
	ListByInstance(ctx context.Context, tenantID, instanceID string) ([]*entity.ApprovalHistory, error)
}

// WorkflowRepository defines persistence operations for ApprovalWorkflow templates
type WorkflowRepository interface {
	Upsert(ctx context.Context, wf *entity.ApprovalWorkflow) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.ApprovalWorkflow, error)
	ListActive(ctx context.Context, tenantID string) ([]*entity.ApprovalWorkflow, error)
}

// CostCenterRepository defines the cost center lookup
type CostCenterRepository interface {
	Upsert(ctx context.Context, cc *entity.CostCenter) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.CostCenter, error)
}

// UserRepository defines the user lookup
type UserRepository interface {
	Upsert(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.User, error)
	GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*entity.User, error)
}

// TenantRepository defines persistence operations for Tenant
type TenantRepository interface {
	Upsert(ctx context.Context, tenant *entity.Tenant) error
	GetByID(ctx context.Context, id string) (*entity.Tenant, error)
}

// CatalogRepository defines the catalog product lookup
type CatalogRepository interface {
	Upsert(ctx context.Context, product *entity.CatalogProduct) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.CatalogProduct, error)
}

// SequenceRepository allocates per-tenant monotonic counters
type SequenceRepository interface {
	Next(ctx context.Context, tenantID, prefix string) (int64, error)
}

// DocumentRepository defines persistence operations for purchase orders and RFQs.
// A second document for the same requisition yields ErrDocumentExists.
type DocumentRepository interface {
	CreatePurchaseOrder(ctx context.Context, po *entity.PurchaseOrder) error
	CreateRFQ(ctx context.Context, rfq *entity.RFQ) error
	GetPurchaseOrder(ctx context.Context, tenantID, id string) (*entity.PurchaseOrder, error)
	GetRFQ(ctx context.Context, tenantID, id string) (*entity.RFQ, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
