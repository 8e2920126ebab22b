package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	domainwf "github.com/garyjia/procurement-approvals/internal/domain/workflow"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/procurement-approvals/pkg/database"
)

// DocumentRepository implements port.DocumentRepository for purchase orders and RFQs
type DocumentRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sqldb.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{db: db, logger: logger}
}

// CreatePurchaseOrder inserts a PO with its lines
func (r *DocumentRepository) CreatePurchaseOrder(ctx context.Context, po *entity.PurchaseOrder) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		query := `INSERT INTO purchase_orders
				(id, tenant_id, number, requisition_id, vendor_id, status, total_amount, currency, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

		_, err := r.db.ExecContext(txCtx, query,
			po.ID, po.TenantID, po.Number, po.RequisitionID, po.VendorID, string(po.Status),
			po.TotalAmount, po.Currency, po.CreatedBy, po.CreatedAt)
		if database.IsUniqueViolationOn(err, "purchase_orders", "requisition_id") {
			return domainwf.ErrDocumentExists
		}
		if err != nil {
			r.logger.Error("Failed to create purchase order",
				zap.String("requisition_id", po.RequisitionID), zap.String("number", po.Number), zap.Error(err))
			return fmt.Errorf("failed to create purchase order: %w", err)
		}
		return r.insertItems(txCtx, po.ID, entity.DocumentTypePurchaseOrder, po.Items)
	})
}

// CreateRFQ inserts an RFQ with its lines
func (r *DocumentRepository) CreateRFQ(ctx context.Context, rfq *entity.RFQ) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		query := `INSERT INTO rfqs
				(id, tenant_id, number, requisition_id, title, status, estimated_total, currency,
				 submission_deadline, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

		_, err := r.db.ExecContext(txCtx, query,
			rfq.ID, rfq.TenantID, rfq.Number, rfq.RequisitionID, rfq.Title, string(rfq.Status),
			rfq.EstimatedTotal, rfq.Currency, rfq.SubmissionDeadline, rfq.CreatedBy, rfq.CreatedAt)
		if database.IsUniqueViolationOn(err, "rfqs", "requisition_id") {
			return domainwf.ErrDocumentExists
		}
		if err != nil {
			r.logger.Error("Failed to create RFQ",
				zap.String("requisition_id", rfq.RequisitionID), zap.String("number", rfq.Number), zap.Error(err))
			return fmt.Errorf("failed to create rfq: %w", err)
		}
		return r.insertItems(txCtx, rfq.ID, entity.DocumentTypeRFQ, rfq.Items)
	})
}

// GetPurchaseOrder retrieves a PO with its lines
func (r *DocumentRepository) GetPurchaseOrder(ctx context.Context, tenantID, id string) (*entity.PurchaseOrder, error) {
	var (
		po     entity.PurchaseOrder
		status string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, number, requisition_id, vendor_id, status, total_amount, currency, created_by, created_at
		FROM purchase_orders WHERE tenant_id = ? AND id = ?`, tenantID, id).
		Scan(&po.ID, &po.TenantID, &po.Number, &po.RequisitionID, &po.VendorID, &status,
			&po.TotalAmount, &po.Currency, &po.CreatedBy, &po.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}
	po.Status = entity.DocumentStatus(status)

	if po.Items, err = r.listItems(ctx, po.ID); err != nil {
		return nil, err
	}
	return &po, nil
}

// GetRFQ retrieves an RFQ with its lines
func (r *DocumentRepository) GetRFQ(ctx context.Context, tenantID, id string) (*entity.RFQ, error) {
	var (
		rfq    entity.RFQ
		status string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, number, requisition_id, title, status, estimated_total, currency,
			submission_deadline, created_by, created_at
		FROM rfqs WHERE tenant_id = ? AND id = ?`, tenantID, id).
		Scan(&rfq.ID, &rfq.TenantID, &rfq.Number, &rfq.RequisitionID, &rfq.Title, &status,
			&rfq.EstimatedTotal, &rfq.Currency, &rfq.SubmissionDeadline, &rfq.CreatedBy, &rfq.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rfq: %w", err)
	}
	rfq.Status = entity.DocumentStatus(status)

	if rfq.Items, err = r.listItems(ctx, rfq.ID); err != nil {
		return nil, err
	}
	return &rfq, nil
}

func (r *DocumentRepository) insertItems(ctx context.Context, documentID string, docType entity.DocumentType, items []*entity.DocumentItem) error {
	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.DocumentID = documentID
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO document_items
				(id, document_id, document_type, requisition_item_id, line_no, name, description,
				 quantity, unit_of_measure, unit_price, total_price)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, documentID, string(docType), item.RequisitionItemID, item.LineNo, item.Name, item.Description,
			item.Quantity, item.UnitOfMeasure, item.UnitPrice, item.TotalPrice)
		if err != nil {
			return fmt.Errorf("failed to insert document item: %w", err)
		}
	}
	return nil
}

func (r *DocumentRepository) listItems(ctx context.Context, documentID string) ([]*entity.DocumentItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, document_id, requisition_item_id, line_no, name, description,
			quantity, unit_of_measure, unit_price, total_price
		FROM document_items WHERE document_id = ? ORDER BY line_no ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document items: %w", err)
	}
	defer rows.Close()

	var items []*entity.DocumentItem
	for rows.Next() {
		var it entity.DocumentItem
		if err := rows.Scan(&it.ID, &it.DocumentID, &it.RequisitionItemID, &it.LineNo, &it.Name, &it.Description,
			&it.Quantity, &it.UnitOfMeasure, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, fmt.Errorf("failed to scan document item: %w", err)
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

var _ port.DocumentRepository = (*DocumentRepository)(nil)
