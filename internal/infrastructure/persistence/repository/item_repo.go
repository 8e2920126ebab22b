package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/persistence/sqldb"
)

// ItemRepository implements port.ItemRepository
type ItemRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewItemRepository creates a new requisition item repository
func NewItemRepository(db *sqldb.DB, logger *zap.Logger) port.ItemRepository {
	return &ItemRepository{db: db, logger: logger}
}

const itemColumns = `
	id, tenant_id, requisition_id, line_no, is_catalog_item, catalog_product_id,
	name, description, quantity, unit_of_measure, unit_price, total_price,
	currency, vendor_id, created_at, updated_at`

// Create inserts a new line item
func (r *ItemRepository) Create(ctx context.Context, item *entity.RequisitionItem) error {
	query := `INSERT INTO requisition_items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.TenantID, item.RequisitionID, item.LineNo, item.IsCatalogItem, item.CatalogProductID,
		item.Name, item.Description, item.Quantity, item.UnitOfMeasure, item.UnitPrice, item.TotalPrice,
		item.Currency, item.VendorID, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create requisition item",
			zap.String("requisition_id", item.RequisitionID), zap.Error(err))
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant-scoped line item
func (r *ItemRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.RequisitionItem, error) {
	query := `SELECT ` + itemColumns + ` FROM requisition_items WHERE tenant_id = ? AND id = ?`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get requisition item", zap.String("item_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListByRequisition returns the live items of a requisition in line order
func (r *ItemRepository) ListByRequisition(ctx context.Context, tenantID, requisitionID string) ([]*entity.RequisitionItem, error) {
	query := `SELECT ` + itemColumns + ` FROM requisition_items
		WHERE tenant_id = ? AND requisition_id = ?
		ORDER BY line_no ASC`

	rows, err := r.db.QueryContext(ctx, query, tenantID, requisitionID)
	if err != nil {
		r.logger.Error("Failed to list requisition items",
			zap.String("requisition_id", requisitionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*entity.RequisitionItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update writes all mutable fields of an item
func (r *ItemRepository) Update(ctx context.Context, item *entity.RequisitionItem) error {
	query := `UPDATE requisition_items SET
			is_catalog_item = ?, catalog_product_id = ?, name = ?, description = ?,
			quantity = ?, unit_of_measure = ?, unit_price = ?, total_price = ?,
			currency = ?, vendor_id = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`

	item.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		item.IsCatalogItem, item.CatalogProductID, item.Name, item.Description,
		item.Quantity, item.UnitOfMeasure, item.UnitPrice, item.TotalPrice,
		item.Currency, item.VendorID, item.UpdatedAt,
		item.TenantID, item.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update requisition item", zap.String("item_id", item.ID), zap.Error(err))
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

// UpdateTotalPrice writes a recomputed line total
func (r *ItemRepository) UpdateTotalPrice(ctx context.Context, tenantID, id string, total decimal.Decimal) error {
	query := `UPDATE requisition_items SET total_price = ? WHERE tenant_id = ? AND id = ?`
	if _, err := r.db.ExecContext(ctx, query, total, tenantID, id); err != nil {
		return fmt.Errorf("failed to update item total: %w", err)
	}
	return nil
}

// Delete removes a line item
func (r *ItemRepository) Delete(ctx context.Context, tenantID, id string) error {
	query := `DELETE FROM requisition_items WHERE tenant_id = ? AND id = ?`
	if _, err := r.db.ExecContext(ctx, query, tenantID, id); err != nil {
		r.logger.Error("Failed to delete requisition item", zap.String("item_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

func scanItem(row rowScanner) (*entity.RequisitionItem, error) {
	var item entity.RequisitionItem
	err := row.Scan(
		&item.ID, &item.TenantID, &item.RequisitionID, &item.LineNo, &item.IsCatalogItem, &item.CatalogProductID,
		&item.Name, &item.Description, &item.Quantity, &item.UnitOfMeasure, &item.UnitPrice, &item.TotalPrice,
		&item.Currency, &item.VendorID, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

var _ port.ItemRepository = (*ItemRepository)(nil)
