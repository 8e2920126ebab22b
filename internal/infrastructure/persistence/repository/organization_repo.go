package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	"github.com/garyjia/procurement-approvals/internal/infrastructure/persistence/sqldb"
)

// TenantRepository implements port.TenantRepository
type TenantRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *sqldb.DB, logger *zap.Logger) port.TenantRepository {
	return &TenantRepository{db: db, logger: logger}
}

// Upsert inserts or renames a tenant
func (r *TenantRepository) Upsert(ctx context.Context, tenant *entity.Tenant) error {
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO tenants (id, code, name, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET code = excluded.code, name = excluded.name`

	if _, err := r.db.ExecContext(ctx, query, tenant.ID, tenant.Code, tenant.Name, tenant.CreatedAt); err != nil {
		r.logger.Error("Failed to upsert tenant", zap.String("tenant_id", tenant.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	var t entity.Tenant
	err := r.db.QueryRowContext(ctx, `SELECT id, code, name, created_at FROM tenants WHERE id = ?`, id).
		Scan(&t.ID, &t.Code, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqldb.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// Upsert inserts or updates a user
func (r *UserRepository) Upsert(ctx context.Context, user *entity.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO users (tenant_id, id, name, email, lark_open_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = excluded.name, email = excluded.email, lark_open_id = excluded.lark_open_id`

	_, err := r.db.ExecContext(ctx, query, user.TenantID, user.ID, user.Name, user.Email, user.LarkOpenID, user.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user of a tenant
func (r *UserRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.User, error) {
	users, err := r.GetByIDs(ctx, tenantID, []string{id})
	if err != nil || len(users) == 0 {
		return nil, err
	}
	return users[0], nil
}

// GetByIDs retrieves the users of a tenant among ids
func (r *UserRepository) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*entity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT tenant_id, id, name, email, lark_open_id, created_at FROM users
		WHERE tenant_id = ? AND id IN (` + placeholders(len(ids)) + `)
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, append([]interface{}{tenantID}, stringArgs(ids)...)...)
	if err != nil {
		r.logger.Error("Failed to get users", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.TenantID, &u.ID, &u.Name, &u.Email, &u.LarkOpenID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// CostCenterRepository implements port.CostCenterRepository
type CostCenterRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewCostCenterRepository creates a new cost center repository
func NewCostCenterRepository(db *sqldb.DB, logger *zap.Logger) port.CostCenterRepository {
	return &CostCenterRepository{db: db, logger: logger}
}

// Upsert writes a cost center and replaces its approver list
func (r *CostCenterRepository) Upsert(ctx context.Context, cc *entity.CostCenter) error {
	if cc.CreatedAt.IsZero() {
		cc.CreatedAt = time.Now().UTC()
	}
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		query := `INSERT INTO cost_centers (tenant_id, id, code, name, head_user_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (tenant_id, id) DO UPDATE SET
				code = excluded.code, name = excluded.name, head_user_id = excluded.head_user_id`

		if _, err := r.db.ExecContext(txCtx, query, cc.TenantID, cc.ID, cc.Code, cc.Name, cc.HeadUserID, cc.CreatedAt); err != nil {
			r.logger.Error("Failed to upsert cost center", zap.String("cost_center_id", cc.ID), zap.Error(err))
			return fmt.Errorf("failed to upsert cost center: %w", err)
		}

		if _, err := r.db.ExecContext(txCtx,
			`DELETE FROM cost_center_approvers WHERE tenant_id = ? AND cost_center_id = ?`, cc.TenantID, cc.ID); err != nil {
			return fmt.Errorf("failed to clear cost center approvers: %w", err)
		}
		for i, ap := range cc.Approvers {
			_, err := r.db.ExecContext(txCtx, `
				INSERT INTO cost_center_approvers (tenant_id, cost_center_id, position, user_id, level)
				VALUES (?, ?, ?, ?, ?)`, cc.TenantID, cc.ID, i, ap.UserID, ap.Level)
			if err != nil {
				return fmt.Errorf("failed to insert cost center approver: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves a cost center with its approvers in configured order
func (r *CostCenterRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.CostCenter, error) {
	var cc entity.CostCenter
	err := r.db.QueryRowContext(ctx, `
		SELECT tenant_id, id, code, name, head_user_id, created_at
		FROM cost_centers WHERE tenant_id = ? AND id = ?`, tenantID, id).
		Scan(&cc.TenantID, &cc.ID, &cc.Code, &cc.Name, &cc.HeadUserID, &cc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get cost center", zap.String("cost_center_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get cost center: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, level FROM cost_center_approvers
		WHERE tenant_id = ? AND cost_center_id = ?
		ORDER BY position ASC`, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get cost center approvers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ap entity.CostCenterApprover
		if err := rows.Scan(&ap.UserID, &ap.Level); err != nil {
			return nil, fmt.Errorf("failed to scan cost center approver: %w", err)
		}
		cc.Approvers = append(cc.Approvers, ap)
	}
	return &cc, rows.Err()
}

// CatalogRepository implements port.CatalogRepository
type CatalogRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sqldb.DB, logger *zap.Logger) port.CatalogRepository {
	return &CatalogRepository{db: db, logger: logger}
}

// Upsert inserts or updates a catalog product
func (r *CatalogRepository) Upsert(ctx context.Context, p *entity.CatalogProduct) error {
	query := `INSERT INTO catalog_products
			(tenant_id, id, vendor_id, name, description, unit_price, currency, uom, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			vendor_id = excluded.vendor_id, name = excluded.name, description = excluded.description,
			unit_price = excluded.unit_price, currency = excluded.currency, uom = excluded.uom,
			is_active = excluded.is_active`

	_, err := r.db.ExecContext(ctx, query,
		p.TenantID, p.ID, p.VendorID, p.Name, p.Description, p.UnitPrice, p.Currency, p.UOM, p.IsActive)
	if err != nil {
		r.logger.Error("Failed to upsert catalog product", zap.String("product_id", p.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert catalog product: %w", err)
	}
	return nil
}

// GetByID retrieves a catalog product
func (r *CatalogRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.CatalogProduct, error) {
	var p entity.CatalogProduct
	err := r.db.QueryRowContext(ctx, `
		SELECT tenant_id, id, vendor_id, name, description, unit_price, currency, uom, is_active
		FROM catalog_products WHERE tenant_id = ? AND id = ?`, tenantID, id).
		Scan(&p.TenantID, &p.ID, &p.VendorID, &p.Name, &p.Description, &p.UnitPrice, &p.Currency, &p.UOM, &p.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog product: %w", err)
	}
	return &p, nil
}

var (
	_ port.TenantRepository     = (*TenantRepository)(nil)
	_ port.UserRepository       = (*UserRepository)(nil)
	_ port.CostCenterRepository = (*CostCenterRepository)(nil)
	_ port.CatalogRepository    = (*CatalogRepository)(nil)
)
