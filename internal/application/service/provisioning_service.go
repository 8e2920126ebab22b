package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	"github.com/garyjia/procurement-approvals/pkg/utils"
)

// TenantSetup is the declarative configuration of one tenant
type TenantSetup struct {
	Tenant      entity.Tenant       `json:"tenant" yaml:"tenant"`
	Users       []entity.User       `json:"users" yaml:"users"`
	CostCenters []entity.CostCenter `json:"cost_centers" yaml:"cost_centers"`
	Catalog     []ProductSetup      `json:"catalog" yaml:"catalog"`
	Workflows   []WorkflowSetup     `json:"workflows" yaml:"workflows"`
}

// ProductSetup declares a catalog product. Prices are decimal strings.
type ProductSetup struct {
	ID          string `json:"id" yaml:"id"`
	VendorID    string `json:"vendor_id" yaml:"vendor_id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	UnitPrice   string `json:"unit_price" yaml:"unit_price"`
	Currency    string `json:"currency" yaml:"currency"`
	UOM         string `json:"uom" yaml:"uom"`
	Inactive    bool   `json:"inactive" yaml:"inactive"`
}

// WorkflowSetup declares an approval workflow template. An empty MaxAmount is unbounded.
type WorkflowSetup struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	MinAmount  string         `json:"min_amount" yaml:"min_amount"`
	MaxAmount  string         `json:"max_amount" yaml:"max_amount"`
	StageNames map[int]string `json:"stage_names" yaml:"stage_names"`
	RoleLabels map[int]string `json:"role_labels" yaml:"role_labels"`
	Inactive   bool           `json:"inactive" yaml:"inactive"`
}

// ProvisionReport counts the records written by ProvisionTenant
type ProvisionReport struct {
	TenantID    string `json:"tenant_id"`
	Users       int    `json:"users"`
	CostCenters int    `json:"cost_centers"`
	Products    int    `json:"products"`
	Workflows   int    `json:"workflows"`
}

// ProvisioningService writes tenant configuration. It is never called on the
// submission path; submission fails with a configuration error instead.
type ProvisioningService interface {
	ProvisionTenant(ctx context.Context, setup TenantSetup) (*ProvisionReport, error)
}

// ProvisioningDeps groups the repositories written during provisioning
type ProvisioningDeps struct {
	Tenants     port.TenantRepository
	Users       port.UserRepository
	CostCenters port.CostCenterRepository
	Catalog     port.CatalogRepository
	Workflows   port.WorkflowRepository
	TxManager   port.TransactionManager
	Logger      Logger
}

type provisioningServiceImpl struct {
	deps ProvisioningDeps
}

// NewProvisioningService creates a new ProvisioningService
func NewProvisioningService(deps ProvisioningDeps) ProvisioningService {
	return &provisioningServiceImpl{deps: deps}
}

// ProvisionTenant validates the setup and upserts every record in one transaction
func (s *provisioningServiceImpl) ProvisionTenant(ctx context.Context, setup TenantSetup) (*ProvisionReport, error) {
	tenant := setup.Tenant
	tenant.ID = strings.TrimSpace(tenant.ID)
	tenant.Code = strings.ToUpper(strings.TrimSpace(tenant.Code))
	if tenant.ID == "" || tenant.Code == "" {
		return nil, invalid("tenant id and code are required")
	}
	if err := utils.ValidateCode(tenant.Code); err != nil {
		return nil, invalid("%v", err)
	}
	tenant.Name = utils.SanitizeString(tenant.Name)

	products, err := buildProducts(tenant.ID, setup.Catalog)
	if err != nil {
		return nil, err
	}
	workflows, err := buildWorkflows(tenant.ID, setup.Workflows)
	if err != nil {
		return nil, err
	}

	report := &ProvisionReport{TenantID: tenant.ID}
	err = s.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		now := time.Now().UTC()
		tenant.CreatedAt = now
		if err := s.deps.Tenants.Upsert(txCtx, &tenant); err != nil {
			return fmt.Errorf("upsert tenant: %w", err)
		}

		for i := range setup.Users {
			user := setup.Users[i]
			if strings.TrimSpace(user.ID) == "" {
				return invalid("user %d has no id", i+1)
			}
			if user.Email != "" {
				if err := utils.ValidateEmail(user.Email); err != nil {
					return invalid("user %s: %v", user.ID, err)
				}
			}
			user.TenantID = tenant.ID
			user.CreatedAt = now
			if err := s.deps.Users.Upsert(txCtx, &user); err != nil {
				return fmt.Errorf("upsert user %s: %w", user.ID, err)
			}
			report.Users++
		}

		for i := range setup.CostCenters {
			cc := setup.CostCenters[i]
			if strings.TrimSpace(cc.ID) == "" {
				return invalid("cost center %d has no id", i+1)
			}
			cc.TenantID = tenant.ID
			cc.CreatedAt = now
			if err := s.deps.CostCenters.Upsert(txCtx, &cc); err != nil {
				return fmt.Errorf("upsert cost center %s: %w", cc.ID, err)
			}
			report.CostCenters++
		}

		for _, product := range products {
			if err := s.deps.Catalog.Upsert(txCtx, product); err != nil {
				return fmt.Errorf("upsert catalog product %s: %w", product.ID, err)
			}
			report.Products++
		}

		for _, wf := range workflows {
			wf.CreatedAt = now
			if err := s.deps.Workflows.Upsert(txCtx, wf); err != nil {
				return fmt.Errorf("upsert workflow %s: %w", wf.ID, err)
			}
			report.Workflows++
		}
		return nil
	})
	if err != nil {
		s.deps.Logger.Error("Failed to provision tenant", "error", err, "tenant_id", tenant.ID)
		return nil, err
	}

	s.deps.Logger.Info("Tenant provisioned",
		"tenant_id", tenant.ID,
		"users", report.Users,
		"cost_centers", report.CostCenters,
		"products", report.Products,
		"workflows", report.Workflows,
	)
	return report, nil
}

func buildProducts(tenantID string, setups []ProductSetup) ([]*entity.CatalogProduct, error) {
	products := make([]*entity.CatalogProduct, 0, len(setups))
	for i, p := range setups {
		if strings.TrimSpace(p.ID) == "" {
			return nil, invalid("catalog product %d has no id", i+1)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(p.UnitPrice))
		if err != nil || price.IsNegative() {
			return nil, invalid("catalog product %s has an invalid unit price %q", p.ID, p.UnitPrice)
		}
		currency := strings.ToUpper(p.Currency)
		if currency == "" {
			currency = DefaultCurrency
		}
		products = append(products, &entity.CatalogProduct{
			ID:          p.ID,
			TenantID:    tenantID,
			VendorID:    p.VendorID,
			Name:        p.Name,
			Description: p.Description,
			UnitPrice:   price,
			Currency:    currency,
			UOM:         p.UOM,
			IsActive:    !p.Inactive,
		})
	}
	return products, nil
}

func buildWorkflows(tenantID string, setups []WorkflowSetup) ([]*entity.ApprovalWorkflow, error) {
	workflows := make([]*entity.ApprovalWorkflow, 0, len(setups))
	for i, w := range setups {
		if strings.TrimSpace(w.ID) == "" {
			return nil, invalid("workflow %d has no id", i+1)
		}

		minAmount := decimal.Zero
		if strings.TrimSpace(w.MinAmount) != "" {
			v, err := decimal.NewFromString(strings.TrimSpace(w.MinAmount))
			if err != nil || v.IsNegative() {
				return nil, invalid("workflow %s has an invalid min_amount %q", w.ID, w.MinAmount)
			}
			minAmount = v
		}

		var maxAmount *decimal.Decimal
		if strings.TrimSpace(w.MaxAmount) != "" {
			v, err := decimal.NewFromString(strings.TrimSpace(w.MaxAmount))
			if err != nil || v.LessThan(minAmount) {
				return nil, invalid("workflow %s has an invalid max_amount %q", w.ID, w.MaxAmount)
			}
			maxAmount = &v
		}

		name := w.Name
		if name == "" {
			name = w.ID
		}
		workflows = append(workflows, &entity.ApprovalWorkflow{
			ID:         w.ID,
			TenantID:   tenantID,
			Name:       name,
			MinAmount:  minAmount,
			MaxAmount:  maxAmount,
			StageNames: w.StageNames,
			RoleLabels: w.RoleLabels,
			IsActive:   !w.Inactive,
		})
	}
	return workflows, nil
}
