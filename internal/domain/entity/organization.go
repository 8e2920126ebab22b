package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tenant is an isolated customer organization
type Tenant struct {
	ID        string    `json:"id" yaml:"id"`
	Code      string    `json:"code" yaml:"code"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// User is a tenant member who can request or approve
type User struct {
	ID         string    `json:"id" yaml:"id"`
	TenantID   string    `json:"tenant_id" yaml:"-"`
	Name       string    `json:"name" yaml:"name"`
	Email      string    `json:"email" yaml:"email"`
	LarkOpenID string    `json:"lark_open_id,omitempty" yaml:"lark_open_id"`
	CreatedAt  time.Time `json:"created_at" yaml:"-"`
}

// CostCenterApprover is an explicitly configured approver with a level
type CostCenterApprover struct {
	UserID string `json:"user_id" yaml:"user_id"`
	Level  int    `json:"level" yaml:"level"`
}

// CostCenter is a budget-owning unit whose head and approvers gate spend
type CostCenter struct {
	ID         string               `json:"id" yaml:"id"`
	TenantID   string               `json:"tenant_id" yaml:"-"`
	Code       string               `json:"code" yaml:"code"`
	Name       string               `json:"name" yaml:"name"`
	HeadUserID string               `json:"head_user_id,omitempty" yaml:"head_user_id"`
	Approvers  []CostCenterApprover `json:"approvers" yaml:"approvers"`
	CreatedAt  time.Time            `json:"created_at" yaml:"-"`
}

// CatalogProduct is a purchasable product offered by a vendor
type CatalogProduct struct {
	ID          string          `json:"id" yaml:"id"`
	TenantID    string          `json:"tenant_id" yaml:"-"`
	VendorID    string          `json:"vendor_id" yaml:"vendor_id"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price" yaml:"unit_price"`
	Currency    string          `json:"currency" yaml:"currency"`
	UOM         string          `json:"uom,omitempty" yaml:"uom"`
	IsActive    bool            `json:"is_active" yaml:"is_active"`
}
