package entity

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalWorkflow is a tenant-level approval template selected by amount
type ApprovalWorkflow struct {
	ID         string           `json:"id"`
	TenantID   string           `json:"tenant_id"`
	Name       string           `json:"name"`
	MinAmount  decimal.Decimal  `json:"min_amount"`
	MaxAmount  *decimal.Decimal `json:"max_amount,omitempty"`
	StageNames map[int]string   `json:"stage_names,omitempty"`
	RoleLabels map[int]string   `json:"role_labels,omitempty"`
	IsActive   bool             `json:"is_active"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Matches reports whether the amount falls in [MinAmount, MaxAmount]
func (w *ApprovalWorkflow) Matches(amount decimal.Decimal) bool {
	if !w.IsActive || amount.LessThan(w.MinAmount) {
		return false
	}
	return w.MaxAmount == nil || amount.LessThanOrEqual(*w.MaxAmount)
}

// StageName returns the configured name for a level, or a generic one
func (w *ApprovalWorkflow) StageName(level int) string {
	if name, ok := w.StageNames[level]; ok && name != "" {
		return name
	}
	if level == 1 {
		return "Cost Center Head"
	}
	return "Level " + strconv.Itoa(level) + " Approval"
}

// RoleLabel returns the configured role for approvers at a level
func (w *ApprovalWorkflow) RoleLabel(level int) string {
	if role, ok := w.RoleLabels[level]; ok && role != "" {
		return role
	}
	return RoleApprover
}
