package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/procurement-approvals/internal/domain/workflow"
)

// approvalNamespace scopes deterministic approval instance ids
var approvalNamespace = uuid.MustParse("6f1c2a4e-5d3b-4c8a-9e7f-0a1b2c3d4e5f")

// ApprovalInstanceID derives the instance id from the requisition id so that
// concurrent submissions of the same requisition collide on the primary key.
func ApprovalInstanceID(requisitionID string) string {
	return uuid.NewSHA1(approvalNamespace, []byte(requisitionID)).String()
}

// ApprovalInstance is the per-requisition approval record
type ApprovalInstance struct {
	ID                string          `json:"id"`
	TenantID          string          `json:"tenant_id"`
	RequisitionID     string          `json:"requisition_id"`
	WorkflowID        string          `json:"workflow_id"`
	Status            workflow.State  `json:"status"`
	CurrentStageIndex int             `json:"current_stage_index"`
	Round             int             `json:"round"`
	Stages            []ApprovalStage `json:"stages"`
	Version           int64           `json:"version"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CurrentStage returns the active stage or nil when out of range
func (a *ApprovalInstance) CurrentStage() *ApprovalStage {
	if a.CurrentStageIndex < 0 || a.CurrentStageIndex >= len(a.Stages) {
		return nil
	}
	return &a.Stages[a.CurrentStageIndex]
}

// IsLastStage reports whether the current stage is the final one
func (a *ApprovalInstance) IsLastStage() bool {
	return a.CurrentStageIndex == len(a.Stages)-1
}

// CurrentApproverIDs lists users still pending in the current stage
func (a *ApprovalInstance) CurrentApproverIDs() []string {
	stage := a.CurrentStage()
	if stage == nil || a.Status != workflow.StatePendingApproval {
		return nil
	}
	return stage.PendingUserIDs()
}

// ApprovalStage is one ordered level of approvers
type ApprovalStage struct {
	Index     int             `json:"index"`
	Name      string          `json:"name"`
	Level     int             `json:"level"`
	Approvers []StageApprover `json:"approvers"`
}

// Find returns the approver entry for userID in the stage
func (s *ApprovalStage) Find(userID string) *StageApprover {
	for i := range s.Approvers {
		if s.Approvers[i].UserID == userID {
			return &s.Approvers[i]
		}
	}
	return nil
}

// PendingUserIDs lists approvers that have not yet acted
func (s *ApprovalStage) PendingUserIDs() []string {
	var ids []string
	for _, ap := range s.Approvers {
		if ap.Status == ApproverStatusPending {
			ids = append(ids, ap.UserID)
		}
	}
	return ids
}

// AllApproved reports whether every approver in the stage approved
func (s *ApprovalStage) AllApproved() bool {
	if len(s.Approvers) == 0 {
		return false
	}
	for _, ap := range s.Approvers {
		if ap.Status != ApproverStatusApproved {
			return false
		}
	}
	return true
}

// StageApprover is an approver assignment within a stage
type StageApprover struct {
	UserID   string         `json:"user_id"`
	Role     string         `json:"role"`
	Order    int            `json:"order"`
	Status   ApproverStatus `json:"status"`
	Comments string         `json:"comments,omitempty"`
	ActedAt  *time.Time     `json:"acted_at,omitempty"`
}

// LegacyApprover is the flat, ranked approver view kept for older clients
type LegacyApprover struct {
	UserID string         `json:"user_id"`
	Level  int            `json:"level"`
	Order  int            `json:"order"`
	Status ApproverStatus `json:"status"`
}

// LegacyApprovers projects the staged instance onto the flat list
func (a *ApprovalInstance) LegacyApprovers() []LegacyApprover {
	var out []LegacyApprover
	order := 1
	for _, stage := range a.Stages {
		for _, ap := range stage.Approvers {
			out = append(out, LegacyApprover{UserID: ap.UserID, Level: stage.Level, Order: order, Status: ap.Status})
			order++
		}
	}
	return out
}
