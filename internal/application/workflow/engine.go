package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	domainwf "github.com/garyjia/procurement-approvals/internal/domain/workflow"
)

// Action is an approver's decision
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionReturn  Action = "return"
)

// ParseAction normalizes a decision action supplied by a caller
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionApprove, ActionReject, ActionReturn:
		return a, nil
	default:
		return "", domainwf.ErrUnknownAction
	}
}

// Decision is one approver's input to Decide
type Decision struct {
	ApproverID string
	Action     Action
	Comments   string
}

// Outcome describes what a decision did to the instance
type Outcome string

const (
	OutcomeRecorded      Outcome = "RECORDED"
	OutcomeStageAdvanced Outcome = "STAGE_ADVANCED"
	OutcomeApproved      Outcome = "APPROVED"
	OutcomeRejected      Outcome = "REJECTED"
	OutcomeReturned      Outcome = "RETURNED"
)

// DecisionResult is returned by Decide
type DecisionResult struct {
	Outcome            Outcome
	PreviousStatus     domainwf.State
	PreviousStageIndex int
	// GenerateDocument is set only on the transition into Approved
	GenerateDocument bool
	// NextApproverIDs lists the approvers that became actionable
	NextApproverIDs []string
}

// Engine applies approval lifecycle operations to an in-memory instance.
// It does no I/O; callers persist the mutated instance.
type Engine interface {
	// NewInstance seeds a Draft instance from a resolution. All approvers start Pending.
	NewInstance(tenantID, requisitionID string, template *entity.ApprovalWorkflow, res Resolution) (*entity.ApprovalInstance, error)

	// Start moves a Draft instance to PendingApproval. It reports false when already started.
	Start(ctx context.Context, inst *entity.ApprovalInstance) (bool, error)

	// Decide records an approver decision on the current stage
	Decide(ctx context.Context, inst *entity.ApprovalInstance, d Decision) (*DecisionResult, error)

	// Resubmit rebuilds the stages of a Returned instance and starts a new round
	Resubmit(ctx context.Context, inst *entity.ApprovalInstance, template *entity.ApprovalWorkflow, res Resolution) error

	// Cancel moves a non-terminal instance to Cancelled
	Cancel(ctx context.Context, inst *entity.ApprovalInstance) error
}

type engineImpl struct {
	now func() time.Time
}

// EngineOption configures the approval engine
type EngineOption func(*engineImpl)

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new approval engine
func NewEngine(opts ...EngineOption) Engine {
	e := &engineImpl{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *engineImpl) NewInstance(tenantID, requisitionID string, template *entity.ApprovalWorkflow, res Resolution) (*entity.ApprovalInstance, error) {
	if res.IsEmpty() {
		return nil, domainwf.ErrNoApprovers
	}
	if template == nil {
		return nil, domainwf.ErrNoWorkflowTemplate
	}

	now := e.now()
	return &entity.ApprovalInstance{
		ID:                entity.ApprovalInstanceID(requisitionID),
		TenantID:          tenantID,
		RequisitionID:     requisitionID,
		WorkflowID:        template.ID,
		Status:            domainwf.StateDraft,
		CurrentStageIndex: 0,
		Round:             1,
		Stages:            buildStages(template, res),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (e *engineImpl) Start(ctx context.Context, inst *entity.ApprovalInstance) (bool, error) {
	if inst.Status != domainwf.StateDraft {
		return false, nil
	}
	if len(inst.Stages) == 0 {
		return false, domainwf.ErrNoApprovers
	}
	if err := e.fire(ctx, inst, domainwf.TriggerStart); err != nil {
		return false, err
	}
	now := e.now()
	inst.StartedAt = &now
	inst.CurrentStageIndex = 0
	inst.UpdatedAt = now
	return true, nil
}

func (e *engineImpl) Decide(ctx context.Context, inst *entity.ApprovalInstance, d Decision) (*DecisionResult, error) {
	if inst.Status != domainwf.StatePendingApproval {
		return nil, domainwf.ErrInstanceNotPending
	}
	var (
		trigger domainwf.Trigger
		status  entity.ApproverStatus
	)
	switch d.Action {
	case ActionApprove:
		status = entity.ApproverStatusApproved
	case ActionReject:
		status, trigger = entity.ApproverStatusRejected, domainwf.TriggerReject
	case ActionReturn:
		status, trigger = entity.ApproverStatusReturned, domainwf.TriggerReturn
	default:
		return nil, domainwf.ErrUnknownAction
	}

	stage := inst.CurrentStage()
	if stage == nil {
		return nil, domainwf.ErrInvalidState
	}

	approver := stage.Find(d.ApproverID)
	if approver == nil || approver.Status != entity.ApproverStatusPending {
		if approver != nil || decidedEarlier(inst, d.ApproverID) {
			return nil, domainwf.ErrApproverAlreadyDecided
		}
		return nil, domainwf.ErrNotCurrentApprover
	}

	result := &DecisionResult{
		Outcome:            OutcomeRecorded,
		PreviousStatus:     inst.Status,
		PreviousStageIndex: inst.CurrentStageIndex,
	}

	recorded := *approver
	now := e.now()
	approver.Status = status
	approver.Comments = d.Comments
	approver.ActedAt = &now

	// the stage clears only once every listed approver has approved
	if d.Action == ActionApprove && stage.AllApproved() {
		trigger = domainwf.TriggerAdvanceStage
		if inst.IsLastStage() {
			trigger = domainwf.TriggerComplete
		}
	}

	if trigger != "" {
		if err := e.fire(ctx, inst, trigger); err != nil {
			*approver = recorded
			return nil, err
		}
	}
	inst.UpdatedAt = now

	switch trigger {
	case domainwf.TriggerReject:
		cancelPending(inst)
		inst.CompletedAt = &now
		result.Outcome = OutcomeRejected
	case domainwf.TriggerReturn:
		cancelPending(inst)
		result.Outcome = OutcomeReturned
	case domainwf.TriggerAdvanceStage:
		inst.CurrentStageIndex++
		result.Outcome = OutcomeStageAdvanced
		result.NextApproverIDs = inst.CurrentStage().PendingUserIDs()
	case domainwf.TriggerComplete:
		inst.CompletedAt = &now
		result.Outcome = OutcomeApproved
		result.GenerateDocument = true
	}
	return result, nil
}

func (e *engineImpl) Resubmit(ctx context.Context, inst *entity.ApprovalInstance, template *entity.ApprovalWorkflow, res Resolution) error {
	if inst.Status != domainwf.StateReturned {
		return domainwf.ErrInstanceNotPending
	}
	if res.IsEmpty() {
		return domainwf.ErrNoApprovers
	}
	if template == nil {
		return domainwf.ErrNoWorkflowTemplate
	}
	if err := e.fire(ctx, inst, domainwf.TriggerResubmit); err != nil {
		return err
	}
	now := e.now()
	inst.WorkflowID = template.ID
	inst.Stages = buildStages(template, res)
	inst.CurrentStageIndex = 0
	inst.Round++
	inst.StartedAt = &now
	inst.CompletedAt = nil
	inst.UpdatedAt = now
	return nil
}

func (e *engineImpl) Cancel(ctx context.Context, inst *entity.ApprovalInstance) error {
	if inst.Status.IsTerminal() {
		return domainwf.ErrInstanceFinalized
	}
	if err := e.fire(ctx, inst, domainwf.TriggerCancel); err != nil {
		return err
	}
	now := e.now()
	cancelPending(inst)
	inst.CompletedAt = &now
	inst.UpdatedAt = now
	return nil
}

func (e *engineImpl) fire(ctx context.Context, inst *entity.ApprovalInstance, trigger domainwf.Trigger) error {
	machine := BuildApprovalStateMachine(inst.Status)
	if err := machine.Fire(ctx, trigger); err != nil {
		return err
	}
	inst.Status = machine.State()
	return nil
}

func buildStages(template *entity.ApprovalWorkflow, res Resolution) []entity.ApprovalStage {
	stages := make([]entity.ApprovalStage, 0, len(res.Stages))
	for i, rs := range res.Stages {
		stage := entity.ApprovalStage{
			Index:     i,
			Name:      template.StageName(rs.Level),
			Level:     rs.Level,
			Approvers: make([]entity.StageApprover, 0, len(rs.Approvers)),
		}
		for _, ra := range rs.Approvers {
			role := ra.Role
			if role != entity.RoleCostCenterHead {
				role = template.RoleLabel(rs.Level)
			}
			stage.Approvers = append(stage.Approvers, entity.StageApprover{
				UserID: ra.UserID,
				Role:   role,
				Order:  ra.Order,
				Status: entity.ApproverStatusPending,
			})
		}
		stages = append(stages, stage)
	}
	return stages
}

func decidedEarlier(inst *entity.ApprovalInstance, userID string) bool {
	for i := 0; i < inst.CurrentStageIndex && i < len(inst.Stages); i++ {
		if ap := inst.Stages[i].Find(userID); ap != nil && ap.Status != entity.ApproverStatusPending {
			return true
		}
	}
	return false
}

func cancelPending(inst *entity.ApprovalInstance) {
	for i := range inst.Stages {
		for j := range inst.Stages[i].Approvers {
			if inst.Stages[i].Approvers[j].Status == entity.ApproverStatusPending {
				inst.Stages[i].Approvers[j].Status = entity.ApproverStatusCancelled
			}
		}
	}
}
