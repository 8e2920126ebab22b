package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/procurement-approvals/internal/application/dispatcher"
	"github.com/garyjia/procurement-approvals/internal/application/port"
	"github.com/garyjia/procurement-approvals/internal/application/workflow"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
	"github.com/garyjia/procurement-approvals/internal/domain/event"
	domainwf "github.com/garyjia/procurement-approvals/internal/domain/workflow"
)

// StatusNotStarted is reported for requisitions that have no approval instance yet
const StatusNotStarted = "NOT_STARTED"

// DefaultMaxConflictRetries bounds optimistic retries of a decision
const DefaultMaxConflictRetries = 3

// ApprovalStatus is the read projection of a requisition's approval
type ApprovalStatus struct {
	RequisitionID      string                   `json:"requisition_id"`
	RequisitionNumber  string                   `json:"requisition_number"`
	RequisitionStatus  entity.RequisitionStatus `json:"requisition_status"`
	Status             string                   `json:"status"`
	InstanceID         string                   `json:"instance_id,omitempty"`
	Round              int                      `json:"round,omitempty"`
	CurrentStageIndex  int                      `json:"current_stage_index"`
	CurrentStageName   string                   `json:"current_stage_name,omitempty"`
	CurrentApproverIDs []string                 `json:"current_approver_ids,omitempty"`
	Stages             []entity.ApprovalStage   `json:"stages,omitempty"`

	// Deprecated: flat ranked list kept for older clients, derived from Stages
	Approvers []entity.LegacyApprover `json:"approvers,omitempty"`

	History           []*entity.ApprovalHistory `json:"history,omitempty"`
	DocumentType      entity.DocumentType       `json:"document_type,omitempty"`
	DocumentID        string                    `json:"document_id,omitempty"`
	GenerationStatus  entity.GenerationStatus   `json:"generation_status,omitempty"`
	GenerationError   string                    `json:"generation_error,omitempty"`
	GenerationPending bool                      `json:"generation_pending"`
}

// DecisionOutcome is returned by Decide
type DecisionOutcome struct {
	Outcome  workflow.Outcome  `json:"outcome"`
	Status   *ApprovalStatus   `json:"status"`
	Document *GenerationResult `json:"document,omitempty"`
}

// PendingApproval is one item of an approver's work queue
type PendingApproval struct {
	Requisition *entity.Requisition `json:"requisition"`
	InstanceID  string              `json:"instance_id"`
	StageIndex  int                 `json:"stage_index"`
	StageName   string              `json:"stage_name"`
	Round       int                 `json:"round"`
}

// RequisitionService coordinates submission, decisions and cancellation
// of requisitions across the resolver, the approval engine and document generation.
type RequisitionService interface {
	Submit(ctx context.Context, actor Actor, requisitionID string) (*ApprovalStatus, error)
	Decide(ctx context.Context, actor Actor, requisitionID, action, comments string) (*DecisionOutcome, error)
	Cancel(ctx context.Context, actor Actor, requisitionID string) (*ApprovalStatus, error)
	Status(ctx context.Context, tenantID, requisitionID string) (*ApprovalStatus, error)
	ListPendingForApprover(ctx context.Context, actor Actor) ([]*PendingApproval, error)
}

// CoordinatorDeps groups the collaborators of the requisition service
type CoordinatorDeps struct {
	Requisitions port.RequisitionRepository
	Instances    port.InstanceRepository
	History      port.HistoryRepository
	CostCenters  port.CostCenterRepository
	Workflows    port.WorkflowRepository
	Engine       workflow.Engine
	Documents    DocumentService
	Dispatcher   dispatcher.Dispatcher
	TxManager    port.TransactionManager
	Logger       Logger

	MaxConflictRetries int
	Now                func() time.Time
}

type requisitionServiceImpl struct {
	requisitionRepo port.RequisitionRepository
	instanceRepo    port.InstanceRepository
	historyRepo     port.HistoryRepository
	costCenterRepo  port.CostCenterRepository
	workflowRepo    port.WorkflowRepository
	engine          workflow.Engine
	documents       DocumentService
	dispatcher      dispatcher.Dispatcher
	txManager       port.TransactionManager
	logger          Logger
	maxRetries      int
	now             func() time.Time
}

// NewRequisitionService creates a new RequisitionService
func NewRequisitionService(deps CoordinatorDeps) RequisitionService {
	s := &requisitionServiceImpl{
		requisitionRepo: deps.Requisitions,
		instanceRepo:    deps.Instances,
		historyRepo:     deps.History,
		costCenterRepo:  deps.CostCenters,
		workflowRepo:    deps.Workflows,
		engine:          deps.Engine,
		documents:       deps.Documents,
		dispatcher:      deps.Dispatcher,
		txManager:       deps.TxManager,
		logger:          deps.Logger,
		maxRetries:      deps.MaxConflictRetries,
		now:             deps.Now,
	}
	if s.engine == nil {
		s.engine = workflow.NewEngine()
	}
	if s.maxRetries <= 0 {
		s.maxRetries = DefaultMaxConflictRetries
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Submit starts approval for a Draft requisition or resubmits a Returned one.
// Submitting a requisition that is already pending returns its status unchanged.
func (s *requisitionServiceImpl) Submit(ctx context.Context, actor Actor, requisitionID string) (*ApprovalStatus, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	var (
		status *ApprovalStatus
		events []*event.Event
	)
	err := s.withConflictRetry(ctx, "submit", requisitionID, func() error {
		var err error
		status, events, err = s.submitOnce(ctx, actor, requisitionID)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to submit requisition", "error", err,
			"tenant_id", actor.TenantID, "requisition_id", requisitionID, "actor", actor.UserID)
		return nil, err
	}

	s.publish(ctx, events)
	return status, nil
}

func (s *requisitionServiceImpl) submitOnce(ctx context.Context, actor Actor, requisitionID string) (*ApprovalStatus, []*event.Event, error) {
	var (
		status *ApprovalStatus
		events []*event.Event
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err := s.loadRequisition(txCtx, actor.TenantID, requisitionID)
		if err != nil {
			return err
		}
		if req.CreatedBy != actor.UserID {
			return domainwf.ErrNotRequester
		}

		inst, err := s.instanceRepo.GetByRequisitionID(txCtx, req.TenantID, req.ID)
		if err != nil {
			return fmt.Errorf("get approval instance: %w", err)
		}
		switch {
		case inst == nil && req.Status != entity.RequisitionStatusDraft:
			return fmt.Errorf("%w: requisition is %s", domainwf.ErrState, req.Status)
		case inst != nil && inst.Status == domainwf.StatePendingApproval:
			s.logger.Info("Requisition already pending approval", "requisition_id", req.ID, "instance_id", inst.ID)
			status = buildStatus(req, inst, nil)
			return nil
		case inst != nil && inst.Status.IsTerminal():
			return domainwf.ErrInstanceFinalized
		}

		res, template, err := s.resolve(txCtx, req)
		if err != nil {
			return err
		}

		previous := domainwf.StateDraft
		action := entity.HistoryActionSubmit
		switch {
		case inst == nil:
			inst, err = s.engine.NewInstance(req.TenantID, req.ID, template, res)
			if err != nil {
				return err
			}
			if _, err := s.engine.Start(txCtx, inst); err != nil {
				return fmt.Errorf("start approval: %w", err)
			}
			if err := s.instanceRepo.Create(txCtx, inst); err != nil {
				return err
			}
		case inst.Status == domainwf.StateDraft:
			// A Draft instance with the deterministic id already exists; reuse it.
			if _, err := s.engine.Start(txCtx, inst); err != nil {
				return fmt.Errorf("start approval: %w", err)
			}
			if err := s.instanceRepo.Update(txCtx, inst); err != nil {
				return err
			}
		default:
			previous = inst.Status
			action = entity.HistoryActionResubmit
			if err := s.engine.Resubmit(txCtx, inst, template, res); err != nil {
				return err
			}
			if err := s.instanceRepo.Update(txCtx, inst); err != nil {
				return err
			}
		}

		if err := s.appendHistory(txCtx, inst, actor.UserID, 0, previous, action, ""); err != nil {
			return err
		}

		now := s.now()
		syncSnapshot(req, inst)
		req.SubmittedAt = &now
		if err := s.requisitionRepo.UpdateApprovalSnapshot(txCtx, req); err != nil {
			return fmt.Errorf("update requisition snapshot: %w", err)
		}

		stage := inst.CurrentStage()
		events = append(events, event.NewEvent(event.TypeRequisitionSubmitted, req.TenantID, req.ID, inst.ID,
			map[string]interface{}{
				event.KeyActorID:     actor.UserID,
				event.KeyRequesterID: req.CreatedBy,
				event.KeyRound:       inst.Round,
				event.KeyStageIndex:  inst.CurrentStageIndex,
				event.KeyStageName:   stage.Name,
				event.KeyApproverIDs: inst.CurrentApproverIDs(),
			}))

		s.logger.Info("Requisition submitted for approval",
			"tenant_id", req.TenantID,
			"requisition_id", req.ID,
			"instance_id", inst.ID,
			"actor", actor.UserID,
			"round", inst.Round,
			"stages", len(inst.Stages),
			"workflow_id", inst.WorkflowID,
		)
		status = buildStatus(req, inst, nil)
		return nil
	})
	return status, events, err
}

// Decide records an approver decision. The read-decide-write cycle is retried
// when another decision on the same instance commits first.
func (s *requisitionServiceImpl) Decide(ctx context.Context, actor Actor, requisitionID, action, comments string) (*DecisionOutcome, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	parsed, err := workflow.ParseAction(action)
	if err != nil {
		return nil, err
	}

	var (
		outcome *DecisionOutcome
		result  *workflow.DecisionResult
		events  []*event.Event
	)
	err = s.withConflictRetry(ctx, "decide", requisitionID, func() error {
		var err error
		outcome, result, events, err = s.decideOnce(ctx, actor, requisitionID, workflow.Decision{
			ApproverID: actor.UserID,
			Action:     parsed,
			Comments:   comments,
		})
		return err
	})
	if err != nil {
		s.logger.Error("Failed to record decision", "error", err,
			"tenant_id", actor.TenantID, "requisition_id", requisitionID, "actor", actor.UserID, "action", parsed)
		return nil, err
	}

	s.publish(ctx, events)

	if result.GenerateDocument && s.documents != nil {
		generated, genErr := s.documents.Generate(ctx, actor.TenantID, requisitionID)
		if genErr != nil {
			// The approval stands; the document stays retryable.
			s.logger.Error("Document generation failed after approval", "error", genErr,
				"tenant_id", actor.TenantID, "requisition_id", requisitionID, "retryable", true)
		}
		outcome.Document = generated
		if refreshed, err := s.Status(ctx, actor.TenantID, requisitionID); err == nil {
			outcome.Status = refreshed
		}
	}
	return outcome, nil
}

func (s *requisitionServiceImpl) decideOnce(ctx context.Context, actor Actor, requisitionID string, d workflow.Decision) (*DecisionOutcome, *workflow.DecisionResult, []*event.Event, error) {
	var (
		outcome *DecisionOutcome
		result  *workflow.DecisionResult
		events  []*event.Event
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err := s.loadRequisition(txCtx, actor.TenantID, requisitionID)
		if err != nil {
			return err
		}
		inst, err := s.instanceRepo.GetByRequisitionID(txCtx, req.TenantID, req.ID)
		if err != nil {
			return fmt.Errorf("get approval instance: %w", err)
		}
		if inst == nil {
			return domainwf.ErrInstanceNotPending
		}

		result, err = s.engine.Decide(txCtx, inst, d)
		if err != nil {
			return err
		}
		if err := s.instanceRepo.Update(txCtx, inst); err != nil {
			return err
		}
		if err := s.appendHistory(txCtx, inst, d.ApproverID, result.PreviousStageIndex, result.PreviousStatus,
			historyActionFor(d.Action), d.Comments); err != nil {
			return err
		}

		syncSnapshot(req, inst)
		if result.GenerateDocument {
			now := s.now()
			req.ApprovedAt = &now
			req.GenerationStatus = entity.GenerationStatusPending
		}
		if err := s.requisitionRepo.UpdateApprovalSnapshot(txCtx, req); err != nil {
			return fmt.Errorf("update requisition snapshot: %w", err)
		}

		events = decisionEvents(req, inst, d, result)
		s.logger.Info("Approval decision recorded",
			"tenant_id", req.TenantID,
			"requisition_id", req.ID,
			"instance_id", inst.ID,
			"actor", d.ApproverID,
			"action", d.Action,
			"outcome", result.Outcome,
			"stage_index", inst.CurrentStageIndex,
			"status", inst.Status,
		)
		outcome = &DecisionOutcome{Outcome: result.Outcome, Status: buildStatus(req, inst, nil)}
		return nil
	})
	return outcome, result, events, err
}

// Cancel withdraws a requisition. Only its creator may cancel.
func (s *requisitionServiceImpl) Cancel(ctx context.Context, actor Actor, requisitionID string) (*ApprovalStatus, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	var (
		status *ApprovalStatus
		events []*event.Event
	)
	err := s.withConflictRetry(ctx, "cancel", requisitionID, func() error {
		events = nil
		return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			req, err := s.loadRequisition(txCtx, actor.TenantID, requisitionID)
			if err != nil {
				return err
			}
			if req.CreatedBy != actor.UserID {
				return domainwf.ErrNotRequester
			}

			inst, err := s.instanceRepo.GetByRequisitionID(txCtx, req.TenantID, req.ID)
			if err != nil {
				return fmt.Errorf("get approval instance: %w", err)
			}

			instanceID := ""
			if inst == nil {
				if req.Status != entity.RequisitionStatusDraft {
					return domainwf.ErrInstanceFinalized
				}
				req.Status = entity.RequisitionStatusCancelled
				req.CurrentStageName = ""
				req.CurrentApproverIDs = nil
			} else {
				previous := inst.Status
				stageIndex := inst.CurrentStageIndex
				if err := s.engine.Cancel(txCtx, inst); err != nil {
					return err
				}
				if err := s.instanceRepo.Update(txCtx, inst); err != nil {
					return err
				}
				if err := s.appendHistory(txCtx, inst, actor.UserID, stageIndex, previous, entity.HistoryActionCancel, ""); err != nil {
					return err
				}
				syncSnapshot(req, inst)
				instanceID = inst.ID
			}

			if err := s.requisitionRepo.UpdateApprovalSnapshot(txCtx, req); err != nil {
				return fmt.Errorf("update requisition snapshot: %w", err)
			}

			events = append(events, event.NewEvent(event.TypeRequisitionCancelled, req.TenantID, req.ID, instanceID,
				map[string]interface{}{
					event.KeyActorID:     actor.UserID,
					event.KeyRequesterID: req.CreatedBy,
				}))
			s.logger.Info("Requisition cancelled", "tenant_id", req.TenantID, "requisition_id", req.ID, "actor", actor.UserID)
			status = buildStatus(req, inst, nil)
			return nil
		})
	})
	if err != nil {
		s.logger.Error("Failed to cancel requisition", "error", err,
			"tenant_id", actor.TenantID, "requisition_id", requisitionID, "actor", actor.UserID)
		return nil, err
	}

	s.publish(ctx, events)
	return status, nil
}

// Status returns the approval projection. Requisitions that were never
// submitted report StatusNotStarted.
func (s *requisitionServiceImpl) Status(ctx context.Context, tenantID, requisitionID string) (*ApprovalStatus, error) {
	req, err := s.loadRequisition(ctx, tenantID, requisitionID)
	if err != nil {
		return nil, err
	}
	inst, err := s.instanceRepo.GetByRequisitionID(ctx, tenantID, req.ID)
	if err != nil {
		return nil, fmt.Errorf("get approval instance: %w", err)
	}

	var history []*entity.ApprovalHistory
	if inst != nil {
		if history, err = s.historyRepo.ListByInstance(ctx, tenantID, inst.ID); err != nil {
			return nil, fmt.Errorf("list approval history: %w", err)
		}
	}
	return buildStatus(req, inst, history), nil
}

// ListPendingForApprover returns requisitions awaiting the actor's decision
func (s *requisitionServiceImpl) ListPendingForApprover(ctx context.Context, actor Actor) ([]*PendingApproval, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	instances, err := s.instanceRepo.ListPendingForApprover(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list pending instances: %w", err)
	}
	if len(instances) == 0 {
		return []*PendingApproval{}, nil
	}

	ids := make([]string, 0, len(instances))
	for _, inst := range instances {
		ids = append(ids, inst.RequisitionID)
	}
	reqs, err := s.requisitionRepo.GetByIDs(ctx, actor.TenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("get requisitions: %w", err)
	}
	byID := make(map[string]*entity.Requisition, len(reqs))
	for _, req := range reqs {
		byID[req.ID] = req
	}

	out := make([]*PendingApproval, 0, len(instances))
	for _, inst := range instances {
		req, ok := byID[inst.RequisitionID]
		if !ok {
			continue
		}
		item := &PendingApproval{Requisition: req, InstanceID: inst.ID, StageIndex: inst.CurrentStageIndex, Round: inst.Round}
		if stage := inst.CurrentStage(); stage != nil {
			item.StageName = stage.Name
		}
		out = append(out, item)
	}
	return out, nil
}

// SelectWorkflow picks the active template whose amount range contains the
// amount, preferring the highest minimum.
func SelectWorkflow(templates []*entity.ApprovalWorkflow, amount decimal.Decimal) *entity.ApprovalWorkflow {
	var best *entity.ApprovalWorkflow
	for _, wf := range templates {
		if wf == nil || !wf.Matches(amount) {
			continue
		}
		if best == nil || wf.MinAmount.GreaterThan(best.MinAmount) {
			best = wf
		}
	}
	return best
}

func (s *requisitionServiceImpl) resolve(ctx context.Context, req *entity.Requisition) (workflow.Resolution, *entity.ApprovalWorkflow, error) {
	cc, err := s.costCenterRepo.GetByID(ctx, req.TenantID, req.CostCenterID)
	if err != nil {
		return workflow.Resolution{}, nil, fmt.Errorf("get cost center: %w", err)
	}
	res := workflow.ResolveApprovers(cc)
	if res.IsEmpty() {
		return workflow.Resolution{}, nil, fmt.Errorf("%w (cost center %s)", domainwf.ErrNoApprovers, req.CostCenterID)
	}

	templates, err := s.workflowRepo.ListActive(ctx, req.TenantID)
	if err != nil {
		return workflow.Resolution{}, nil, fmt.Errorf("list workflow templates: %w", err)
	}
	template := SelectWorkflow(templates, req.TotalAmount)
	if template == nil {
		return workflow.Resolution{}, nil, fmt.Errorf("%w (amount %s)", domainwf.ErrNoWorkflowTemplate, req.TotalAmount.String())
	}
	return res, template, nil
}

func (s *requisitionServiceImpl) loadRequisition(ctx context.Context, tenantID, id string) (*entity.Requisition, error) {
	req, err := s.requisitionRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("get requisition: %w", err)
	}
	if req == nil {
		return nil, notFound("requisition", id)
	}
	return req, nil
}

func (s *requisitionServiceImpl) appendHistory(ctx context.Context, inst *entity.ApprovalInstance, actorID string, stageIndex int, previous domainwf.State, action, comments string) error {
	history := &entity.ApprovalHistory{
		TenantID:       inst.TenantID,
		InstanceID:     inst.ID,
		RequisitionID:  inst.RequisitionID,
		ActorUserID:    actorID,
		StageIndex:     stageIndex,
		Round:          inst.Round,
		PreviousStatus: previous.String(),
		NewStatus:      inst.Status.String(),
		ActionType:     action,
		Comments:       comments,
		Timestamp:      s.now(),
	}
	if err := s.historyRepo.Create(ctx, history); err != nil {
		return fmt.Errorf("create approval history: %w", err)
	}
	return nil
}

func (s *requisitionServiceImpl) withConflictRetry(ctx context.Context, op, requisitionID string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err = fn(); !errors.Is(err, domainwf.ErrConcurrentModification) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Info("Retrying after concurrent modification", "operation", op, "requisition_id", requisitionID, "attempt", attempt+1)
	}
	return err
}

func (s *requisitionServiceImpl) publish(ctx context.Context, events []*event.Event) {
	if s.dispatcher == nil {
		return
	}
	for _, evt := range events {
		s.dispatcher.DispatchAsync(ctx, evt)
	}
}

// syncSnapshot copies the instance state onto the requisition's denormalized fields
func syncSnapshot(req *entity.Requisition, inst *entity.ApprovalInstance) {
	req.Status = entity.RequisitionStatus(inst.Status)
	req.ApprovalInstanceID = inst.ID
	req.CurrentStageName = ""
	if stage := inst.CurrentStage(); stage != nil && inst.Status == domainwf.StatePendingApproval {
		req.CurrentStageName = stage.Name
	}
	req.CurrentApproverIDs = inst.CurrentApproverIDs()
}

func buildStatus(req *entity.Requisition, inst *entity.ApprovalInstance, history []*entity.ApprovalHistory) *ApprovalStatus {
	status := &ApprovalStatus{
		RequisitionID:      req.ID,
		RequisitionNumber:  req.Number,
		RequisitionStatus:  req.Status,
		Status:             StatusNotStarted,
		CurrentStageName:   req.CurrentStageName,
		CurrentApproverIDs: req.CurrentApproverIDs,
		History:            history,
		DocumentType:       req.DocumentType,
		DocumentID:         req.DocumentID,
		GenerationStatus:   req.GenerationStatus,
		GenerationError:    req.GenerationError,
		GenerationPending:  req.GenerationPending(),
	}
	if inst == nil {
		if req.Status == entity.RequisitionStatusCancelled {
			status.Status = string(req.Status)
		}
		return status
	}

	status.Status = inst.Status.String()
	status.InstanceID = inst.ID
	status.Round = inst.Round
	status.CurrentStageIndex = inst.CurrentStageIndex
	status.CurrentApproverIDs = inst.CurrentApproverIDs()
	status.Stages = inst.Stages
	status.Approvers = inst.LegacyApprovers()
	return status
}

func historyActionFor(action workflow.Action) string {
	switch action {
	case workflow.ActionApprove:
		return entity.HistoryActionApprove
	case workflow.ActionReject:
		return entity.HistoryActionReject
	default:
		return entity.HistoryActionReturn
	}
}

func decisionEvents(req *entity.Requisition, inst *entity.ApprovalInstance, d workflow.Decision, result *workflow.DecisionResult) []*event.Event {
	base := map[string]interface{}{
		event.KeyActorID:     d.ApproverID,
		event.KeyRequesterID: req.CreatedBy,
		event.KeyAction:      string(d.Action),
		event.KeyComments:    d.Comments,
		event.KeyStageIndex:  result.PreviousStageIndex,
		event.KeyRound:       inst.Round,
	}
	recorded := event.NewEvent(event.TypeDecisionRecorded, req.TenantID, req.ID, inst.ID, base)
	events := []*event.Event{recorded}

	follow := func(t event.Type) *event.Event {
		return event.NewEventWithCorrelation(t, req.TenantID, req.ID, inst.ID, base, recorded.CorrelationID)
	}
	switch result.Outcome {
	case workflow.OutcomeStageAdvanced:
		stage := inst.CurrentStage()
		events = append(events, follow(event.TypeStageAdvanced).
			WithPayload(event.KeyStageIndex, inst.CurrentStageIndex).
			WithPayload(event.KeyStageName, stage.Name).
			WithPayload(event.KeyApproverIDs, result.NextApproverIDs))
	case workflow.OutcomeApproved:
		events = append(events, follow(event.TypeRequisitionApproved))
	case workflow.OutcomeRejected:
		events = append(events, follow(event.TypeRequisitionRejected))
	case workflow.OutcomeReturned:
		events = append(events, follow(event.TypeRequisitionReturned))
	}
	return events
}
