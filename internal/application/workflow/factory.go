package workflow

import (
	"sync"

	domainwf "github.com/garyjia/procurement-approvals/internal/domain/workflow"
)

var (
	approvalBuilder     domainwf.StateMachineBuilder
	approvalBuilderOnce sync.Once
)

// BuildApprovalStateMachine creates a state machine configured for the requisition approval lifecycle
func BuildApprovalStateMachine(initialState domainwf.State) domainwf.StateMachine {
	approvalBuilderOnce.Do(func() { approvalBuilder = approvalLifecycle() })
	return approvalBuilder.Build(initialState)
}

func approvalLifecycle() domainwf.StateMachineBuilder {
	builder := domainwf.NewBuilder()

	// DRAFT state transitions
	builder.Configure(domainwf.StateDraft).
		Permit(domainwf.TriggerStart, domainwf.StatePendingApproval).
		Permit(domainwf.TriggerCancel, domainwf.StateCancelled)

	// PENDING_APPROVAL state transitions
	builder.Configure(domainwf.StatePendingApproval).
		Permit(domainwf.TriggerAdvanceStage, domainwf.StatePendingApproval).
		Permit(domainwf.TriggerComplete, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerReturn, domainwf.StateReturned).
		Permit(domainwf.TriggerCancel, domainwf.StateCancelled)

	// RETURNED state transitions
	builder.Configure(domainwf.StateReturned).
		Permit(domainwf.TriggerResubmit, domainwf.StatePendingApproval).
		Permit(domainwf.TriggerCancel, domainwf.StateCancelled)

	// APPROVED, REJECTED and CANCELLED are terminal states - no outgoing transitions

	return builder
}
