package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")
)

// Error categories. Specific errors wrap exactly one of these so callers can
// classify with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrAuthorization = errors.New("not authorized")
	ErrState         = errors.New("state error")
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrGeneration    = errors.New("document generation failed")
)

var (
	ErrNoApprovers            = fmt.Errorf("%w: no approvers configured for cost center", ErrConfiguration)
	ErrNoWorkflowTemplate     = fmt.Errorf("%w: no approval workflow template provisioned", ErrConfiguration)
	ErrNotCurrentApprover     = fmt.Errorf("%w: caller cannot decide on the current approval stage", ErrAuthorization)
	ErrNotRequester           = fmt.Errorf("%w: only the requester may perform this action", ErrAuthorization)
	ErrInstanceNotPending     = fmt.Errorf("%w: approval instance is not pending approval", ErrState)
	ErrApproverAlreadyDecided = fmt.Errorf("%w: approver has already decided", ErrState)
	ErrInstanceFinalized      = fmt.Errorf("%w: approval instance is already finalized", ErrState)
	ErrRequisitionLocked      = fmt.Errorf("%w: requisition cannot be modified in its current status", ErrState)
	ErrRequisitionNotApproved = fmt.Errorf("%w: requisition is not approved", ErrState)
	ErrConcurrentModification = fmt.Errorf("%w: approval instance was modified concurrently", ErrConflict)
	ErrDocumentExists         = fmt.Errorf("%w: a document was already generated for this requisition", ErrConflict)
	ErrUnknownAction          = fmt.Errorf("%w: unknown decision action", ErrValidation)
)
