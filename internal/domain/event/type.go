package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequisitionSubmitted     Type = "requisition.submitted"
	TypeStageAdvanced            Type = "approval.stage_advanced"
	TypeDecisionRecorded         Type = "approval.decision_recorded"
	TypeRequisitionApproved      Type = "requisition.approved"
	TypeRequisitionRejected      Type = "requisition.rejected"
	TypeRequisitionReturned      Type = "requisition.returned"
	TypeRequisitionCancelled     Type = "requisition.cancelled"
	TypeDocumentGenerated        Type = "document.generated"
	TypeDocumentGenerationFailed Type = "document.generation_failed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequisitionSubmitted,
		TypeStageAdvanced,
		TypeDecisionRecorded,
		TypeRequisitionApproved,
		TypeRequisitionRejected,
		TypeRequisitionReturned,
		TypeRequisitionCancelled,
		TypeDocumentGenerated,
		TypeDocumentGenerationFailed:
		return true
	default:
		return false
	}
}

// Payload keys shared by producers and consumers
const (
	KeyActorID      = "actor_id"
	KeyStageIndex   = "stage_index"
	KeyStageName    = "stage_name"
	KeyApproverIDs  = "approver_ids"
	KeyAction       = "action"
	KeyComments     = "comments"
	KeyRequesterID  = "requester_id"
	KeyDocumentType = "document_type"
	KeyDocumentID   = "document_id"
	KeyDocumentNo   = "document_number"
	KeyError        = "error"
	KeyRound        = "round"
)
