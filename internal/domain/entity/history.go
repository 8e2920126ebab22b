package entity

import "time"

// ApprovalHistory is one append-only audit record of an approval action
type ApprovalHistory struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	InstanceID     string    `json:"instance_id"`
	RequisitionID  string    `json:"requisition_id"`
	ActorUserID    string    `json:"actor_user_id"`
	StageIndex     int       `json:"stage_index"`
	Round          int       `json:"round"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ActionType     string    `json:"action_type"`
	Comments       string    `json:"comments,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
