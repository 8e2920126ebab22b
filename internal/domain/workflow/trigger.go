package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerStart        Trigger = "START"
	TriggerAdvanceStage Trigger = "ADVANCE_STAGE"
	TriggerComplete     Trigger = "COMPLETE"
	TriggerReject       Trigger = "REJECT"
	TriggerReturn       Trigger = "RETURN"
	TriggerResubmit     Trigger = "RESUBMIT"
	TriggerCancel       Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
