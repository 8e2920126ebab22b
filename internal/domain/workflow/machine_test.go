package workflow

import (
	"context"
	"errors"
	"testing"
)

type guardKey struct{}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateDraft, false},
		{StatePendingApproval, false},
		{StateReturned, false},
		{StateApproved, true},
		{StateRejected, true},
		{StateCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"draft", StateDraft, true},
		{"returned", StateReturned, true},
		{"invalid state", State("IN_REVIEW"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerResubmit.String(); got != "RESUBMIT" {
		t.Errorf("Trigger.String() = %v, want %v", got, "RESUBMIT")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	NewBuilder().Configure(State("INVALID"))
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	NewBuilder().Build(State("INVALID"))
}

func TestStateConfiguration_PermitPanicsOnInvalidTarget(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target state")
		}
	}()

	NewBuilder().Configure(StateDraft).Permit(TriggerStart, State("INVALID"))
}

func TestStateMachine_Fire(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).Permit(TriggerStart, StatePendingApproval)

	machine := builder.Build(StateDraft)

	if !machine.CanFire(TriggerStart) {
		t.Error("CanFire() should return true for permitted trigger")
	}
	if err := machine.Fire(context.Background(), TriggerStart); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine.State() != StatePendingApproval {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), StatePendingApproval)
	}
}

func TestStateMachine_SelfTransition(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingApproval).Permit(TriggerAdvanceStage, StatePendingApproval)

	machine := builder.Build(StatePendingApproval)
	if err := machine.Fire(context.Background(), TriggerAdvanceStage); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine.State() != StatePendingApproval {
		t.Errorf("State = %v, want %v", machine.State(), StatePendingApproval)
	}
}

func TestStateMachine_Guards(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingApproval).
		PermitIf(TriggerComplete, StateApproved, func(ctx context.Context) bool {
			v, _ := ctx.Value(guardKey{}).(bool)
			return v
		})

	tests := []struct {
		name      string
		allow     bool
		wantState State
		wantErr   error
	}{
		{"guard passes", true, StateApproved, nil},
		{"guard fails", false, StatePendingApproval, ErrGuardFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := builder.Build(StatePendingApproval)
			ctx := context.WithValue(context.Background(), guardKey{}, tt.allow)

			err := machine.Fire(ctx, TriggerComplete)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Fire() failed: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Fire() error = %v, want %v", err, tt.wantErr)
			}
			if machine.State() != tt.wantState {
				t.Errorf("State = %v, want %v", machine.State(), tt.wantState)
			}
		})
	}
}

func TestStateMachine_Fire_InvalidTransition(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).Permit(TriggerStart, StatePendingApproval)

	machine := builder.Build(StateDraft)

	err := machine.Fire(context.Background(), TriggerComplete)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
	if machine.State() != StateDraft {
		t.Errorf("State should remain %v after failed Fire(), got %v", StateDraft, machine.State())
	}

	unconfigured := NewBuilder().Build(StateApproved)
	if err := unconfigured.Fire(context.Background(), TriggerStart); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() on unconfigured state error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingApproval).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerCancel, StateCancelled).
		Permit(TriggerComplete, StateApproved)

	triggers := builder.Build(StatePendingApproval).PermittedTriggers()
	want := []Trigger{TriggerCancel, TriggerComplete, TriggerReject}

	if len(triggers) != len(want) {
		t.Fatalf("PermittedTriggers() = %v, want %v", triggers, want)
	}
	for i := range want {
		if triggers[i] != want[i] {
			t.Errorf("PermittedTriggers()[%d] = %v, want %v", i, triggers[i], want[i])
		}
	}

	if got := NewBuilder().Build(StateDraft).PermittedTriggers(); len(got) != 0 {
		t.Errorf("PermittedTriggers() without configuration = %v, want empty", got)
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).Permit(TriggerStart, StatePendingApproval)

	machine1 := builder.Build(StateDraft)
	machine2 := builder.Build(StateDraft)

	if err := machine1.Fire(context.Background(), TriggerStart); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine2.State() != StateDraft {
		t.Errorf("machine2 state = %v, want %v", machine2.State(), StateDraft)
	}

	// configuring after Build must not affect machines already built
	builder.Configure(StateDraft).Permit(TriggerCancel, StateCancelled)
	if machine2.CanFire(TriggerCancel) {
		t.Error("machine2 should not see transitions configured after Build()")
	}
}

func TestErrorCategories(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category error
	}{
		{"no approvers", ErrNoApprovers, ErrConfiguration},
		{"no template", ErrNoWorkflowTemplate, ErrConfiguration},
		{"not current approver", ErrNotCurrentApprover, ErrAuthorization},
		{"already decided", ErrApproverAlreadyDecided, ErrState},
		{"not pending", ErrInstanceNotPending, ErrState},
		{"concurrent modification", ErrConcurrentModification, ErrConflict},
		{"unknown action", ErrUnknownAction, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.category) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.category)
			}
			if errors.Is(tt.err, ErrValidation) && tt.category != ErrValidation {
				t.Errorf("%v should not be a validation error", tt.err)
			}
		})
	}
}

func TestStateMachine_TerminalStatesIgnoreConfiguration(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateApproved).Permit(TriggerCancel, StateCancelled)
	machine := builder.Build(StateApproved)

	if !machine.CanFire(TriggerCancel) {
		t.Fatal("CanFire() should report the configured transition")
	}
	if err := machine.Fire(context.Background(), TriggerCancel); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() from terminal state error = %v, want %v", err, ErrInvalidTransition)
	}
	if machine.State() != StateApproved {
		t.Errorf("State() = %v, want %v", machine.State(), StateApproved)
	}
}
