package domain

// State identifies a case lifecycle state.
type State string

const (
	StateIdle                State = "idle"
	StatePendingValidation   State = "pendingValidation"
	StateAutoRejected        State = "autoRejected"
	StatePendingVerification State = "pendingVerification"
	StateRejected            State = "rejected"
	StateDuplicate           State = "duplicate"
	StateVerified            State = "verified"
	StateAssigned            State = "assigned"
	StateInProgress          State = "inProgress"
	StateUnableToLocate      State = "unableToLocate"
	StateCaptured            State = "captured"
	StatePayoutPending       State = "payoutPending"
	StatePayoutFailed        State = "payoutFailed"
	StateResolved            State = "resolved"
	StateClosed              State = "closed"
)

// AllStates lists every declared state, in lifecycle order.
// The workflow definition is validated against this set.
var AllStates = []State{
	StateIdle,
	StatePendingValidation,
	StateAutoRejected,
	StatePendingVerification,
	StateRejected,
	StateDuplicate,
	StateVerified,
	StateAssigned,
	StateInProgress,
	StateUnableToLocate,
	StateCaptured,
	StatePayoutPending,
	StatePayoutFailed,
	StateResolved,
	StateClosed,
}

var terminalStates = map[State]bool{
	StateAutoRejected:   true,
	StateRejected:       true,
	StateDuplicate:      true,
	StateUnableToLocate: true,
	StateResolved:       true,
	StateClosed:         true,
}

// rejectionStates are the terminal states that must carry a rejection reason.
var rejectionStates = map[State]bool{
	StateAutoRejected: true,
	StateRejected:     true,
	StateDuplicate:    true,
}

// IsTerminal reports whether the state admits no further lifecycle progress.
// Terminal states may still accept the two documented context-only events
// (late payout acknowledgment and feedback) via the workflow definition.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsRejection reports whether the state is a rejection-class terminal state.
func (s State) IsRejection() bool {
	return rejectionStates[s]
}

// IsValid reports whether the state is a member of the declared state set.
func (s State) IsValid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}
