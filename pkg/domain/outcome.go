package domain

// Outcome is the result of submitting an event: either the transition was
// applied and the case now sits in State, or it was rejected for Reason.
// Rejections are ordinary values, not failures of the submission call.
type Outcome struct {
	Applied bool          `json:"applied"`
	State   State         `json:"state"`
	Kind    RejectionKind `json:"kind,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// AppliedOutcome reports a committed transition into state.
func AppliedOutcome(state State) Outcome {
	return Outcome{Applied: true, State: state}
}

// RejectedOutcome reports a refused event; state is the unchanged current state.
func RejectedOutcome(state State, err *TransitionError) Outcome {
	return Outcome{Applied: false, State: state, Kind: err.Kind, Reason: err.Error()}
}
