package domain

import (
	"errors"
	"fmt"
)

// ErrCaseNotFound is returned when a case ID cannot be found in the store.
var ErrCaseNotFound = errors.New("case not found")

// ErrCaseExists is returned when creating a case ID that is already stored.
var ErrCaseExists = errors.New("case already exists")

// ErrVersionConflict is returned by Commit when the expected version does not
// match the stored version. Callers re-fetch and retry; it is never surfaced
// to external actors.
var ErrVersionConflict = errors.New("version conflict")

// RejectionKind classifies why the engine refused an event.
type RejectionKind string

const (
	// KindInvalidEvent means the event is not declared for the current state.
	KindInvalidEvent RejectionKind = "INVALID_EVENT_FOR_STATE"
	// KindGuardRejected means the event is declared but its guard refused it.
	KindGuardRejected RejectionKind = "GUARD_REJECTED"
	// KindRetryExhausted means the payout retry budget is spent.
	KindRetryExhausted RejectionKind = "RETRY_EXHAUSTED"
)

// TransitionError is the ordinary (non-fatal) rejection of an event.
// The instance is guaranteed unchanged when one is returned.
type TransitionError struct {
	Kind   RejectionKind
	State  State
	Event  EventType
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: event %s in state %s: %s", e.Kind, e.Event, e.State, e.Reason)
	}
	return fmt.Sprintf("%s: event %s in state %s", e.Kind, e.Event, e.State)
}

// NewInvalidEvent builds the rejection for an undeclared (state, event) pair.
func NewInvalidEvent(s State, t EventType) *TransitionError {
	return &TransitionError{Kind: KindInvalidEvent, State: s, Event: t}
}

// NewGuardRejected builds the rejection for a declared event whose guard
// refused it, with the guard's specific reason.
func NewGuardRejected(s State, t EventType, reason string) *TransitionError {
	return &TransitionError{Kind: KindGuardRejected, State: s, Event: t, Reason: reason}
}

// NewRetryExhausted builds the rejection for a payout retry past the cap.
func NewRetryExhausted(s State, t EventType, reason string) *TransitionError {
	return &TransitionError{Kind: KindRetryExhausted, State: s, Event: t, Reason: reason}
}

// AsTransitionError unwraps err into a *TransitionError if it is one.
func AsTransitionError(err error) (*TransitionError, bool) {
	var te *TransitionError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
