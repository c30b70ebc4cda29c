package domain

// ActionRequest is a side-effect the engine asks the host to perform after a
// transition commits. The engine itself never performs I/O; it only emits
// these requests for the dispatcher.
type ActionRequest struct {
	Type    string
	CaseID  string
	Payload any
}

// Standard action types.
const (
	// ActionNotify requests a fire-and-forget notification.
	// Payload: NotifyPayload.
	ActionNotify = "NOTIFY"

	// ActionTriggerValidation asks the validation collaborator to run the
	// automated GPS/image/duplicate checks for the case.
	ActionTriggerValidation = "TRIGGER_AUTO_VALIDATION"

	// ActionTriggerPayout fires on entering captured: the host consults the
	// monthly-cap ledger and either initiates the payout or reports the cap.
	// Payload: PayoutTriggerPayload.
	ActionTriggerPayout = "TRIGGER_PAYOUT"

	// ActionInitiatePayout fires on entering payoutPending: the host calls
	// the payment gateway. Payload: PayoutTriggerPayload.
	ActionInitiatePayout = "INITIATE_PAYOUT"

	// ActionRetryAlert fires when the payout retry budget is spent and the
	// case is parked awaiting operator intervention.
	ActionRetryAlert = "PAYOUT_RETRY_EXHAUSTED"

	// ActionEscalationAlert fires when an SLA escalation is recorded.
	// Payload: EscalationAlertPayload.
	ActionEscalationAlert = "ESCALATION_ALERT"
)

// NotifyPayload addresses a notification template.
type NotifyPayload struct {
	TemplateID string
	Params     map[string]string
}

// PayoutTriggerPayload carries what the payment side needs.
type PayoutTriggerPayload struct {
	TenantID string
	PayeeRef string
	Amount   int64
}

// EscalationAlertPayload reports an SLA breach.
type EscalationAlertPayload struct {
	Level int
}
