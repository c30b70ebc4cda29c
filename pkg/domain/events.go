package domain

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// EventType identifies a workflow event.
type EventType string

const (
	EventSubmit             EventType = "SUBMIT"
	EventAutoValidatePass   EventType = "AUTO_VALIDATE_PASS"
	EventAutoValidateFail   EventType = "AUTO_VALIDATE_FAIL"
	EventVerify             EventType = "VERIFY"
	EventReject             EventType = "REJECT"
	EventMarkDuplicate      EventType = "MARK_DUPLICATE"
	EventComment            EventType = "COMMENT"
	EventAssignMC           EventType = "ASSIGN_MC"
	EventReassign           EventType = "REASSIGN"
	EventStartFieldVisit    EventType = "START_FIELD_VISIT"
	EventMarkCaptured       EventType = "MARK_CAPTURED"
	EventMarkUnableToLocate EventType = "MARK_UNABLE_TO_LOCATE"
	EventInitiatePayout     EventType = "INITIATE_PAYOUT"
	EventPayoutSuccess      EventType = "PAYOUT_SUCCESS"
	EventPayoutFailed       EventType = "PAYOUT_FAILED"
	EventRetryPayout        EventType = "RETRY_PAYOUT"
	EventManualResolve      EventType = "MANUAL_RESOLVE"
	EventPayoutCapped       EventType = "PAYOUT_CAPPED"
	EventProcessPayout      EventType = "PROCESS_PAYOUT"
	EventPayoutCompleted    EventType = "PAYOUT_COMPLETED"
	EventRate               EventType = "RATE"
	EventEscalate           EventType = "ESCALATE"
)

// ActorRole identifies who (or what) originated an event.
type ActorRole string

const (
	RoleTeacher    ActorRole = "TEACHER"
	RoleCitizen    ActorRole = "CITIZEN"
	RoleVerifier   ActorRole = "VERIFIER"
	RoleSupervisor ActorRole = "MC_SUPERVISOR"
	RoleOfficer    ActorRole = "MC_OFFICER"
	RoleStateAdmin ActorRole = "STATE_ADMIN"
	RoleSystem     ActorRole = "SYSTEM"
)

// Event is one inbound transition attempt against a case.
// Payload holds one of the typed payload structs below, matching Type.
type Event struct {
	Type      EventType
	ActorID   string
	ActorRole ActorRole
	At        time.Time
	Payload   any
}

// Typed event payloads. Mapstructure tags allow the ingress layer to decode
// loosely-typed JSON payload maps into these without hand-written mapping.

type SubmitPayload struct {
	ReporterID   string       `mapstructure:"reporter_id"`
	ReporterRole ReporterRole `mapstructure:"reporter_role"`
}

type ValidateFailPayload struct {
	Errors []string `mapstructure:"errors"`
}

type VerifyPayload struct {
	VerifierID string `mapstructure:"verifier_id"`
	Remarks    string `mapstructure:"remarks"`
}

type RejectPayload struct {
	VerifierID string `mapstructure:"verifier_id"`
	Reason     string `mapstructure:"reason"`
	Remarks    string `mapstructure:"remarks"`
}

type DuplicatePayload struct {
	VerifierID  string `mapstructure:"verifier_id"`
	DuplicateOf string `mapstructure:"duplicate_of"`
}

type CommentPayload struct {
	AuthorID string `mapstructure:"author_id"`
	Text     string `mapstructure:"text"`
}

type AssignPayload struct {
	OfficerID    string `mapstructure:"officer_id"`
	OfficerName  string `mapstructure:"officer_name"`
	SupervisorID string `mapstructure:"supervisor_id"`
}

type ReassignPayload struct {
	NewOfficerID   string `mapstructure:"new_officer_id"`
	NewOfficerName string `mapstructure:"new_officer_name"`
	Reason         string `mapstructure:"reason"`
}

type FieldVisitPayload struct {
	OfficerID string `mapstructure:"officer_id"`
}

type ResolutionPayload struct {
	OfficerID string `mapstructure:"officer_id"`
	Remarks   string `mapstructure:"remarks"`
}

type PayoutSuccessPayload struct {
	UTR string `mapstructure:"utr"`
}

type PayoutFailedPayload struct {
	Reason string `mapstructure:"reason"`
}

type ManualResolvePayload struct {
	AdminID string `mapstructure:"admin_id"`
	Remarks string `mapstructure:"remarks"`
}

// CapVerdictPayload carries the monthly-cap ledger's verdict. The engine does
// not compute the ledger; it only checks the verdict it is handed.
type CapVerdictPayload struct {
	CapExceeded bool `mapstructure:"cap_exceeded"`
}

type PayoutCompletedPayload struct {
	DemandID string `mapstructure:"demand_id"`
}

type RatePayload struct {
	Rating  int    `mapstructure:"rating"`
	Comment string `mapstructure:"comment"`
}

// EscalatePayload is attached to SLA-synthesized escalation events.
type EscalatePayload struct {
	FromState State `mapstructure:"from_state"`
	Version   int64 `mapstructure:"version"`
}

// payloadFactories maps event types to their payload prototypes.
// Events absent from the map carry no payload.
var payloadFactories = map[EventType]func() any{
	EventSubmit:             func() any { return &SubmitPayload{} },
	EventAutoValidateFail:   func() any { return &ValidateFailPayload{} },
	EventVerify:             func() any { return &VerifyPayload{} },
	EventReject:             func() any { return &RejectPayload{} },
	EventMarkDuplicate:      func() any { return &DuplicatePayload{} },
	EventComment:            func() any { return &CommentPayload{} },
	EventAssignMC:           func() any { return &AssignPayload{} },
	EventReassign:           func() any { return &ReassignPayload{} },
	EventStartFieldVisit:    func() any { return &FieldVisitPayload{} },
	EventMarkCaptured:       func() any { return &ResolutionPayload{} },
	EventMarkUnableToLocate: func() any { return &ResolutionPayload{} },
	EventPayoutSuccess:      func() any { return &PayoutSuccessPayload{} },
	EventPayoutFailed:       func() any { return &PayoutFailedPayload{} },
	EventManualResolve:      func() any { return &ManualResolvePayload{} },
	EventPayoutCapped:       func() any { return &CapVerdictPayload{} },
	EventPayoutCompleted:    func() any { return &PayoutCompletedPayload{} },
	EventRate:               func() any { return &RatePayload{} },
	EventEscalate:           func() any { return &EscalatePayload{} },
}

// DecodePayload turns a raw payload map into the typed payload for the event.
// A nil map is valid for events that carry no payload.
func DecodePayload(t EventType, raw map[string]any) (any, error) {
	factory, ok := payloadFactories[t]
	if !ok {
		if len(raw) > 0 {
			return nil, fmt.Errorf("event %s does not accept a payload", t)
		}
		return nil, nil
	}
	payload := factory()
	if err := mapstructure.Decode(raw, payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return payload, nil
}
