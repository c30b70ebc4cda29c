package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opencivic/sdcrs/pkg/domain"
)

// ErrRetryExhausted is returned by the payout retry guard once the retry
// budget is spent. The engine maps it to the RETRY_EXHAUSTED rejection so
// operators can tell it apart from ordinary guard refusals.
var ErrRetryExhausted = errors.New("payout retry budget exhausted")

// DefaultPayoutAmount is the capture reward in INR.
const DefaultPayoutAmount int64 = 500

// DefaultMaxPayoutRetries caps automatic payout retries.
const DefaultMaxPayoutRetries = 3

// DefaultSLAs are the per-state deadlines. A tenant config may override any
// of them; a zero duration disables the deadline for that state.
var DefaultSLAs = map[domain.State]time.Duration{
	domain.StatePendingValidation:   5 * time.Minute,
	domain.StatePendingVerification: 4 * time.Hour,
	domain.StateVerified:            1 * time.Hour,
	domain.StateAssigned:            24 * time.Hour,
	domain.StateInProgress:          24 * time.Hour,
	domain.StateCaptured:            1 * time.Hour,
	domain.StatePayoutPending:       24 * time.Hour,
}

// Config tunes the workflow definition per tenant. The zero value is
// usable: Normalize fills in the defaults.
type Config struct {
	PayoutAmount     int64                         `yaml:"payout_amount"`
	MaxPayoutRetries int                           `yaml:"max_payout_retries"`
	SLAs             map[domain.State]time.Duration `yaml:"slas"`
}

// Normalize fills unset fields with defaults and returns the config.
func (c Config) Normalize() Config {
	if c.PayoutAmount == 0 {
		c.PayoutAmount = DefaultPayoutAmount
	}
	if c.MaxPayoutRetries == 0 {
		c.MaxPayoutRetries = DefaultMaxPayoutRetries
	}
	if c.SLAs == nil {
		c.SLAs = DefaultSLAs
	}
	return c
}

// New builds the stray-dog case workflow definition. The returned Definition
// is immutable; build it once and share it across the process.
//
// There is a single definition for both payout models: the asynchronous UPI
// region (INITIATE_PAYOUT → payoutPending → resolved|payoutFailed with
// capped retries) and the synchronous PROCESS_PAYOUT edge, which is the
// degenerate zero-retry variant of the same protocol.
func New(cfg Config) *Definition {
	cfg = cfg.Normalize()

	reg := NewRegistry()
	registerGuards(reg, cfg)
	registerTransforms(reg)
	registerActions(reg, cfg)

	d := &Definition{
		initial:  domain.StateIdle,
		nodes:    make(map[domain.State]*StateNode),
		registry: reg,
	}

	add := func(n *StateNode) {
		n.SLA = cfg.SLAs[n.State]
		d.nodes[n.State] = n
		d.order = append(d.order, n.State)
	}

	add(&StateNode{
		State: domain.StateIdle,
		Rules: []Rule{
			{Event: domain.EventSubmit, Target: domain.StatePendingValidation, TransformID: "applySubmission"},
		},
	})

	add(&StateNode{
		State:        domain.StatePendingValidation,
		EntryActions: []string{"triggerAutoValidation", "notifySubmission"},
		Rules: []Rule{
			{Event: domain.EventAutoValidatePass, Target: domain.StatePendingVerification, TransformID: "applyValidationPass"},
			{Event: domain.EventAutoValidateFail, Target: domain.StateAutoRejected, TransformID: "applyValidationFail"},
			{Event: domain.EventEscalate, Target: domain.StatePendingValidation, TransformID: "recordEscalation", ActionIDs: []string{"alertEscalation"}},
		},
	})

	add(&StateNode{
		State:        domain.StateAutoRejected,
		EntryActions: []string{"notifyRejection"},
	})

	add(&StateNode{
		State: domain.StatePendingVerification,
		Rules: []Rule{
			{Event: domain.EventVerify, Target: domain.StateVerified, TransformID: "applyVerification"},
			{Event: domain.EventReject, Target: domain.StateRejected, TransformID: "applyRejection"},
			{Event: domain.EventMarkDuplicate, Target: domain.StateDuplicate, TransformID: "applyDuplicate"},
			{Event: domain.EventComment, Target: domain.StatePendingVerification, TransformID: "appendComment"},
			{Event: domain.EventEscalate, Target: domain.StatePendingVerification, TransformID: "recordEscalation", ActionIDs: []string{"alertEscalation"}},
		},
	})

	add(&StateNode{
		State:        domain.StateRejected,
		EntryActions: []string{"notifyRejection"},
	})

	add(&StateNode{
		State:        domain.StateDuplicate,
		EntryActions: []string{"notifyDuplicate"},
	})

	add(&StateNode{
		State:        domain.StateVerified,
		EntryActions: []string{"notifyVerification"},
		Rules: []Rule{
			{Event: domain.EventAssignMC, Target: domain.StateAssigned, TransformID: "applyAssignment"},
			{Event: domain.EventEscalate, Target: domain.StateVerified, TransformID: "recordEscalation", ActionIDs: []string{"alertEscalation"}},
		},
	})

	add(&StateNode{
		State:        domain.StateAssigned,
		EntryActions: []string{"notifyAssignment", "notifyOfficer"},
		Rules: []Rule{
			{Event: domain.EventStartFieldVisit, Target: domain.StateInProgress, GuardID: "isAssignedOfficer"},
			{Event: domain.EventReassign, Target: domain.StateAssigned, TransformID: "applyReassignment"},
			{Event: domain.EventEscalate, Target: domain.StateAssigned, TransformID: "recordEscalation", ActionIDs: []string{"alertEscalation"}},
		},
	})

	add(&StateNode{
		State: domain.StateInProgress,
		Rules: []Rule{
			{Event: domain.EventMarkCaptured, Target: domain.StateCaptured, GuardID: "isAssignedOfficer", TransformID: "applyCapture"},
			{Event: domain.EventMarkUnableToLocate, Target: domain.StateUnableToLocate, GuardID: "isAssignedOfficer", TransformID: "applyUnableToLocate"},
			{Event: domain.EventReassign, Target: domain.StateAssigned, TransformID: "applyReassignment"},
			{Event: domain.EventEscalate, Target: domain.StateInProgress, TransformID: "recordEscalation", ActionIDs: []string{"alertEscalation"}},
		},
	})

	add(&StateNode{
		State:        domain.StateUnableToLocate,
		EntryActions: []string{"notifyUnableToLocate"},
	})

	add(&StateNode{
		State:        domain.StateCaptured,
		EntryActions: []string{"notifyCapture", "triggerPayout"},
		Rules: []Rule{
			{Event: domain.EventInitiatePayout, Target: domain.StatePayoutPending, TransformID: "beginPayout"},
			{Event: domain.EventProcessPayout, Target: domain.StateResolved, TransformID: "applyProcessedPayout"},
			{Event: domain.EventPayoutCapped, Target: domain.StateResolved, GuardID: "capVerdict", TransformID: "applyCapVerdict"},
			{Event: domain.EventEscalate, Target: domain.StateCaptured, TransformID: "recordEscalation", ActionIDs: []string{"alertEscalation"}},
		},
	})

	add(&StateNode{
		State:        domain.StatePayoutPending,
		EntryActions: []string{"notifyPayoutInitiated", "initiatePayout"},
		Rules: []Rule{
			{Event: domain.EventPayoutSuccess, Target: domain.StateResolved, TransformID: "applyPayoutSuccess"},
			{Event: domain.EventPayoutFailed, Target: domain.StatePayoutFailed, TransformID: "applyPayoutFailure"},
			{Event: domain.EventEscalate, Target: domain.StatePayoutPending, TransformID: "recordEscalation", ActionIDs: []string{"alertEscalation"}},
		},
	})

	// payoutFailed past the retry budget is an operator-intervention state,
	// not a dead end: MANUAL_RESOLVE remains open with no retry limit.
	add(&StateNode{
		State:        domain.StatePayoutFailed,
		EntryActions: []string{"notifyPayoutFailed", "alertRetryExhausted"},
		Rules: []Rule{
			{Event: domain.EventRetryPayout, Target: domain.StatePayoutPending, GuardID: "retryBudget", TransformID: "applyPayoutRetry"},
			{Event: domain.EventManualResolve, Target: domain.StateResolved, GuardID: "isAdmin", TransformID: "applyManualSettlement"},
		},
	})

	// resolved is terminal apart from the two documented context-only
	// exceptions: the late settlement acknowledgment and the closing
	// feedback rating.
	add(&StateNode{
		State:        domain.StateResolved,
		EntryActions: []string{"notifyResolution", "notifyPayout"},
		Rules: []Rule{
			{Event: domain.EventPayoutCompleted, Target: domain.StateResolved, TransformID: "applyLateSettlement"},
			{Event: domain.EventRate, Target: domain.StateClosed, TransformID: "applyFeedback"},
		},
	})

	add(&StateNode{State: domain.StateClosed})

	return d
}

func registerGuards(reg *Registry, cfg Config) {
	reg.RegisterGuard("isAssignedOfficer", func(ctx domain.CaseContext, ev domain.Event) error {
		officerID := ev.ActorID
		switch p := ev.Payload.(type) {
		case *domain.FieldVisitPayload:
			officerID = p.OfficerID
		case *domain.ResolutionPayload:
			officerID = p.OfficerID
		}
		if officerID != ctx.AssignedOfficerID {
			return fmt.Errorf("not the assigned officer: %s holds the case", ctx.AssignedOfficerID)
		}
		return nil
	})

	reg.RegisterGuard("retryBudget", func(ctx domain.CaseContext, ev domain.Event) error {
		if ctx.Payout.RetryCount >= cfg.MaxPayoutRetries {
			return fmt.Errorf("%w after %d attempts", ErrRetryExhausted, ctx.Payout.RetryCount)
		}
		return nil
	})

	reg.RegisterGuard("isAdmin", func(ctx domain.CaseContext, ev domain.Event) error {
		if ev.ActorRole != domain.RoleStateAdmin {
			return fmt.Errorf("manual settlement requires %s", domain.RoleStateAdmin)
		}
		return nil
	})

	// The engine never computes the monthly cap itself; it trusts the
	// ledger verdict carried in the event.
	reg.RegisterGuard("capVerdict", func(ctx domain.CaseContext, ev domain.Event) error {
		p, ok := ev.Payload.(*domain.CapVerdictPayload)
		if !ok || !p.CapExceeded {
			return errors.New("ledger verdict does not report the cap exceeded")
		}
		return nil
	})
}

func registerTransforms(reg *Registry) {
	reg.RegisterTransform("applySubmission", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.SubmitPayload); ok {
			ctx.ReporterID = p.ReporterID
			ctx.ReporterRole = p.ReporterRole
		}
		return ctx
	})

	reg.RegisterTransform("applyValidationPass", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		ctx.GPSValidated = true
		ctx.ImageValidated = true
		ctx.DuplicateCheckPassed = true
		return ctx
	})

	reg.RegisterTransform("applyValidationFail", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.ValidateFailPayload); ok {
			ctx.ValidationErrors = append([]string(nil), p.Errors...)
			ctx.RejectionRemarks = joinErrors(p.Errors)
		}
		ctx.RejectionReason = "AUTO_VALIDATION_FAILED"
		return ctx
	})

	reg.RegisterTransform("applyVerification", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.VerifyPayload); ok {
			ctx.VerifiedBy = p.VerifierID
			ctx.VerificationRemarks = p.Remarks
		}
		at := ev.At
		ctx.VerifiedAt = &at
		return ctx
	})

	reg.RegisterTransform("applyRejection", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.RejectPayload); ok {
			ctx.VerifiedBy = p.VerifierID
			ctx.RejectionReason = p.Reason
			ctx.RejectionRemarks = p.Remarks
		}
		return ctx
	})

	reg.RegisterTransform("applyDuplicate", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.DuplicatePayload); ok {
			ctx.VerifiedBy = p.VerifierID
			ctx.RejectionRemarks = "Duplicate of " + p.DuplicateOf
		}
		ctx.RejectionReason = "DUPLICATE"
		return ctx
	})

	reg.RegisterTransform("appendComment", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.CommentPayload); ok {
			ctx.Comments = append(ctx.Comments, domain.Comment{
				AuthorID: p.AuthorID,
				Text:     p.Text,
				At:       ev.At,
			})
		}
		return ctx
	})

	reg.RegisterTransform("applyAssignment", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.AssignPayload); ok {
			ctx.AssignedOfficerID = p.OfficerID
			ctx.AssignedOfficerName = p.OfficerName
			ctx.SupervisorID = p.SupervisorID
		}
		return ctx
	})

	reg.RegisterTransform("applyReassignment", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.ReassignPayload); ok {
			ctx.AssignedOfficerID = p.NewOfficerID
			ctx.AssignedOfficerName = p.NewOfficerName
		}
		return ctx
	})

	reg.RegisterTransform("applyCapture", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.ResolutionPayload); ok {
			ctx.ResolvedBy = p.OfficerID
			ctx.ResolutionRemarks = p.Remarks
		}
		at := ev.At
		ctx.ResolvedAt = &at
		ctx.ResolutionType = domain.ResolutionCaptured
		ctx.Payout.Eligible = true
		ctx.Payout.Status = domain.PayoutPending
		return ctx
	})

	reg.RegisterTransform("applyUnableToLocate", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.ResolutionPayload); ok {
			ctx.ResolvedBy = p.OfficerID
			ctx.ResolutionRemarks = p.Remarks
		}
		at := ev.At
		ctx.ResolvedAt = &at
		ctx.ResolutionType = domain.ResolutionUnableToLocate
		ctx.Payout.Eligible = false
		return ctx
	})

	reg.RegisterTransform("beginPayout", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		ctx.Payout.Status = domain.PayoutPending
		return ctx
	})

	reg.RegisterTransform("applyPayoutSuccess", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.PayoutSuccessPayload); ok {
			ctx.Payout.DemandOrUTRID = p.UTR
		}
		ctx.Payout.Status = domain.PayoutCompleted
		return ctx
	})

	reg.RegisterTransform("applyPayoutFailure", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		ctx.Payout.Status = domain.PayoutFailed
		return ctx
	})

	// The retry counter only moves here: payoutFailed → payoutPending.
	reg.RegisterTransform("applyPayoutRetry", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		ctx.Payout.RetryCount++
		ctx.Payout.Status = domain.PayoutPending
		return ctx
	})

	// Offline settlement: the admin paid outside the gateway, so the case
	// completes without a UTR from an automated payout.
	reg.RegisterTransform("applyManualSettlement", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.ManualResolvePayload); ok {
			ctx.ResolutionRemarks = p.Remarks
		}
		ctx.Payout.Status = domain.PayoutCompleted
		ctx.Payout.DemandOrUTRID = "OFFLINE_SETTLEMENT"
		return ctx
	})

	reg.RegisterTransform("applyCapVerdict", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		ctx.Payout.Status = domain.PayoutCapped
		ctx.Payout.Eligible = false
		return ctx
	})

	reg.RegisterTransform("applyProcessedPayout", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		ctx.Payout.Status = domain.PayoutProcessed
		return ctx
	})

	reg.RegisterTransform("applyLateSettlement", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.PayoutCompletedPayload); ok {
			ctx.Payout.DemandOrUTRID = p.DemandID
		}
		ctx.Payout.Status = domain.PayoutCompleted
		return ctx
	})

	reg.RegisterTransform("applyFeedback", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		if p, ok := ev.Payload.(*domain.RatePayload); ok {
			ctx.Feedback = &domain.Feedback{Rating: p.Rating, Comment: p.Comment}
		}
		return ctx
	})

	reg.RegisterTransform("recordEscalation", func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext {
		ctx.EscalationLevel++
		return ctx
	})
}

// SMS template codes, mirrored from the localization catalogue.
const (
	TemplateReportCreated     = "SDCRS_SMS_REPORT_CREATED"
	TemplateReportVerified    = "SDCRS_SMS_REPORT_VERIFIED"
	TemplateReportRejected    = "SDCRS_SMS_REPORT_REJECTED"
	TemplateReportDuplicate   = "SDCRS_SMS_REPORT_DUPLICATE"
	TemplateReportAssigned    = "SDCRS_SMS_REPORT_ASSIGNED"
	TemplateOfficerAssigned   = "SDCRS_PUSH_OFFICER_ASSIGNED"
	TemplateReportCaptured    = "SDCRS_SMS_REPORT_CAPTURED"
	TemplateUnableToLocate    = "SDCRS_SMS_UNABLE_TO_LOCATE"
	TemplateReportResolved    = "SDCRS_SMS_REPORT_RESOLVED"
	TemplatePayoutInitiated   = "SDCRS_SMS_PAYOUT_INITIATED"
	TemplatePayoutFailed      = "SDCRS_SMS_PAYOUT_FAILED"
	TemplatePayoutCompleted   = "SDCRS_SMS_PAYOUT_COMPLETED"
	TemplatePayoutCapExceeded = "SDCRS_SMS_PAYOUT_CAP_EXCEEDED"
)

func registerActions(reg *Registry, cfg Config) {
	notify := func(template string, params func(domain.CaseContext) map[string]string) ActionBuilder {
		return func(ctx domain.CaseContext) domain.ActionRequest {
			p := map[string]string{"tracking_id": ctx.TrackingID}
			if params != nil {
				for k, v := range params(ctx) {
					p[k] = v
				}
			}
			return domain.ActionRequest{
				Type:    domain.ActionNotify,
				CaseID:  ctx.CaseID,
				Payload: domain.NotifyPayload{TemplateID: template, Params: p},
			}
		}
	}

	reg.RegisterAction("triggerAutoValidation", func(ctx domain.CaseContext) domain.ActionRequest {
		return domain.ActionRequest{Type: domain.ActionTriggerValidation, CaseID: ctx.CaseID}
	})

	reg.RegisterAction("notifySubmission", notify(TemplateReportCreated, nil))
	reg.RegisterAction("notifyVerification", notify(TemplateReportVerified, nil))
	reg.RegisterAction("notifyRejection", notify(TemplateReportRejected, func(ctx domain.CaseContext) map[string]string {
		return map[string]string{"reason": ctx.RejectionReason}
	}))
	reg.RegisterAction("notifyDuplicate", notify(TemplateReportDuplicate, func(ctx domain.CaseContext) map[string]string {
		return map[string]string{"remarks": ctx.RejectionRemarks}
	}))
	reg.RegisterAction("notifyAssignment", notify(TemplateReportAssigned, func(ctx domain.CaseContext) map[string]string {
		return map[string]string{"officer_name": ctx.AssignedOfficerName}
	}))
	reg.RegisterAction("notifyOfficer", notify(TemplateOfficerAssigned, func(ctx domain.CaseContext) map[string]string {
		return map[string]string{"officer_id": ctx.AssignedOfficerID}
	}))
	reg.RegisterAction("notifyCapture", notify(TemplateReportCaptured, nil))
	reg.RegisterAction("notifyUnableToLocate", notify(TemplateUnableToLocate, nil))
	reg.RegisterAction("notifyResolution", notify(TemplateReportResolved, nil))
	reg.RegisterAction("notifyPayoutInitiated", notify(TemplatePayoutInitiated, nil))
	reg.RegisterAction("notifyPayoutFailed", notify(TemplatePayoutFailed, nil))

	// Conditional: only eligible cases get a payout notification; capped
	// cases get the cap notice instead.
	reg.RegisterAction("notifyPayout", func(ctx domain.CaseContext) domain.ActionRequest {
		if ctx.Payout.Status == domain.PayoutCapped {
			return notify(TemplatePayoutCapExceeded, nil)(ctx)
		}
		if !ctx.Payout.Eligible {
			return domain.ActionRequest{}
		}
		return notify(TemplatePayoutCompleted, func(ctx domain.CaseContext) map[string]string {
			return map[string]string{"utr": ctx.Payout.DemandOrUTRID}
		})(ctx)
	})

	reg.RegisterAction("triggerPayout", func(ctx domain.CaseContext) domain.ActionRequest {
		return domain.ActionRequest{
			Type:   domain.ActionTriggerPayout,
			CaseID: ctx.CaseID,
			Payload: domain.PayoutTriggerPayload{
				TenantID: ctx.TenantID,
				PayeeRef: ctx.ReporterID,
				Amount:   ctx.Payout.Amount,
			},
		}
	})

	reg.RegisterAction("initiatePayout", func(ctx domain.CaseContext) domain.ActionRequest {
		return domain.ActionRequest{
			Type:   domain.ActionInitiatePayout,
			CaseID: ctx.CaseID,
			Payload: domain.PayoutTriggerPayload{
				TenantID: ctx.TenantID,
				PayeeRef: ctx.ReporterID,
				Amount:   ctx.Payout.Amount,
			},
		}
	})

	// Conditional: fires only once the case is parked past the retry cap.
	reg.RegisterAction("alertRetryExhausted", func(ctx domain.CaseContext) domain.ActionRequest {
		if ctx.Payout.RetryCount < cfg.MaxPayoutRetries {
			return domain.ActionRequest{}
		}
		return domain.ActionRequest{Type: domain.ActionRetryAlert, CaseID: ctx.CaseID}
	})

	reg.RegisterAction("alertEscalation", func(ctx domain.CaseContext) domain.ActionRequest {
		return domain.ActionRequest{
			Type:    domain.ActionEscalationAlert,
			CaseID:  ctx.CaseID,
			Payload: domain.EscalationAlertPayload{Level: ctx.EscalationLevel},
		}
	})
}

func joinErrors(errs []string) string {
	return strings.Join(errs, "; ")
}
