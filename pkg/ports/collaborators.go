package ports

import (
	"context"

	"github.com/opencivic/sdcrs/pkg/domain"
)

// ActionDispatcher delivers entry actions after a committed transition.
// Delivery is at-least-once: implementations retry failures and handlers
// must tolerate duplicates. A dispatch failure never rolls back the
// transition that produced it.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, actions []domain.ActionRequest)
}

// ActionHandler executes a single side-effect request. Returned errors
// trigger the dispatcher's retry policy.
type ActionHandler interface {
	Handle(ctx context.Context, req domain.ActionRequest) error
}

// Notifier is the SMS/push collaborator. Calls are fire-and-forget from the
// workflow's point of view; a lost notification never fails a case.
type Notifier interface {
	Notify(ctx context.Context, caseID, templateID string, params map[string]string) error
}

// PaymentGateway is the payout collaborator (contact/fund-account/payout).
// The call only starts the settlement; its outcome comes back later as a
// PAYOUT_SUCCESS or PAYOUT_FAILED event through the normal ingress.
type PaymentGateway interface {
	InitiatePayout(ctx context.Context, caseID string, amount int64, payeeRef string) error
}

// Ledger answers the monthly per-tenant payout ceiling. It is consulted
// before submitting the cap-related transition; the engine itself only
// sees the verdict carried in the event.
type Ledger interface {
	WithinMonthlyCap(ctx context.Context, tenantID string, amount int64) (bool, error)
}

// EventSink accepts workflow events. It is how collaborators that produce
// events asynchronously (payment callbacks, SLA timers) feed them back
// without depending on the service type.
type EventSink interface {
	SubmitEvent(ctx context.Context, caseID string, event domain.Event) (domain.Outcome, error)
}
