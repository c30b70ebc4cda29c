// Package payout bridges the workflow to the payment side: on capture it
// consults the monthly-cap ledger and routes the case into the payout
// sub-workflow; on payoutPending entry it calls the gateway; gateway
// callbacks come back as ordinary workflow events.
package payout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opencivic/sdcrs/internal/logging"
	"github.com/opencivic/sdcrs/pkg/domain"
	"github.com/opencivic/sdcrs/pkg/ports"
)

// Bridge reacts to payout action requests. It is registered on the
// dispatcher for ActionTriggerPayout and ActionInitiatePayout.
type Bridge struct {
	ledger  ports.Ledger
	gateway ports.PaymentGateway
	sink    ports.EventSink
	logger  *slog.Logger
}

// Option configures the Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// NewBridge wires the ledger and gateway collaborators to the event sink.
func NewBridge(ledger ports.Ledger, gateway ports.PaymentGateway, sink ports.EventSink, opts ...Option) *Bridge {
	b := &Bridge{
		ledger:  ledger,
		gateway: gateway,
		sink:    sink,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// HandleTrigger fires on entering captured. The ledger is queried here, in
// infrastructure, and its verdict travels into the engine as event payload:
// either the case proceeds into the payout sub-workflow or it resolves
// immediately under the cap.
func (b *Bridge) HandleTrigger(ctx context.Context, req domain.ActionRequest) error {
	payload, ok := req.Payload.(domain.PayoutTriggerPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", req.Payload, req.Type)
	}

	within, err := b.ledger.WithinMonthlyCap(ctx, payload.TenantID, payload.Amount)
	if err != nil {
		return fmt.Errorf("ledger query failed: %w", err)
	}

	event := domain.Event{
		ActorID:   "payout-bridge",
		ActorRole: domain.RoleSystem,
		At:        time.Now().UTC(),
	}
	if within {
		event.Type = domain.EventInitiatePayout
	} else {
		event.Type = domain.EventPayoutCapped
		event.Payload = &domain.CapVerdictPayload{CapExceeded: true}
	}

	outcome, err := b.sink.SubmitEvent(ctx, req.CaseID, event)
	if err != nil {
		return err
	}
	if !outcome.Applied {
		// The case moved on (e.g. a synchronous PROCESS_PAYOUT already
		// resolved it); nothing left to do.
		b.logger.Debug("payout trigger superseded", "case_id", req.CaseID, "reason", outcome.Reason)
	}
	return nil
}

// HandleInitiate fires on entering payoutPending and starts the gateway
// settlement. Failure to even start is reported back as PAYOUT_FAILED so
// the retry policy stays visible in the state model; the success or failure
// of a started payout arrives later through the gateway callback.
func (b *Bridge) HandleInitiate(ctx context.Context, req domain.ActionRequest) error {
	payload, ok := req.Payload.(domain.PayoutTriggerPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", req.Payload, req.Type)
	}

	err := b.gateway.InitiatePayout(ctx, req.CaseID, payload.Amount, payload.PayeeRef)
	if err == nil {
		return nil
	}

	b.logger.Warn("payout initiation failed", "case_id", req.CaseID, "err", err)
	_, submitErr := b.sink.SubmitEvent(ctx, req.CaseID, domain.Event{
		Type:      domain.EventPayoutFailed,
		ActorID:   "payout-bridge",
		ActorRole: domain.RoleSystem,
		At:        time.Now().UTC(),
		Payload:   &domain.PayoutFailedPayload{Reason: err.Error()},
	})
	return submitErr
}

// Callback translates a gateway webhook outcome into the matching workflow
// event. utr is required on success; reason on failure.
func (b *Bridge) Callback(ctx context.Context, caseID string, succeeded bool, utr, reason string) (domain.Outcome, error) {
	event := domain.Event{
		ActorID:   "payout-gateway",
		ActorRole: domain.RoleSystem,
		At:        time.Now().UTC(),
	}
	if succeeded {
		event.Type = domain.EventPayoutSuccess
		event.Payload = &domain.PayoutSuccessPayload{UTR: utr}
	} else {
		event.Type = domain.EventPayoutFailed
		event.Payload = &domain.PayoutFailedPayload{Reason: reason}
	}
	return b.sink.SubmitEvent(ctx, caseID, event)
}
