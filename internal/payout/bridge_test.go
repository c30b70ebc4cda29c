package payout_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/sdcrs/internal/payout"
	"github.com/opencivic/sdcrs/pkg/domain"
)

type stubLedger struct {
	within bool
	err    error
}

func (s *stubLedger) WithinMonthlyCap(context.Context, string, int64) (bool, error) {
	return s.within, s.err
}

type stubGateway struct {
	err    error
	called bool
	amount int64
	payee  string
}

func (s *stubGateway) InitiatePayout(_ context.Context, _ string, amount int64, payeeRef string) error {
	s.called = true
	s.amount = amount
	s.payee = payeeRef
	return s.err
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *sinkRecorder) SubmitEvent(_ context.Context, _ string, event domain.Event) (domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return domain.AppliedOutcome(domain.StatePayoutPending), nil
}

func (s *sinkRecorder) last(t *testing.T) domain.Event {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.events)
	return s.events[len(s.events)-1]
}

func triggerRequest() domain.ActionRequest {
	return domain.ActionRequest{
		Type:   domain.ActionTriggerPayout,
		CaseID: "C1",
		Payload: domain.PayoutTriggerPayload{
			TenantID: "dj",
			PayeeRef: "R1",
			Amount:   500,
		},
	}
}

func TestBridge_TriggerWithinCapInitiates(t *testing.T) {
	sink := &sinkRecorder{}
	bridge := payout.NewBridge(&stubLedger{within: true}, &stubGateway{}, sink)

	require.NoError(t, bridge.HandleTrigger(context.Background(), triggerRequest()))

	event := sink.last(t)
	assert.Equal(t, domain.EventInitiatePayout, event.Type)
	assert.Equal(t, domain.RoleSystem, event.ActorRole)
}

func TestBridge_TriggerOverCapReportsVerdict(t *testing.T) {
	sink := &sinkRecorder{}
	bridge := payout.NewBridge(&stubLedger{within: false}, &stubGateway{}, sink)

	require.NoError(t, bridge.HandleTrigger(context.Background(), triggerRequest()))

	event := sink.last(t)
	assert.Equal(t, domain.EventPayoutCapped, event.Type)
	verdict, ok := event.Payload.(*domain.CapVerdictPayload)
	require.True(t, ok)
	assert.True(t, verdict.CapExceeded)
}

func TestBridge_TriggerLedgerErrorRetries(t *testing.T) {
	sink := &sinkRecorder{}
	bridge := payout.NewBridge(&stubLedger{err: errors.New("ledger down")}, &stubGateway{}, sink)

	err := bridge.HandleTrigger(context.Background(), triggerRequest())
	assert.Error(t, err, "a ledger failure must bubble up for the dispatcher to retry")
	assert.Empty(t, sink.events)
}

func TestBridge_InitiateCallsGateway(t *testing.T) {
	sink := &sinkRecorder{}
	gateway := &stubGateway{}
	bridge := payout.NewBridge(&stubLedger{within: true}, gateway, sink)

	req := triggerRequest()
	req.Type = domain.ActionInitiatePayout
	require.NoError(t, bridge.HandleInitiate(context.Background(), req))

	assert.True(t, gateway.called)
	assert.Equal(t, int64(500), gateway.amount)
	assert.Equal(t, "R1", gateway.payee)
	assert.Empty(t, sink.events, "a started payout reports nothing until the callback")
}

func TestBridge_InitiateFailureFeedsBack(t *testing.T) {
	sink := &sinkRecorder{}
	gateway := &stubGateway{err: errors.New("gateway unreachable")}
	bridge := payout.NewBridge(&stubLedger{within: true}, gateway, sink)

	req := triggerRequest()
	req.Type = domain.ActionInitiatePayout
	require.NoError(t, bridge.HandleInitiate(context.Background(), req))

	event := sink.last(t)
	assert.Equal(t, domain.EventPayoutFailed, event.Type)
	payload, ok := event.Payload.(*domain.PayoutFailedPayload)
	require.True(t, ok)
	assert.Contains(t, payload.Reason, "unreachable")
}

func TestBridge_CallbackSuccessAndFailure(t *testing.T) {
	sink := &sinkRecorder{}
	bridge := payout.NewBridge(&stubLedger{}, &stubGateway{}, sink)
	ctx := context.Background()

	_, err := bridge.Callback(ctx, "C1", true, "U1", "")
	require.NoError(t, err)
	event := sink.last(t)
	assert.Equal(t, domain.EventPayoutSuccess, event.Type)
	assert.Equal(t, "U1", event.Payload.(*domain.PayoutSuccessPayload).UTR)

	_, err = bridge.Callback(ctx, "C1", false, "", "declined")
	require.NoError(t, err)
	event = sink.last(t)
	assert.Equal(t, domain.EventPayoutFailed, event.Type)
	assert.Equal(t, "declined", event.Payload.(*domain.PayoutFailedPayload).Reason)
}

func TestMemoryLedger_ReservesUnderCap(t *testing.T) {
	ledger := payout.NewMemoryLedger(1000)
	ctx := context.Background()

	within, err := ledger.WithinMonthlyCap(ctx, "dj", 500)
	require.NoError(t, err)
	assert.True(t, within)

	within, err = ledger.WithinMonthlyCap(ctx, "dj", 500)
	require.NoError(t, err)
	assert.True(t, within)
	assert.Equal(t, int64(1000), ledger.Spent("dj"))

	// The cap is now exhausted for this tenant this month.
	within, err = ledger.WithinMonthlyCap(ctx, "dj", 1)
	require.NoError(t, err)
	assert.False(t, within)

	// Other tenants have their own budget.
	within, err = ledger.WithinMonthlyCap(ctx, "mc", 500)
	require.NoError(t, err)
	assert.True(t, within)
}

func TestBridge_RejectsForeignPayload(t *testing.T) {
	bridge := payout.NewBridge(&stubLedger{}, &stubGateway{}, &sinkRecorder{})

	err := bridge.HandleTrigger(context.Background(), domain.ActionRequest{
		Type:    domain.ActionTriggerPayout,
		CaseID:  "C1",
		Payload: "garbage",
	})
	assert.Error(t, err)
}
