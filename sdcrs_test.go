package sdcrs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/sdcrs"
	"github.com/opencivic/sdcrs/internal/adapters/memory"
	"github.com/opencivic/sdcrs/internal/dispatch"
	"github.com/opencivic/sdcrs/internal/payout"
	"github.com/opencivic/sdcrs/internal/validation"
	"github.com/opencivic/sdcrs/pkg/domain"
)

func newService(t *testing.T, opts ...sdcrs.Option) *sdcrs.Service {
	t.Helper()
	svc, err := sdcrs.New(append([]sdcrs.Option{sdcrs.WithStore(memory.NewStore())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := sdcrs.New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store is required")
}

func TestService_SubmitReport(t *testing.T) {
	svc := newService(t)

	instance, err := svc.SubmitReport(context.Background(), "R1", domain.ReporterTeacher)
	require.NoError(t, err)

	assert.Regexp(t, `^DJ-SDCRS-\d{4}-\d{6}$`, instance.CaseID)
	assert.Regexp(t, `^[A-Z]{3}[0-9]{3}$`, instance.Context.TrackingID)
	assert.Equal(t, domain.StatePendingValidation, instance.State)
	assert.Equal(t, int64(1), instance.Version)
	assert.Equal(t, "R1", instance.Context.ReporterID)
	assert.Equal(t, domain.ReporterTeacher, instance.Context.ReporterRole)
	assert.Equal(t, int64(500), instance.Context.Payout.Amount)
}

func TestService_SubmitReportsGetDistinctIDs(t *testing.T) {
	svc := newService(t)

	first, err := svc.SubmitReport(context.Background(), "R1", domain.ReporterCitizen)
	require.NoError(t, err)
	second, err := svc.SubmitReport(context.Background(), "R2", domain.ReporterCitizen)
	require.NoError(t, err)

	assert.NotEqual(t, first.CaseID, second.CaseID)
	assert.NotEqual(t, first.Context.TrackingID, second.Context.TrackingID)
}

func TestService_SubmitEventCommits(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	instance, err := svc.SubmitReport(ctx, "R1", domain.ReporterCitizen)
	require.NoError(t, err)

	outcome, err := svc.SubmitEvent(ctx, instance.CaseID, domain.Event{
		Type:      domain.EventAutoValidatePass,
		ActorID:   "auto-validator",
		ActorRole: domain.RoleSystem,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Applied)
	assert.Equal(t, domain.StatePendingVerification, outcome.State)

	got, err := svc.GetCase(ctx, instance.CaseID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePendingVerification, got.State)
	assert.Equal(t, int64(2), got.Version)
}

func TestService_RejectionComesBackInOutcome(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	instance, err := svc.SubmitReport(ctx, "R1", domain.ReporterCitizen)
	require.NoError(t, err)

	// VERIFY is not declared for pendingValidation. The refusal is an
	// outcome, not an error, and the case must not move.
	outcome, err := svc.SubmitEvent(ctx, instance.CaseID, domain.Event{
		Type:      domain.EventVerify,
		ActorID:   "V1",
		ActorRole: domain.RoleVerifier,
		Payload:   &domain.VerifyPayload{VerifierID: "V1"},
	})
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, domain.KindInvalidEvent, outcome.Kind)
	assert.Equal(t, domain.StatePendingValidation, outcome.State)

	got, err := svc.GetCase(ctx, instance.CaseID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePendingValidation, got.State)
	assert.Equal(t, int64(1), got.Version)
}

func TestService_UnknownCaseIsAnError(t *testing.T) {
	svc := newService(t)

	_, err := svc.SubmitEvent(context.Background(), "DJ-SDCRS-2026-999999", domain.Event{
		Type: domain.EventComment,
		Payload: &domain.CommentPayload{
			AuthorID: "V1", Text: "where is this case",
		},
	})
	assert.ErrorIs(t, err, domain.ErrCaseNotFound)
}

// actionRecorder collects dispatched side-effect requests.
type actionRecorder struct {
	mu  sync.Mutex
	got []domain.ActionRequest
}

func (r *actionRecorder) handle(_ context.Context, req domain.ActionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, req)
	return nil
}

func (r *actionRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.got))
	for i, req := range r.got {
		out[i] = req.Type
	}
	return out
}

func TestService_DispatchesEntryActions(t *testing.T) {
	svc := newService(t)
	rec := &actionRecorder{}
	svc.Dispatcher().RegisterFunc(domain.ActionTriggerValidation, rec.handle)
	svc.Dispatcher().RegisterFunc(domain.ActionNotify, rec.handle)

	instance, err := svc.SubmitReport(context.Background(), "R1", domain.ReporterCitizen)
	require.NoError(t, err)

	svc.Close()

	types := rec.types()
	assert.Contains(t, types, domain.ActionTriggerValidation)
	assert.Contains(t, types, domain.ActionNotify)
	for _, req := range rec.got {
		assert.Equal(t, instance.CaseID, req.CaseID)
	}
}

// The full collaborator wiring: auto-validation, cap ledger, loopback
// gateway. Everything past SUBMIT that is system-driven happens through
// dispatched actions feeding events back into the service.
func TestService_FullLifecycle(t *testing.T) {
	svc := newService(t, sdcrs.WithDispatchOptions(dispatch.WithRetry(3, time.Millisecond)))
	ctx := context.Background()

	validator := validation.New(validation.GetterFunc(svc.GetCase), svc)
	svc.Dispatcher().RegisterFunc(domain.ActionTriggerValidation, validator.Handle)

	gateway := payout.NewLoopbackGateway(5*time.Millisecond, nil)
	bridge := payout.NewBridge(payout.NewMemoryLedger(0), gateway, svc)
	gateway.Bind(bridge)
	svc.Dispatcher().RegisterFunc(domain.ActionTriggerPayout, bridge.HandleTrigger)
	svc.Dispatcher().RegisterFunc(domain.ActionInitiatePayout, bridge.HandleInitiate)

	instance, err := svc.SubmitReport(ctx, "R1", domain.ReporterTeacher)
	require.NoError(t, err)
	caseID := instance.CaseID

	waitForState := func(want domain.State) {
		t.Helper()
		require.Eventually(t, func() bool {
			got, err := svc.GetCase(ctx, caseID)
			return err == nil && got.State == want
		}, 2*time.Second, 5*time.Millisecond, "case never reached %s", want)
	}

	// The dispatched validator moves the case on its own.
	waitForState(domain.StatePendingVerification)

	submit := func(e domain.Event) {
		t.Helper()
		outcome, err := svc.SubmitEvent(ctx, caseID, e)
		require.NoError(t, err)
		require.True(t, outcome.Applied, "event %s refused: %s", e.Type, outcome.Reason)
	}

	submit(domain.Event{
		Type: domain.EventVerify, ActorID: "V1", ActorRole: domain.RoleVerifier,
		Payload: &domain.VerifyPayload{VerifierID: "V1", Remarks: "confirmed"},
	})
	submit(domain.Event{
		Type: domain.EventAssignMC, ActorID: "S1", ActorRole: domain.RoleSupervisor,
		Payload: &domain.AssignPayload{OfficerID: "O1", OfficerName: "Officer One"},
	})
	submit(domain.Event{
		Type: domain.EventStartFieldVisit, ActorID: "O1", ActorRole: domain.RoleOfficer,
		Payload: &domain.FieldVisitPayload{OfficerID: "O1"},
	})
	submit(domain.Event{
		Type: domain.EventMarkCaptured, ActorID: "O1", ActorRole: domain.RoleOfficer,
		Payload: &domain.ResolutionPayload{OfficerID: "O1", Remarks: "dog caught"},
	})

	// Cap check, gateway call and success callback run unattended.
	waitForState(domain.StateResolved)

	got, err := svc.GetCase(ctx, caseID)
	require.NoError(t, err)
	assert.True(t, got.Context.Payout.Eligible)
	assert.Equal(t, domain.PayoutCompleted, got.Context.Payout.Status)
	assert.Regexp(t, `^LOOP\d+$`, got.Context.Payout.DemandOrUTRID)
	assert.Equal(t, "O1", got.Context.ResolvedBy)
	assert.Equal(t, domain.ResolutionCaptured, got.Context.ResolutionType)

	// Feedback closes the resolved case.
	submit(domain.Event{
		Type: domain.EventRate, ActorID: "R1", ActorRole: domain.RoleCitizen,
		Payload: &domain.RatePayload{Rating: 5, Comment: "quick response"},
	})
	got, err = svc.GetCase(ctx, caseID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateClosed, got.State)
	require.NotNil(t, got.Context.Feedback)
	assert.Equal(t, 5, got.Context.Feedback.Rating)
}

func TestService_TenantFlowsIntoCaseIDs(t *testing.T) {
	svc := newService(t, sdcrs.WithTenant("mc"))

	instance, err := svc.SubmitReport(context.Background(), "R1", domain.ReporterCitizen)
	require.NoError(t, err)
	assert.Regexp(t, `^MC-SDCRS-\d{4}-\d{6}$`, instance.CaseID)
	assert.Equal(t, "mc", instance.Context.TenantID)
}
