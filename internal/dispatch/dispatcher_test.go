package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/sdcrs/internal/dispatch"
	"github.com/opencivic/sdcrs/pkg/domain"
)

// recorder collects delivered requests and can fail the first n attempts.
type recorder struct {
	mu       sync.Mutex
	failures int
	attempts int
	got      []domain.ActionRequest
}

func (r *recorder) Handle(_ context.Context, req domain.ActionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.attempts <= r.failures {
		return errors.New("transient")
	}
	r.got = append(r.got, req)
	return nil
}

func (r *recorder) delivered() []domain.ActionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ActionRequest(nil), r.got...)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	d := dispatch.New()
	rec := &recorder{}
	d.Register(domain.ActionNotify, rec)

	d.Dispatch(context.Background(), []domain.ActionRequest{
		{Type: domain.ActionNotify, CaseID: "C1"},
		{Type: domain.ActionNotify, CaseID: "C2"},
	})
	d.Wait()

	got := rec.delivered()
	require.Len(t, got, 2)
	assert.Equal(t, "C1", got[0].CaseID)
	assert.Equal(t, "C2", got[1].CaseID)
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	d := dispatch.New(dispatch.WithRetry(3, time.Millisecond))
	rec := &recorder{failures: 2}
	d.Register(domain.ActionNotify, rec)

	d.Dispatch(context.Background(), []domain.ActionRequest{{Type: domain.ActionNotify, CaseID: "C1"}})
	d.Wait()

	require.Len(t, rec.delivered(), 1)
	assert.Equal(t, 3, rec.attempts)
}

func TestDispatcher_DropsAfterBudget(t *testing.T) {
	d := dispatch.New(dispatch.WithRetry(2, time.Millisecond))
	rec := &recorder{failures: 10}
	d.Register(domain.ActionNotify, rec)

	d.Dispatch(context.Background(), []domain.ActionRequest{{Type: domain.ActionNotify, CaseID: "C1"}})
	d.Wait()

	assert.Empty(t, rec.delivered())
	assert.Equal(t, 2, rec.attempts)
}

func TestDispatcher_SkipsUnhandledTypes(t *testing.T) {
	d := dispatch.New()
	rec := &recorder{}
	d.Register(domain.ActionNotify, rec)

	d.Dispatch(context.Background(), []domain.ActionRequest{
		{Type: "UNKNOWN", CaseID: "C1"},
		{Type: domain.ActionNotify, CaseID: "C2"},
	})
	d.Wait()

	got := rec.delivered()
	require.Len(t, got, 1)
	assert.Equal(t, "C2", got[0].CaseID)
}

// A canceled request context must not abort delivery: the transition is
// already committed by the time side effects run.
func TestDispatcher_SurvivesCallerCancellation(t *testing.T) {
	d := dispatch.New()
	rec := &recorder{}
	d.Register(domain.ActionNotify, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dispatch(ctx, []domain.ActionRequest{{Type: domain.ActionNotify, CaseID: "C1"}})
	d.Wait()

	assert.Len(t, rec.delivered(), 1)
}
