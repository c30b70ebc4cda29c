package sla_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/sdcrs/internal/sla"
	"github.com/opencivic/sdcrs/pkg/domain"
	"github.com/opencivic/sdcrs/pkg/workflow"
)

// fakeCases serves a fixed instance snapshot.
type fakeCases struct {
	mu       sync.Mutex
	instance *domain.Instance
}

func (f *fakeCases) Get(_ context.Context, caseID string) (*domain.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.instance == nil || f.instance.CaseID != caseID {
		return nil, domain.ErrCaseNotFound
	}
	return f.instance.Clone(), nil
}

func (f *fakeCases) set(instance *domain.Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instance = instance
}

// fakeSink records submitted events and signals on each one.
type fakeSink struct {
	mu     sync.Mutex
	events []domain.Event
	fired  chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{fired: make(chan struct{}, 16)}
}

func (f *fakeSink) SubmitEvent(_ context.Context, caseID string, event domain.Event) (domain.Outcome, error) {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	f.fired <- struct{}{}
	return domain.AppliedOutcome(domain.StatePendingValidation), nil
}

func (f *fakeSink) submitted() []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Event(nil), f.events...)
}

// shortSLA builds a definition where pendingValidation escalates quickly.
func shortSLA(d time.Duration) *workflow.Definition {
	slas := make(map[domain.State]time.Duration)
	for s, v := range workflow.DefaultSLAs {
		slas[s] = v
	}
	slas[domain.StatePendingValidation] = d
	return workflow.New(workflow.Config{SLAs: slas})
}

func pendingInstance(version int64) *domain.Instance {
	instance := domain.NewInstance(domain.NewCaseContext("C1", "ABC123", "dj", 500))
	instance.State = domain.StatePendingValidation
	instance.Version = version
	return instance
}

func TestService_FiresEscalationOnBreach(t *testing.T) {
	cases := &fakeCases{}
	sink := newFakeSink()
	svc := sla.New(shortSLA(20*time.Millisecond), cases, sink)
	defer svc.Close()

	instance := pendingInstance(1)
	cases.set(instance)
	svc.Transition("C1", instance.State, instance.Version)

	select {
	case <-sink.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("escalation did not fire")
	}

	events := sink.submitted()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventEscalate, events[0].Type)
	assert.Equal(t, domain.RoleSystem, events[0].ActorRole)

	payload, ok := events[0].Payload.(*domain.EscalatePayload)
	require.True(t, ok)
	assert.Equal(t, domain.StatePendingValidation, payload.FromState)
	assert.Equal(t, int64(1), payload.Version)
}

func TestService_StaleTimerIsDiscarded(t *testing.T) {
	cases := &fakeCases{}
	sink := newFakeSink()
	svc := sla.New(shortSLA(20*time.Millisecond), cases, sink)
	defer svc.Close()

	cases.set(pendingInstance(1))
	svc.Transition("C1", domain.StatePendingValidation, 1)

	// The case moves before the timer fires; the fire must become a no-op.
	cases.set(pendingInstance(2))

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, sink.submitted(), "stale timer must not escalate")
}

func TestService_TransitionReplacesTimer(t *testing.T) {
	cases := &fakeCases{}
	sink := newFakeSink()
	svc := sla.New(shortSLA(30*time.Millisecond), cases, sink)
	defer svc.Close()

	instance := pendingInstance(1)
	cases.set(instance)
	svc.Transition("C1", instance.State, 1)

	// Re-arm for a state without an SLA; the pending timer must die with it.
	svc.Transition("C1", domain.StateResolved, 2)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, sink.submitted())
}

func TestService_CancelStopsTimer(t *testing.T) {
	cases := &fakeCases{}
	sink := newFakeSink()
	svc := sla.New(shortSLA(30*time.Millisecond), cases, sink)
	defer svc.Close()

	cases.set(pendingInstance(1))
	svc.Transition("C1", domain.StatePendingValidation, 1)
	svc.Cancel("C1")

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, sink.submitted())
}

func TestService_CloseRefusesNewTimers(t *testing.T) {
	cases := &fakeCases{}
	sink := newFakeSink()
	svc := sla.New(shortSLA(10*time.Millisecond), cases, sink)

	svc.Close()
	cases.set(pendingInstance(1))
	svc.Transition("C1", domain.StatePendingValidation, 1)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sink.submitted())
}
