// Package sla arms per-case deadline timers and injects escalation events
// when they expire. Timers are keyed by (case ID, version): a timer that
// fires after the case has already moved is discarded by the version check,
// on top of the mandatory cancellation on state exit.
package sla

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opencivic/sdcrs/internal/logging"
	"github.com/opencivic/sdcrs/internal/metrics"
	"github.com/opencivic/sdcrs/pkg/domain"
	"github.com/opencivic/sdcrs/pkg/ports"
	"github.com/opencivic/sdcrs/pkg/workflow"
)

// Getter fetches the current instance; used to verify a firing timer is
// still current before synthesizing the escalation.
type Getter interface {
	Get(ctx context.Context, caseID string) (*domain.Instance, error)
}

type armedTimer struct {
	timer   *time.Timer
	version int64
	state   domain.State
}

// Service owns one live timer per case.
type Service struct {
	def    *workflow.Definition
	cases  Getter
	sink   ports.EventSink
	logger *slog.Logger
	m      *metrics.Metrics

	mu     sync.Mutex
	timers map[string]*armedTimer
	closed bool
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics wires the escalation counter.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.m = m
	}
}

// New creates the timer service. sink receives the synthesized ESCALATE
// events; it is the same ingress path actor events take.
func New(def *workflow.Definition, cases Getter, sink ports.EventSink, opts ...Option) *Service {
	s := &Service{
		def:    def,
		cases:  cases,
		sink:   sink,
		logger: logging.NewNop(),
		m:      metrics.NewNop(),
		timers: make(map[string]*armedTimer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transition re-arms the case's timer for its new state. The previous timer
// is always canceled first; a state without a declared SLA ends up with no
// timer at all. Self-transitions re-arm because the version moved.
func (s *Service) Transition(caseID string, state domain.State, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[caseID]; ok {
		existing.timer.Stop()
		delete(s.timers, caseID)
	}
	if s.closed {
		return
	}

	duration, ok := s.def.SLA(state)
	if !ok {
		return
	}

	armed := &armedTimer{version: version, state: state}
	armed.timer = time.AfterFunc(duration, func() {
		s.fire(caseID, armed)
	})
	s.timers[caseID] = armed
}

// Cancel drops the case's timer, if any.
func (s *Service) Cancel(caseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[caseID]; ok {
		existing.timer.Stop()
		delete(s.timers, caseID)
	}
}

// Close cancels all timers and refuses new ones.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, armed := range s.timers {
		armed.timer.Stop()
		delete(s.timers, id)
	}
}

// fire runs on timer expiry. It drops the armed entry, verifies the case
// still sits at the armed version, and feeds an ESCALATE event through the
// normal apply path. States without an escalation rule reject the event,
// which is harmless.
func (s *Service) fire(caseID string, armed *armedTimer) {
	s.mu.Lock()
	if current, ok := s.timers[caseID]; ok && current == armed {
		delete(s.timers, caseID)
	}
	s.mu.Unlock()

	ctx := context.Background()

	instance, err := s.cases.Get(ctx, caseID)
	if err != nil {
		s.logger.Error("sla fire: failed to load case", "case_id", caseID, "err", err)
		return
	}
	if instance.Version != armed.version {
		// The case moved while the timer was in flight.
		s.logger.Debug("sla fire discarded, version moved",
			"case_id", caseID,
			"armed_version", armed.version,
			"current_version", instance.Version,
		)
		return
	}

	s.m.Escalations.WithLabelValues(string(armed.state)).Inc()
	s.logger.Info("sla breached, escalating", "case_id", caseID, "state", armed.state)

	outcome, err := s.sink.SubmitEvent(ctx, caseID, domain.Event{
		Type:      domain.EventEscalate,
		ActorID:   "sla-timer",
		ActorRole: domain.RoleSystem,
		At:        time.Now().UTC(),
		Payload: &domain.EscalatePayload{
			FromState: armed.state,
			Version:   armed.version,
		},
	})
	if err != nil {
		s.logger.Error("sla escalation failed", "case_id", caseID, "err", err)
		return
	}
	if !outcome.Applied {
		s.logger.Debug("sla escalation rejected", "case_id", caseID, "reason", outcome.Reason)
	}
}
