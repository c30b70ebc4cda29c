package sdcrs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opencivic/sdcrs/internal/casestore"
	"github.com/opencivic/sdcrs/internal/dispatch"
	"github.com/opencivic/sdcrs/internal/logging"
	"github.com/opencivic/sdcrs/internal/metrics"
	"github.com/opencivic/sdcrs/internal/sla"
	"github.com/opencivic/sdcrs/internal/tracking"
	"github.com/opencivic/sdcrs/pkg/domain"
	"github.com/opencivic/sdcrs/pkg/engine"
	"github.com/opencivic/sdcrs/pkg/ports"
	"github.com/opencivic/sdcrs/pkg/workflow"
)

// Service is the high-level entry point: the sole mutation path for case
// workflow instances. It serializes transition attempts per case, runs the
// pure engine, commits under the optimistic version, and only then lets the
// dispatcher and SLA timers see the outcome.
type Service struct {
	engine     *engine.Engine
	cases      *casestore.Manager
	dispatcher *dispatch.Dispatcher
	timers     *sla.Service
	idgen      *tracking.Generator
	tenantID   string
	logger     *slog.Logger
	m          *metrics.Metrics

	workflowCfg workflow.Config
}

// Option configures the Service.
type Option func(*options)

type options struct {
	store       ports.InstanceStore
	locker      ports.DistributedLocker
	sequencer   tracking.Sequencer
	logger      *slog.Logger
	m           *metrics.Metrics
	workflowCfg workflow.Config
	tenantID    string
	dispatch    []dispatch.Option
}

// WithStore sets the persistence backend (default: in-memory).
func WithStore(store ports.InstanceStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithLocker enables distributed per-case locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(o *options) {
		o.locker = locker
	}
}

// WithSequencer sets the report-number sequencer (default: in-memory).
func WithSequencer(seq tracking.Sequencer) Option {
	return func(o *options) {
		o.sequencer = seq
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics wires the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.m = m
	}
}

// WithWorkflowConfig tunes the workflow definition (payout amount, retry
// budget, SLA durations).
func WithWorkflowConfig(cfg workflow.Config) Option {
	return func(o *options) {
		o.workflowCfg = cfg
	}
}

// WithTenant sets the tenant ID stamped on new cases (default "dj").
func WithTenant(tenantID string) Option {
	return func(o *options) {
		o.tenantID = tenantID
	}
}

// WithDispatchOptions forwards options to the side-effect dispatcher.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(o *options) {
		o.dispatch = append(o.dispatch, opts...)
	}
}

// New builds a Service. The workflow definition is validated here, so a
// malformed table fails fast at startup instead of at the first event.
func New(opts ...Option) (*Service, error) {
	o := &options{
		logger:   logging.NewNop(),
		m:        metrics.NewNop(),
		tenantID: "dj",
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		return nil, fmt.Errorf("sdcrs: a store is required (use WithStore)")
	}
	if o.sequencer == nil {
		o.sequencer = tracking.NewMemorySequencer()
	}

	def := workflow.New(o.workflowCfg)
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}

	managerOpts := []casestore.Option{casestore.WithLogger(o.logger)}
	if o.locker != nil {
		managerOpts = append(managerOpts, casestore.WithLocker(o.locker))
	}
	cases := casestore.NewManager(o.store, managerOpts...)

	dispatchOpts := append([]dispatch.Option{
		dispatch.WithLogger(o.logger),
		dispatch.WithMetrics(o.m),
	}, o.dispatch...)

	s := &Service{
		engine:      engine.New(def),
		cases:       cases,
		dispatcher:  dispatch.New(dispatchOpts...),
		idgen:       tracking.NewGenerator(o.sequencer),
		tenantID:    o.tenantID,
		logger:      o.logger,
		m:           o.m,
		workflowCfg: o.workflowCfg.Normalize(),
	}
	s.timers = sla.New(def, cases, s, sla.WithLogger(o.logger), sla.WithMetrics(o.m))
	return s, nil
}

// Definition exposes the validated workflow table (for visualization and
// introspection).
func (s *Service) Definition() *workflow.Definition {
	return s.engine.Definition()
}

// Dispatcher exposes the side-effect dispatcher so hosts can register
// handlers (notifications, payout bridge) before serving traffic.
func (s *Service) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// SubmitReport creates a new case and feeds it the initial SUBMIT event.
// It returns the committed instance, already in pendingValidation.
func (s *Service) SubmitReport(ctx context.Context, reporterID string, role domain.ReporterRole) (*domain.Instance, error) {
	caseID, err := s.idgen.ReportNumber(ctx, s.tenantID)
	if err != nil {
		return nil, err
	}
	token, err := s.idgen.TrackingToken()
	if err != nil {
		return nil, err
	}

	caseCtx := domain.NewCaseContext(caseID, token, s.tenantID, s.workflowCfg.PayoutAmount)
	if err := s.cases.Create(ctx, domain.NewInstance(caseCtx)); err != nil {
		return nil, err
	}

	outcome, err := s.SubmitEvent(ctx, caseID, domain.Event{
		Type:      domain.EventSubmit,
		ActorID:   reporterID,
		ActorRole: domain.ActorRole(role),
		At:        time.Now().UTC(),
		Payload:   &domain.SubmitPayload{ReporterID: reporterID, ReporterRole: role},
	})
	if err != nil {
		return nil, err
	}
	if !outcome.Applied {
		// Unreachable with a validated definition: idle always accepts SUBMIT.
		return nil, fmt.Errorf("submit rejected: %s", outcome.Reason)
	}

	return s.cases.Get(ctx, caseID)
}

// SubmitEvent is the sole mutation entry point. Expected rejections come
// back inside the Outcome with a nil error; the error return is reserved
// for unknown cases and infrastructure failures.
//
// The get → apply → commit cycle runs under the per-case exclusion; version
// conflicts are retried internally and never surface. Side effects and SLA
// re-arming happen after the commit, outside the critical section.
func (s *Service) SubmitEvent(ctx context.Context, caseID string, event domain.Event) (domain.Outcome, error) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	var (
		result *engine.Result
		from   domain.State
	)
	committed, err := s.cases.Update(ctx, caseID, func(current *domain.Instance) (*domain.Instance, error) {
		from = current.State
		var applyErr error
		result, applyErr = s.engine.Apply(current, event)
		if applyErr != nil {
			return nil, applyErr
		}
		return result.Instance, nil
	})
	if err != nil {
		if te, ok := domain.AsTransitionError(err); ok {
			s.m.Rejections.WithLabelValues(string(te.Kind)).Inc()
			s.logger.Info("event rejected",
				"case_id", caseID,
				"event", event.Type,
				"kind", te.Kind,
				"reason", te.Reason,
			)
			return domain.RejectedOutcome(te.State, te), nil
		}
		return domain.Outcome{}, err
	}

	s.m.Transitions.WithLabelValues(string(from), string(event.Type), string(committed.State)).Inc()
	if event.Type == domain.EventRetryPayout {
		s.m.PayoutRetries.Inc()
	}
	s.logger.Info("transition committed",
		"case_id", caseID,
		"event", event.Type,
		"from", from,
		"to", committed.State,
		"version", committed.Version,
	)

	s.dispatcher.Dispatch(ctx, result.Actions)
	s.timers.Transition(caseID, committed.State, committed.Version)

	return domain.AppliedOutcome(committed.State), nil
}

// GetCase returns the current instance snapshot.
func (s *Service) GetCase(ctx context.Context, caseID string) (*domain.Instance, error) {
	return s.cases.Get(ctx, caseID)
}

// ListCases returns all known case IDs.
func (s *Service) ListCases(ctx context.Context) ([]string, error) {
	return s.cases.List(ctx)
}

// Close cancels all SLA timers and waits for in-flight side effects.
func (s *Service) Close() {
	s.timers.Close()
	s.dispatcher.Wait()
}
