// Package dispatch delivers post-commit side effects: notifications, payout
// triggers and escalation alerts. Delivery is at-least-once with capped
// exponential backoff; a failed delivery is logged and dropped, never
// converted into a transition failure.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opencivic/sdcrs/internal/logging"
	"github.com/opencivic/sdcrs/internal/metrics"
	"github.com/opencivic/sdcrs/pkg/domain"
	"github.com/opencivic/sdcrs/pkg/ports"
)

// Dispatcher routes action requests to registered handlers by action type.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]ports.ActionHandler

	maxAttempts int
	baseBackoff time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics wires delivery counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithRetry tunes the retry policy.
func WithRetry(maxAttempts int, baseBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		d.maxAttempts = maxAttempts
		d.baseBackoff = baseBackoff
	}
}

// New creates a Dispatcher with no handlers registered.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers:    make(map[string]ports.ActionHandler),
		maxAttempts: 3,
		baseBackoff: 250 * time.Millisecond,
		logger:      logging.NewNop(),
		metrics:     metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds a handler to an action type. Unhandled action types are
// logged and skipped at dispatch time.
func (d *Dispatcher) Register(actionType string, handler ports.ActionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[actionType] = handler
}

// RegisterFunc binds a plain function as a handler.
func (d *Dispatcher) RegisterFunc(actionType string, fn func(context.Context, domain.ActionRequest) error) {
	d.Register(actionType, handlerFunc(fn))
}

type handlerFunc func(context.Context, domain.ActionRequest) error

func (f handlerFunc) Handle(ctx context.Context, req domain.ActionRequest) error {
	return f(ctx, req)
}

// Dispatch delivers the actions asynchronously, in order per call but
// detached from the caller: the committed transition is already durable and
// must not wait on collaborator I/O.
func (d *Dispatcher) Dispatch(ctx context.Context, actions []domain.ActionRequest) {
	if len(actions) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for _, req := range actions {
			d.deliver(context.WithoutCancel(ctx), req)
		}
	}()
}

// deliver attempts one action with retry-with-backoff. Handlers must
// tolerate duplicate delivery: a retry after a handler that succeeded but
// failed to report is indistinguishable from a genuine failure.
func (d *Dispatcher) deliver(ctx context.Context, req domain.ActionRequest) {
	d.mu.RLock()
	handler, ok := d.handlers[req.Type]
	d.mu.RUnlock()
	if !ok {
		d.logger.Debug("no handler for action", "type", req.Type, "case_id", req.CaseID)
		return
	}

	backoff := d.baseBackoff
	for attempt := 1; ; attempt++ {
		err := handler.Handle(ctx, req)
		if err == nil {
			return
		}

		if attempt >= d.maxAttempts {
			d.metrics.DispatchDropped.Inc()
			d.logger.Error("side effect abandoned",
				"type", req.Type,
				"case_id", req.CaseID,
				"attempts", attempt,
				"err", err,
			)
			return
		}

		d.metrics.DispatchRetries.Inc()
		d.logger.Warn("side effect failed, retrying",
			"type", req.Type,
			"case_id", req.CaseID,
			"attempt", attempt,
			"err", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// Wait blocks until all in-flight deliveries finish. Used on shutdown and
// in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
