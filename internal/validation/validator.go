// Package validation runs the automated checks a fresh report goes through
// before it reaches a human verifier.
package validation

import (
	"context"
	"log/slog"
	"time"

	"github.com/opencivic/sdcrs/internal/logging"
	"github.com/opencivic/sdcrs/pkg/domain"
	"github.com/opencivic/sdcrs/pkg/ports"
)

// Rule inspects a submitted case and returns a finding string for each
// problem. An empty result means the rule passed.
type Rule func(domain.CaseContext) []string

// Validator reacts to the validation trigger action: it loads the case,
// runs the rule set and feeds the verdict back as AUTO_VALIDATE_PASS or
// AUTO_VALIDATE_FAIL.
type Validator struct {
	cases  Getter
	sink   ports.EventSink
	rules  []Rule
	logger *slog.Logger
}

// Getter fetches the current instance.
type Getter interface {
	Get(ctx context.Context, caseID string) (*domain.Instance, error)
}

// GetterFunc adapts a plain function to the Getter interface.
type GetterFunc func(ctx context.Context, caseID string) (*domain.Instance, error)

func (f GetterFunc) Get(ctx context.Context, caseID string) (*domain.Instance, error) {
	return f(ctx, caseID)
}

// Option configures the Validator.
type Option func(*Validator)

// WithRules replaces the default rule set.
func WithRules(rules ...Rule) Option {
	return func(v *Validator) {
		v.rules = rules
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// New creates a Validator with the default rule set.
func New(cases Getter, sink ports.EventSink, opts ...Option) *Validator {
	v := &Validator{
		cases:  cases,
		sink:   sink,
		rules:  []Rule{RequireReporter},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// RequireReporter rejects anonymous submissions.
func RequireReporter(ctx domain.CaseContext) []string {
	if ctx.ReporterID == "" {
		return []string{"reporter identity missing"}
	}
	return nil
}

// Handle is the dispatcher hook for the validation trigger action.
func (v *Validator) Handle(ctx context.Context, req domain.ActionRequest) error {
	instance, err := v.cases.Get(ctx, req.CaseID)
	if err != nil {
		return err
	}

	var findings []string
	for _, rule := range v.rules {
		findings = append(findings, rule(instance.Context)...)
	}

	event := domain.Event{
		Type:      domain.EventAutoValidatePass,
		ActorID:   "auto-validator",
		ActorRole: domain.RoleSystem,
		At:        time.Now().UTC(),
	}
	if len(findings) > 0 {
		event.Type = domain.EventAutoValidateFail
		event.Payload = &domain.ValidateFailPayload{Errors: findings}
		v.logger.Info("auto validation failed", "case_id", req.CaseID, "findings", findings)
	}

	outcome, err := v.sink.SubmitEvent(ctx, req.CaseID, event)
	if err != nil {
		return err
	}
	if !outcome.Applied {
		// The case already moved on; a duplicate trigger is harmless.
		v.logger.Debug("validation verdict superseded", "case_id", req.CaseID, "reason", outcome.Reason)
	}
	return nil
}
