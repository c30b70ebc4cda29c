package engine

import (
	"errors"

	"github.com/opencivic/sdcrs/pkg/domain"
	"github.com/opencivic/sdcrs/pkg/workflow"
)

// Engine evaluates events against the workflow definition. It is pure: it
// never performs I/O, never blocks, and leaves the input instance untouched.
// The caller owns committing the returned instance and dispatching the
// returned actions.
type Engine struct {
	def *workflow.Definition
}

// New creates an engine over a validated workflow definition.
func New(def *workflow.Definition) *Engine {
	return &Engine{def: def}
}

// Definition returns the workflow table the engine runs.
func (e *Engine) Definition() *workflow.Definition {
	return e.def
}

// Result is a successful transition: the next instance snapshot and the
// side-effect requests to dispatch after commit.
type Result struct {
	Instance *domain.Instance
	Actions  []domain.ActionRequest
	// Internal marks a self-transition that mutated context without
	// re-entering the state; entry actions were not re-fired.
	Internal bool
}

// Apply evaluates one event against the current instance.
//
// Expected rejections (undeclared event, guard refusal, spent retry budget)
// come back as *domain.TransitionError; the instance is guaranteed unchanged
// and the attempt is always safe to retry or abandon. Apply is deterministic:
// identical inputs, including ev.At, produce identical outputs.
func (e *Engine) Apply(instance *domain.Instance, ev domain.Event) (*Result, error) {
	rule, ok := e.def.Lookup(instance.State, ev.Type)
	if !ok {
		return nil, domain.NewInvalidEvent(instance.State, ev.Type)
	}

	guard, ok := e.def.Registry().Guard(rule.GuardID)
	if !ok {
		// Unresolvable IDs are a definition bug; Validate catches this at
		// startup, so treat it as an undeclared event here.
		return nil, domain.NewInvalidEvent(instance.State, ev.Type)
	}
	if guard != nil {
		if err := guard(instance.Context, ev); err != nil {
			if errors.Is(err, workflow.ErrRetryExhausted) {
				return nil, domain.NewRetryExhausted(instance.State, ev.Type, err.Error())
			}
			return nil, domain.NewGuardRejected(instance.State, ev.Type, err.Error())
		}
	}

	transform, ok := e.def.Registry().Transform(rule.TransformID)
	if !ok {
		return nil, domain.NewInvalidEvent(instance.State, ev.Type)
	}

	nextCtx := instance.Context.Clone()
	if transform != nil {
		nextCtx = transform(nextCtx, ev)
	}

	next := &domain.Instance{
		CaseID:  instance.CaseID,
		State:   rule.Target,
		Context: nextCtx,
		Version: instance.Version + 1,
	}

	internal := rule.IsInternal(instance.State)
	actions := e.def.RuleActions(rule, nextCtx)
	if !internal {
		actions = append(actions, e.def.EntryActions(rule.Target, nextCtx)...)
	}

	return &Result{Instance: next, Actions: actions, Internal: internal}, nil
}
