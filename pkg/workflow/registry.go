package workflow

import (
	"fmt"

	"github.com/opencivic/sdcrs/pkg/domain"
)

// GuardFunc decides whether a declared transition may fire. It must be pure:
// no I/O, no mutation of the context. A nil return accepts the event; a
// non-nil return rejects it with the returned reason.
type GuardFunc func(ctx domain.CaseContext, ev domain.Event) error

// TransformFunc produces the next context for a transition. It must be pure
// and deterministic: timestamps come from ev.At, never from the clock.
type TransformFunc func(ctx domain.CaseContext, ev domain.Event) domain.CaseContext

// ActionBuilder materializes a side-effect request from the post-transition
// context. Builders returning a zero-Type request are skipped, which lets
// conditional actions (payout notification only when eligible) live in the
// table instead of the dispatcher.
type ActionBuilder func(ctx domain.CaseContext) domain.ActionRequest

// Registry resolves the IDs referenced by the workflow table to functions.
// It is append-only: entries are registered during definition construction
// and never replaced, so a duplicate ID is a programming error.
type Registry struct {
	guards     map[string]GuardFunc
	transforms map[string]TransformFunc
	actions    map[string]ActionBuilder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		guards:     make(map[string]GuardFunc),
		transforms: make(map[string]TransformFunc),
		actions:    make(map[string]ActionBuilder),
	}
}

// RegisterGuard adds a named guard.
func (r *Registry) RegisterGuard(id string, fn GuardFunc) {
	if _, dup := r.guards[id]; dup {
		panic(fmt.Sprintf("workflow: duplicate guard %q", id))
	}
	r.guards[id] = fn
}

// RegisterTransform adds a named context transform.
func (r *Registry) RegisterTransform(id string, fn TransformFunc) {
	if _, dup := r.transforms[id]; dup {
		panic(fmt.Sprintf("workflow: duplicate transform %q", id))
	}
	r.transforms[id] = fn
}

// RegisterAction adds a named action builder.
func (r *Registry) RegisterAction(id string, fn ActionBuilder) {
	if _, dup := r.actions[id]; dup {
		panic(fmt.Sprintf("workflow: duplicate action %q", id))
	}
	r.actions[id] = fn
}

// Guard resolves a guard ID. Empty IDs resolve to no guard.
func (r *Registry) Guard(id string) (GuardFunc, bool) {
	if id == "" {
		return nil, true
	}
	fn, ok := r.guards[id]
	return fn, ok
}

// Transform resolves a transform ID. Empty IDs resolve to the identity.
func (r *Registry) Transform(id string) (TransformFunc, bool) {
	if id == "" {
		return nil, true
	}
	fn, ok := r.transforms[id]
	return fn, ok
}

// HasAction reports whether an action ID is registered.
func (r *Registry) HasAction(id string) bool {
	_, ok := r.actions[id]
	return ok
}

// BuildActions materializes the given action IDs against a context,
// preserving order and dropping conditional actions that built empty.
func (r *Registry) BuildActions(ids []string, ctx domain.CaseContext) []domain.ActionRequest {
	if len(ids) == 0 {
		return nil
	}
	out := make([]domain.ActionRequest, 0, len(ids))
	for _, id := range ids {
		builder, ok := r.actions[id]
		if !ok {
			continue
		}
		req := builder(ctx)
		if req.Type == "" {
			continue
		}
		if req.CaseID == "" {
			req.CaseID = ctx.CaseID
		}
		out = append(out, req)
	}
	return out
}
