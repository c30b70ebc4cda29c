package workflow

import (
	"time"

	"github.com/opencivic/sdcrs/pkg/domain"
)

// Rule is one declared edge of the workflow: in a given state, an event type
// leads to a target state, optionally gated by a guard and rewriting the
// context through a transform. Guards, transforms and actions are referenced
// by ID and resolved against the Registry, so the table itself is plain data
// that can be serialized, visualized and statically validated.
type Rule struct {
	Event       domain.EventType `json:"event" yaml:"event"`
	Target      domain.State     `json:"target" yaml:"target"`
	GuardID     string           `json:"guard,omitempty" yaml:"guard,omitempty"`
	TransformID string           `json:"transform,omitempty" yaml:"transform,omitempty"`
	// ActionIDs are transition-scoped actions, fired in addition to the
	// target state's entry actions.
	ActionIDs []string `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// IsInternal reports whether the rule re-enters its own state. Internal
// transitions mutate context and bump the version but do not re-fire the
// state's entry actions.
func (r Rule) IsInternal(from domain.State) bool {
	return r.Target == from
}

// StateNode declares everything the engine needs to know about one state:
// its outbound rules, ordered entry actions, and an optional SLA deadline.
type StateNode struct {
	State        domain.State  `json:"state" yaml:"state"`
	Rules        []Rule        `json:"rules,omitempty" yaml:"rules,omitempty"`
	EntryActions []string      `json:"entry_actions,omitempty" yaml:"entry_actions,omitempty"`
	SLA          time.Duration `json:"sla,omitempty" yaml:"sla,omitempty"`
}

// Definition is the static workflow table. It is built once at startup and
// never mutated afterwards; the engine holds it by reference.
type Definition struct {
	initial  domain.State
	nodes    map[domain.State]*StateNode
	order    []domain.State
	registry *Registry
}

// Initial returns the state new instances start in.
func (d *Definition) Initial() domain.State {
	return d.initial
}

// Node returns the declaration for a state.
func (d *Definition) Node(s domain.State) (*StateNode, bool) {
	n, ok := d.nodes[s]
	return n, ok
}

// Nodes returns all state declarations in lifecycle order.
func (d *Definition) Nodes() []*StateNode {
	out := make([]*StateNode, 0, len(d.order))
	for _, s := range d.order {
		out = append(out, d.nodes[s])
	}
	return out
}

// Lookup finds the rule for (state, event). The second return is false when
// the event is not declared for the state.
func (d *Definition) Lookup(s domain.State, t domain.EventType) (Rule, bool) {
	node, ok := d.nodes[s]
	if !ok {
		return Rule{}, false
	}
	for _, r := range node.Rules {
		if r.Event == t {
			return r, true
		}
	}
	return Rule{}, false
}

// SLA returns the deadline declared for a state, if any.
func (d *Definition) SLA(s domain.State) (time.Duration, bool) {
	node, ok := d.nodes[s]
	if !ok || node.SLA <= 0 {
		return 0, false
	}
	return node.SLA, true
}

// Registry exposes the guard/transform/action registry the definition was
// built against.
func (d *Definition) Registry() *Registry {
	return d.registry
}

// EntryActions materializes the ordered entry actions for a state against
// the given (already transformed) context.
func (d *Definition) EntryActions(s domain.State, ctx domain.CaseContext) []domain.ActionRequest {
	node, ok := d.nodes[s]
	if !ok {
		return nil
	}
	return d.registry.BuildActions(node.EntryActions, ctx)
}

// RuleActions materializes the transition-scoped actions of a rule.
func (d *Definition) RuleActions(r Rule, ctx domain.CaseContext) []domain.ActionRequest {
	return d.registry.BuildActions(r.ActionIDs, ctx)
}
