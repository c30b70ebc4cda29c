package workflow

import (
	"fmt"

	"github.com/opencivic/sdcrs/pkg/domain"
)

// terminalExceptions are the only events a terminal state may declare: the
// late settlement acknowledgment and the closing feedback rating, both on
// resolved.
var terminalExceptions = map[domain.State]map[domain.EventType]bool{
	domain.StateResolved: {
		domain.EventPayoutCompleted: true,
		domain.EventRate:            true,
	},
}

// Validate statically checks the definition without executing any rule:
// every state is a member of the declared set, every rule targets a declared
// state, every referenced guard/transform/action ID resolves, every state is
// reachable from the initial state, and terminal states declare nothing
// beyond the documented exceptions.
func (d *Definition) Validate() error {
	if _, ok := d.nodes[d.initial]; !ok {
		return fmt.Errorf("initial state %s is not declared", d.initial)
	}

	for _, node := range d.Nodes() {
		if !node.State.IsValid() {
			return fmt.Errorf("state %s is not in the declared state set", node.State)
		}

		for _, id := range node.EntryActions {
			if !d.registry.HasAction(id) {
				return fmt.Errorf("state %s: entry action %q is not registered", node.State, id)
			}
		}

		for _, rule := range node.Rules {
			if _, ok := d.nodes[rule.Target]; !ok {
				return fmt.Errorf("state %s: event %s targets undeclared state %s", node.State, rule.Event, rule.Target)
			}
			if _, ok := d.registry.Guard(rule.GuardID); !ok {
				return fmt.Errorf("state %s: event %s references unknown guard %q", node.State, rule.Event, rule.GuardID)
			}
			if _, ok := d.registry.Transform(rule.TransformID); !ok {
				return fmt.Errorf("state %s: event %s references unknown transform %q", node.State, rule.Event, rule.TransformID)
			}
			for _, id := range rule.ActionIDs {
				if !d.registry.HasAction(id) {
					return fmt.Errorf("state %s: event %s references unknown action %q", node.State, rule.Event, id)
				}
			}
			if node.State.IsTerminal() && !terminalExceptions[node.State][rule.Event] {
				return fmt.Errorf("terminal state %s declares undocumented event %s", node.State, rule.Event)
			}
		}
	}

	return d.checkReachability()
}

func (d *Definition) checkReachability() error {
	reached := map[domain.State]bool{d.initial: true}
	frontier := []domain.State{d.initial}
	for len(frontier) > 0 {
		s := frontier[0]
		frontier = frontier[1:]
		for _, rule := range d.nodes[s].Rules {
			if !reached[rule.Target] {
				reached[rule.Target] = true
				frontier = append(frontier, rule.Target)
			}
		}
	}
	for state := range d.nodes {
		if !reached[state] {
			return fmt.Errorf("state %s is unreachable from %s", state, d.initial)
		}
	}
	return nil
}
