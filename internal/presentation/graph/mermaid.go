// Package graph renders the workflow definition as a Mermaid state diagram.
package graph

import (
	"fmt"
	"strings"

	"github.com/opencivic/sdcrs/pkg/domain"
	"github.com/opencivic/sdcrs/pkg/workflow"
)

// Overlay contains dynamic case data to visualize on the graph.
type Overlay struct {
	VisitedStates []domain.State
	CurrentState  domain.State
}

// GenerateMermaid produces a Mermaid flowchart from the workflow definition.
// Semantic styling:
// - Initial state: ((Circle))
// - Terminal states: [[Subroutine]]
// - States with an SLA deadline annotated with a clock icon
// Guarded edges carry the guard ID as the edge label; self-transitions are
// drawn dotted to set internal events apart from real moves.
func GenerateMermaid(def *workflow.Definition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range def.Nodes() {
		safeID := sanitizeMermaidID(node.State)

		opener, closer := "[", "]"
		switch {
		case node.State == def.Initial():
			opener, closer = "((", "))"
		case node.State.IsTerminal():
			opener, closer = "[[", "]]"
		}

		label := fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, node.State, closer)
		if sla, ok := def.SLA(node.State); ok {
			label = fmt.Sprintf("    %s%s\"%s <br/> ⏱️ %s\"%s\n", safeID, opener, node.State, sla, closer)
		}
		sb.WriteString(label)

		for _, rule := range node.Rules {
			safeTo := sanitizeMermaidID(rule.Target)

			edgeLabel := string(rule.Event)
			if rule.GuardID != "" {
				edgeLabel = fmt.Sprintf("%s [%s]", rule.Event, rule.GuardID)
			}

			arrow := fmt.Sprintf("-- \"%s\" -->", edgeLabel)
			if rule.Target == node.State {
				arrow = fmt.Sprintf("-. \"%s\" .->", edgeLabel)
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, safeTo))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for high contrast regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, state := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(state)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentState != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentState)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(state domain.State) string {
	s := strings.ReplaceAll(string(state), ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}
