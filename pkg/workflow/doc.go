// Package workflow declares the case lifecycle as data: a static table of
// (state, event) → rule, where guards, context transforms and entry actions
// are IDs resolved against a registry of pure functions.
//
// Keeping the table as data means it can be serialized, rendered as a graph
// and validated for reachability without executing any transition. The
// engine in pkg/engine is the only consumer that executes it.
package workflow
