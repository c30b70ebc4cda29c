// Package domain holds the core value types of the case workflow:
// states, events, the per-case context, the versioned instance snapshot,
// and the rejection taxonomy.
//
// Everything here is pure data. Transition logic lives in pkg/engine,
// the declarative state table in pkg/workflow, and all I/O behind the
// interfaces in pkg/ports.
package domain
