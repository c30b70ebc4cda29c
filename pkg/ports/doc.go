// Package ports defines the boundary interfaces of the workflow engine.
//
// The engine core (pkg/engine, pkg/workflow) is pure. Everything that
// touches the outside world (persistence, locking, notifications, the
// payment gateway, the monthly-cap ledger) is reached through one of
// these interfaces and implemented under internal/.
package ports
