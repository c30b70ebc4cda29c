// Package sdcrs implements the stray-dog case reporting and resolution
// workflow: a deterministic state machine driving each sighting case from
// submission through validation, verification, field assignment and
// resolution, with a capped-retry payout sub-flow and SLA escalation timers.
//
// The Service type is the entry point. All mutations flow through
// Service.SubmitEvent, which serializes attempts per case, applies the
// transition table via the pure engine, commits under an optimistic version
// and only then releases side effects to the dispatcher.
package sdcrs
