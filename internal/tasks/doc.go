// Package tasks tracks task lifecycle state.
//
// Status State Machine:
//
// A single transition table defines every legal move. PENDING tasks start
// work or get cancelled; IN_PROGRESS tasks complete, fail, or park on
// NEEDS_APPROVAL; approval resolves back to work, straight to done, or to
// REJECTED. COMPLETED, FAILED, REJECTED, and CANCELLED are terminal.
//
// Tracker:
//
// The in-memory tracker records one StatusRecord per task with an
// append-only history. Transitions for the same task id serialize on a
// per-task lock and validate against the table before any side effect runs,
// so racing updates resolve to exactly one winner.
//
// Manager:
//
// The lifecycle manager validates create requests against business rules
// (approval for high priority, description length) and dispatches creates
// and updates to the owning backend system through the registry.
package tasks
