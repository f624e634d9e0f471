// Package txn executes ordered multi-system write sequences with
// compensating rollback. A transaction is the list of steps already
// executed; when a step fails, compensations for the completed steps run in
// reverse order, best-effort. Compensation failures are collected in the
// returned TransactionError, never propagated.
package txn
