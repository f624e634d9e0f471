// Package syncer keeps each task mirrored 1:1 between its primary system
// and the other system of record.
//
// The first sync of a task creates a mirror in the counterpart system with
// a back-reference to the primary task id and stores the mapping; every
// later sync updates the existing mirror instead of creating another. Syncs
// for the same task id serialize on a per-task lock, so concurrent calls
// cannot create duplicate mirrors. VerifySync re-fetches both sides and
// compares the fields the syncer owns.
package syncer
