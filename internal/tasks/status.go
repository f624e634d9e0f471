package tasks

import (
	"github.com/fyrsmithlabs/commitd/internal/errs"
)

// Status is a task lifecycle state.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusNeedsApproval Status = "NEEDS_APPROVAL"
	StatusCompleted     Status = "COMPLETED"
	StatusFailed        Status = "FAILED"
	StatusRejected      Status = "REJECTED"
	StatusCancelled     Status = "CANCELLED"
)

// transitions is the single source of truth for legal status changes.
// Absent keys are terminal states.
var transitions = map[Status][]Status{
	StatusPending:       {StatusInProgress, StatusCancelled},
	StatusInProgress:    {StatusCompleted, StatusFailed, StatusNeedsApproval, StatusCancelled},
	StatusNeedsApproval: {StatusInProgress, StatusCompleted, StatusRejected, StatusCancelled},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusNeedsApproval,
		StatusCompleted, StatusFailed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// ValidateTransition checks from→to against the transition table. Every
// status change in the package goes through here.
func ValidateTransition(from, to Status) error {
	if !to.Valid() {
		return errs.NewFieldValidation("status", "unknown status %q", to)
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return errs.NewFieldValidation("status", "illegal transition %s -> %s", from, to)
}
