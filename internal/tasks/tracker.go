package tasks

import (
	"sync"
	"time"

	"github.com/fyrsmithlabs/commitd/internal/errs"
)

// HistoryEntry is one recorded status change.
type HistoryEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Notes     string    `json:"notes,omitempty"`
}

// StatusRecord is a task's current status plus its ordered history. Records
// are never deleted; terminal tasks stay as an audit trail.
type StatusRecord struct {
	TaskID      string         `json:"task_id"`
	System      string         `json:"system"`
	Status      Status         `json:"status"`
	History     []HistoryEntry `json:"history"`
	CreatedAt   time.Time      `json:"created_at"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Tracker holds every task's status record. Workflows run concurrently, so
// writes to one task id serialize on a per-id lock: of N racing updates for
// the same transition exactly one wins and the rest fail validation.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*StatusRecord
	locks   map[string]*sync.Mutex
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[string]*StatusRecord),
		locks:   make(map[string]*sync.Mutex),
	}
}

// taskLock returns the exclusive lock for one task id, creating it on first
// use. Locks are never removed; they follow the never-delete audit rule.
func (t *Tracker) taskLock(taskID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[taskID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[taskID] = l
	}
	return l
}

// Create records a new task at PENDING with a single history entry.
func (t *Tracker) Create(taskID, system string) (*StatusRecord, error) {
	lock := t.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.records[taskID]; exists {
		return nil, errs.NewFieldValidation("task_id", "task %s already tracked", taskID)
	}

	now := time.Now()
	rec := &StatusRecord{
		TaskID: taskID,
		System: system,
		Status: StatusPending,
		History: []HistoryEntry{
			{Status: StatusPending, Timestamp: now},
		},
		CreatedAt:   now,
		LastUpdated: now,
	}
	t.records[taskID] = rec
	return copyRecord(rec), nil
}

// Get returns a snapshot of a task's record.
func (t *Tracker) Get(taskID string) (*StatusRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[taskID]
	if !ok {
		return nil, &errs.TaskNotFoundError{TaskID: taskID}
	}
	return copyRecord(rec), nil
}

// Transition atomically validates and applies a status change, appending a
// history entry. fn, when non-nil, runs inside the task's exclusive section
// after validation but before the record mutates; an fn error aborts the
// transition.
func (t *Tracker) Transition(taskID string, to Status, notes string, fn func() error) (*StatusRecord, error) {
	lock := t.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	t.mu.RLock()
	rec, ok := t.records[taskID]
	t.mu.RUnlock()
	if !ok {
		return nil, &errs.TaskNotFoundError{TaskID: taskID}
	}

	if err := ValidateTransition(rec.Status, to); err != nil {
		return nil, err
	}
	if fn != nil {
		if err := fn(); err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	rec.Status = to
	rec.LastUpdated = now
	rec.History = append(rec.History, HistoryEntry{Status: to, Timestamp: now, Notes: notes})
	return copyRecord(rec), nil
}

// Annotate appends a history entry at the current status without a
// transition, for updates that touch only non-status fields. fn follows the
// same contract as in Transition.
func (t *Tracker) Annotate(taskID, notes string, fn func() error) (*StatusRecord, error) {
	lock := t.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	t.mu.RLock()
	rec, ok := t.records[taskID]
	t.mu.RUnlock()
	if !ok {
		return nil, &errs.TaskNotFoundError{TaskID: taskID}
	}

	if fn != nil {
		if err := fn(); err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	rec.LastUpdated = now
	rec.History = append(rec.History, HistoryEntry{Status: rec.Status, Timestamp: now, Notes: notes})
	return copyRecord(rec), nil
}

// Len returns the number of tracked tasks.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

func copyRecord(rec *StatusRecord) *StatusRecord {
	cp := *rec
	cp.History = make([]HistoryEntry, len(rec.History))
	copy(cp.History, rec.History)
	return &cp
}
