package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
	"github.com/fyrsmithlabs/commitd/internal/systems"
)

// Rules holds the lifecycle business rules.
type Rules struct {
	// HighPriorityRequiresApproval rejects high-priority creations that
	// lack an explicit approval flag.
	HighPriorityRequiresApproval bool
	// MaxDescriptionLength rejects over-long descriptions.
	MaxDescriptionLength int
}

// DefaultRules returns the standard lifecycle rules.
func DefaultRules() Rules {
	return Rules{
		HighPriorityRequiresApproval: true,
		MaxDescriptionLength:         1000,
	}
}

// CreateRequest is the input for task creation.
type CreateRequest struct {
	Description string
	Due         time.Time
	Category    string
	System      patterns.System
	Priority    patterns.Priority
	// ApprovalGranted must be set for high-priority tasks when the
	// approval rule is active.
	ApprovalGranted bool
	// SourceRef links a mirror task back to its primary.
	SourceRef string
}

// Update is a partial task update. A zero Status means no status change.
type Update struct {
	Status      Status
	Description string
	Notes       string
}

// Manager validates lifecycle operations, dispatches them to the owning
// backend system, and keeps the tracker current.
type Manager struct {
	registry *systems.Registry
	tracker  *Tracker
	rules    Rules
	logger   *logging.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(registry *systems.Registry, tracker *Tracker, rules Rules, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	if rules.MaxDescriptionLength <= 0 {
		rules.MaxDescriptionLength = 1000
	}
	return &Manager{
		registry: registry,
		tracker:  tracker,
		rules:    rules,
		logger:   logger.Named("tasks"),
	}
}

// Tracker exposes the underlying status tracker.
func (m *Manager) Tracker() *Tracker { return m.tracker }

// CreateTask validates the request, creates the task in its owning system,
// and records it PENDING. The returned record carries the backend-assigned
// task id.
func (m *Manager) CreateTask(ctx context.Context, req CreateRequest) (*StatusRecord, error) {
	if err := m.validateCreate(req); err != nil {
		return nil, err
	}

	client, err := m.registry.Get(req.System)
	if err != nil {
		return nil, &errs.TaskError{Message: "resolve owning system", Err: err}
	}

	created, err := client.CreateTask(ctx, systems.TaskInput{
		Description: req.Description,
		Due:         req.Due,
		Category:    req.Category,
		Priority:    string(req.Priority),
		Status:      string(StatusPending),
		SourceRef:   req.SourceRef,
	})
	if err != nil {
		return nil, &errs.TaskError{Message: "create in " + string(req.System), Err: err}
	}

	rec, err := m.tracker.Create(created.ID, string(req.System))
	if err != nil {
		return nil, err
	}
	m.logger.Info("task created",
		zap.String("task_id", created.ID),
		zap.String("system", string(req.System)),
		zap.String("category", req.Category),
		zap.String("priority", string(req.Priority)),
	)
	return rec, nil
}

func (m *Manager) validateCreate(req CreateRequest) error {
	switch {
	case req.Description == "":
		return errs.NewFieldValidation("description", "description is required")
	case req.Due.IsZero():
		return errs.NewFieldValidation("due", "due date is required")
	case req.Category == "":
		return errs.NewFieldValidation("category", "category is required")
	case req.System == "":
		return errs.NewFieldValidation("system", "target system is required")
	}
	if len(req.Description) > m.rules.MaxDescriptionLength {
		return errs.NewFieldValidation("description",
			"description exceeds %d characters", m.rules.MaxDescriptionLength)
	}
	if m.rules.HighPriorityRequiresApproval &&
		req.Priority == patterns.PriorityHigh && !req.ApprovalGranted {
		return errs.NewFieldValidation("approval",
			"high-priority task requires explicit approval")
	}
	return nil
}

// UpdateTask applies a validated update: the status transition (when
// present) is checked against the state machine, the owning system is
// updated, and a history entry is appended. The backend write happens
// inside the task's exclusive section so racing updates serialize.
func (m *Manager) UpdateTask(ctx context.Context, taskID string, update Update) (*StatusRecord, error) {
	rec, err := m.tracker.Get(taskID)
	if err != nil {
		return nil, err
	}

	client, err := m.registry.Get(patterns.System(rec.System))
	if err != nil {
		return nil, &errs.TaskError{TaskID: taskID, Message: "resolve owning system", Err: err}
	}

	fields := systems.Fields{}
	if update.Status != "" {
		fields["status"] = string(update.Status)
	}
	if update.Description != "" {
		fields["description"] = update.Description
	}
	if len(fields) == 0 && update.Notes == "" {
		return nil, errs.NewValidation("update has no fields")
	}

	dispatch := func() error {
		if len(fields) == 0 {
			return nil
		}
		if _, err := client.UpdateTask(ctx, taskID, fields); err != nil {
			return &errs.TaskUpdateError{TaskID: taskID, System: rec.System, Err: err}
		}
		return nil
	}

	if update.Status != "" {
		updated, err := m.tracker.Transition(taskID, update.Status, update.Notes, dispatch)
		if err != nil {
			return nil, err
		}
		m.logger.Info("task status changed",
			zap.String("task_id", taskID),
			zap.String("from", string(rec.Status)),
			zap.String("to", string(update.Status)),
		)
		return updated, nil
	}

	return m.tracker.Annotate(taskID, update.Notes, dispatch)
}

// CancelTask transitions a task to CANCELLED carrying the reason as notes.
func (m *Manager) CancelTask(ctx context.Context, taskID, reason string) (*StatusRecord, error) {
	return m.UpdateTask(ctx, taskID, Update{Status: StatusCancelled, Notes: reason})
}
