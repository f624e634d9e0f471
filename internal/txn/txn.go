package txn

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
)

// Step is one write in a transaction. Compensate, when non-nil, undoes the
// step during rollback; it receives the step's result.
type Step struct {
	Operation    string
	TargetSystem patterns.System
	Run          func(ctx context.Context) (any, error)
	Compensate   func(ctx context.Context, result any) error
}

// completed is an executed step paired with its result.
type completed struct {
	step   Step
	result any
}

// Manager runs one transaction. Not safe for concurrent use; each workflow
// creates its own.
type Manager struct {
	logger    *logging.Logger
	completed []completed
}

// NewManager creates a transaction manager.
func NewManager(logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{logger: logger.Named("txn")}
}

// ExecuteStep runs a step. On success the step joins the completed list and
// its result is returned. On failure the whole transaction rolls back and a
// TransactionError reports the failing step and what was compensated.
func (m *Manager) ExecuteStep(ctx context.Context, step Step) (any, error) {
	result, err := step.Run(ctx)
	if err != nil {
		rolledBack, compErrs := m.Rollback(ctx)
		return nil, &errs.TransactionError{
			FailedStep:           step.Operation,
			Err:                  err,
			RolledBack:           rolledBack,
			CompensationFailures: compErrs,
		}
	}
	m.completed = append(m.completed, completed{step: step, result: result})
	return result, nil
}

// Rollback compensates every completed step in reverse order. Compensation
// failures are logged and collected, never propagated; one failed
// compensation does not stop the rest. The completed list is cleared.
func (m *Manager) Rollback(ctx context.Context) (rolledBack []string, failures []error) {
	for i := len(m.completed) - 1; i >= 0; i-- {
		c := m.completed[i]
		if c.step.Compensate == nil {
			continue
		}
		if err := c.step.Compensate(ctx, c.result); err != nil {
			m.logger.Error("compensation failed",
				zap.String("operation", c.step.Operation),
				zap.String("system", string(c.step.TargetSystem)),
				zap.Error(err),
			)
			failures = append(failures, err)
			continue
		}
		m.logger.Info("compensated step",
			zap.String("operation", c.step.Operation),
			zap.String("system", string(c.step.TargetSystem)),
		)
		rolledBack = append(rolledBack, c.step.Operation)
	}
	m.completed = nil
	return rolledBack, failures
}

// Completed returns the operations executed so far, in order.
func (m *Manager) Completed() []string {
	ops := make([]string, len(m.completed))
	for i, c := range m.completed {
		ops[i] = c.step.Operation
	}
	return ops
}
