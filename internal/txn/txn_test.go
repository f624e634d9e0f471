package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
)

func TestExecuteStep_Success(t *testing.T) {
	m := NewManager(logging.Nop())

	result, err := m.ExecuteStep(context.Background(), Step{
		Operation: "create primary",
		Run:       func(context.Context) (any, error) { return "task-1", nil },
	})
	require.NoError(t, err)
	require.Equal(t, "task-1", result)
	require.Equal(t, []string{"create primary"}, m.Completed())
}

func TestExecuteStep_FailureRollsBackInReverseOrder(t *testing.T) {
	m := NewManager(logging.Nop())
	ctx := context.Background()

	var compensated []string
	for _, op := range []string{"step-1", "step-2"} {
		op := op
		_, err := m.ExecuteStep(ctx, Step{
			Operation: op,
			Run:       func(context.Context) (any, error) { return op + "-result", nil },
			Compensate: func(_ context.Context, result any) error {
				require.Equal(t, op+"-result", result)
				compensated = append(compensated, op)
				return nil
			},
		})
		require.NoError(t, err)
	}

	boom := errors.New("secondary create failed")
	_, err := m.ExecuteStep(ctx, Step{
		Operation: "step-3",
		Run:       func(context.Context) (any, error) { return nil, boom },
	})

	var txErr *errs.TransactionError
	require.ErrorAs(t, err, &txErr)
	require.Equal(t, "step-3", txErr.FailedStep)
	require.ErrorIs(t, txErr, boom)
	require.Equal(t, []string{"step-2", "step-1"}, txErr.RolledBack)
	require.Equal(t, []string{"step-2", "step-1"}, compensated)
	require.Empty(t, txErr.CompensationFailures)
	require.Empty(t, m.Completed())
}

func TestRollback_CollectsCompensationFailures(t *testing.T) {
	m := NewManager(logging.Nop())
	ctx := context.Background()

	compBoom := errors.New("delete rejected")
	var secondCompensated bool

	_, err := m.ExecuteStep(ctx, Step{
		Operation:  "step-1",
		Run:        func(context.Context) (any, error) { return nil, nil },
		Compensate: func(context.Context, any) error { secondCompensated = true; return nil },
	})
	require.NoError(t, err)
	_, err = m.ExecuteStep(ctx, Step{
		Operation:  "step-2",
		Run:        func(context.Context) (any, error) { return nil, nil },
		Compensate: func(context.Context, any) error { return compBoom },
	})
	require.NoError(t, err)

	_, err = m.ExecuteStep(ctx, Step{
		Operation: "step-3",
		Run:       func(context.Context) (any, error) { return nil, errors.New("boom") },
	})

	var txErr *errs.TransactionError
	require.ErrorAs(t, err, &txErr)
	// step-2's compensation failed but step-1's still ran.
	require.Equal(t, []string{"step-1"}, txErr.RolledBack)
	require.Len(t, txErr.CompensationFailures, 1)
	require.ErrorIs(t, txErr.CompensationFailures[0], compBoom)
	require.True(t, secondCompensated)
}

func TestExecuteStep_StepWithoutCompensationSkippedOnRollback(t *testing.T) {
	m := NewManager(logging.Nop())
	ctx := context.Background()

	_, err := m.ExecuteStep(ctx, Step{
		Operation:    "record metric",
		TargetSystem: patterns.SystemCRM,
		Run:          func(context.Context) (any, error) { return nil, nil },
	})
	require.NoError(t, err)

	_, err = m.ExecuteStep(ctx, Step{
		Operation: "step-2",
		Run:       func(context.Context) (any, error) { return nil, errors.New("boom") },
	})

	var txErr *errs.TransactionError
	require.ErrorAs(t, err, &txErr)
	require.Empty(t, txErr.RolledBack)
}
