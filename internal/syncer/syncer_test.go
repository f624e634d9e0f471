package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
	"github.com/fyrsmithlabs/commitd/internal/systems"
)

func newTestSyncer(t *testing.T) (*Synchronizer, *systems.MemoryClient, *systems.MemoryClient) {
	t.Helper()
	crm := systems.NewMemoryClient(patterns.SystemCRM)
	policy := systems.NewMemoryClient(patterns.SystemPolicy)
	reg := systems.NewRegistry()
	reg.Register(patterns.SystemCRM, crm)
	reg.Register(patterns.SystemPolicy, policy)
	return New(reg, logging.Nop()), crm, policy
}

func createPrimary(t *testing.T, client *systems.MemoryClient) *systems.Task {
	t.Helper()
	task, err := client.CreateTask(context.Background(), systems.TaskInput{
		Description: "send policy documents",
		Due:         time.Now().Add(24 * time.Hour),
		Category:    "document_sending",
		Priority:    "normal",
		Status:      "PENDING",
	})
	require.NoError(t, err)
	return task
}

func TestSyncTask_FirstCallCreatesMirror(t *testing.T) {
	s, crm, policy := newTestSyncer(t)
	ctx := context.Background()
	primary := createPrimary(t, policy)

	mapping, err := s.SyncTask(ctx, primary.ID, patterns.SystemPolicy)
	require.NoError(t, err)
	require.Equal(t, patterns.SystemPolicy, mapping.PrimarySystem)
	require.Equal(t, primary.ID, mapping.PrimaryTaskID)
	require.Equal(t, patterns.SystemCRM, mapping.SecondarySystem)
	require.NotEmpty(t, mapping.SecondaryTaskID)
	require.False(t, mapping.LastSynced.IsZero())

	mirror, err := crm.GetTask(ctx, mapping.SecondaryTaskID)
	require.NoError(t, err)
	require.Equal(t, primary.Description, mirror.Description)
	require.Equal(t, primary.Status, mirror.Status)
	require.Equal(t, primary.ID, mirror.SourceRef)
}

func TestSyncTask_SecondCallUpdatesNotDuplicates(t *testing.T) {
	s, crm, policy := newTestSyncer(t)
	ctx := context.Background()
	primary := createPrimary(t, policy)

	first, err := s.SyncTask(ctx, primary.ID, patterns.SystemPolicy)
	require.NoError(t, err)

	// Primary moves on; resync should propagate, not duplicate.
	_, err = policy.UpdateTask(ctx, primary.ID, systems.Fields{"status": "IN_PROGRESS"})
	require.NoError(t, err)

	second, err := s.SyncTask(ctx, primary.ID, patterns.SystemPolicy)
	require.NoError(t, err)
	require.Equal(t, first.SecondaryTaskID, second.SecondaryTaskID)
	require.Equal(t, 1, crm.Creates())
	require.Equal(t, 1, s.MappingCount())
	require.True(t, second.LastSynced.After(first.LastSynced) || second.LastSynced.Equal(first.LastSynced))

	mirror, err := crm.GetTask(ctx, second.SecondaryTaskID)
	require.NoError(t, err)
	require.Equal(t, "IN_PROGRESS", mirror.Status)
}

func TestSyncTask_ConcurrentSyncsCreateOneMirror(t *testing.T) {
	s, crm, policy := newTestSyncer(t)
	ctx := context.Background()
	primary := createPrimary(t, policy)

	const n = 16
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SyncTask(ctx, primary.ID, patterns.SystemPolicy)
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	require.Equal(t, 1, crm.Creates())
	require.Equal(t, 1, s.MappingCount())
}

func TestSyncTask_PrimaryFetchFailureWrapsSyncError(t *testing.T) {
	s, _, policy := newTestSyncer(t)
	policy.FailNextGet(&errs.APIError{System: "policy", StatusCode: 500, Message: "down"})

	_, err := s.SyncTask(context.Background(), "task-x", patterns.SystemPolicy)
	var syncErr *errs.SyncError
	require.ErrorAs(t, err, &syncErr)
	require.Equal(t, "task-x", syncErr.TaskID)
	require.Equal(t, string(patterns.SystemPolicy), syncErr.PrimarySystem)
	require.Equal(t, string(patterns.SystemCRM), syncErr.SecondarySystem)
}

func TestSyncTask_MirrorCreateFailureLeavesNoMapping(t *testing.T) {
	s, crm, policy := newTestSyncer(t)
	ctx := context.Background()
	primary := createPrimary(t, policy)

	crm.FailNextCreate(&errs.APIError{System: "crm", StatusCode: 503, Message: "unavailable"})
	_, err := s.SyncTask(ctx, primary.ID, patterns.SystemPolicy)
	var syncErr *errs.SyncError
	require.ErrorAs(t, err, &syncErr)
	require.Equal(t, 0, s.MappingCount())

	// A later sync succeeds and creates exactly one mirror.
	_, err = s.SyncTask(ctx, primary.ID, patterns.SystemPolicy)
	require.NoError(t, err)
	require.Equal(t, 1, crm.Creates())
}

func TestVerifySync(t *testing.T) {
	s, crm, policy := newTestSyncer(t)
	ctx := context.Background()
	primary := createPrimary(t, policy)

	// No mapping yet.
	ok, err := s.VerifySync(ctx, primary.ID)
	require.NoError(t, err)
	require.False(t, ok)

	mapping, err := s.SyncTask(ctx, primary.ID, patterns.SystemPolicy)
	require.NoError(t, err)

	ok, err = s.VerifySync(ctx, primary.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// Drift introduced after sync is caught.
	_, err = crm.UpdateTask(ctx, mapping.SecondaryTaskID, systems.Fields{"status": "COMPLETED"})
	require.NoError(t, err)
	ok, err = s.VerifySync(ctx, primary.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifySync_FetchFailure(t *testing.T) {
	s, _, policy := newTestSyncer(t)
	ctx := context.Background()
	primary := createPrimary(t, policy)

	_, err := s.SyncTask(ctx, primary.ID, patterns.SystemPolicy)
	require.NoError(t, err)

	policy.FailNextGet(&errs.APIError{System: "policy", StatusCode: 500, Message: "down"})
	_, err = s.VerifySync(ctx, primary.ID)
	var syncErr *errs.SyncError
	require.ErrorAs(t, err, &syncErr)
}
