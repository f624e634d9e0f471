package syncer

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
	"github.com/fyrsmithlabs/commitd/internal/systems"
)

const instrumentationName = "github.com/fyrsmithlabs/commitd/internal/syncer"

// Mapping links a task's id in its primary system to its mirror in the
// secondary system. At most one mapping exists per primary task id.
type Mapping struct {
	PrimarySystem   patterns.System `json:"primary_system"`
	PrimaryTaskID   string          `json:"primary_task_id"`
	SecondarySystem patterns.System `json:"secondary_system"`
	SecondaryTaskID string          `json:"secondary_task_id"`
	LastSynced      time.Time       `json:"last_synced"`
}

// Synchronizer propagates task state between the two backend systems.
// Mappings live in process memory; a restart loses them.
type Synchronizer struct {
	registry *systems.Registry
	logger   *logging.Logger

	mu       sync.Mutex
	mappings map[string]*Mapping
	locks    map[string]*sync.Mutex

	syncCounter metric.Int64Counter
	failCounter metric.Int64Counter
}

// New creates a synchronizer.
func New(registry *systems.Registry, logger *logging.Logger) *Synchronizer {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Synchronizer{
		registry: registry,
		logger:   logger.Named("syncer"),
		mappings: make(map[string]*Mapping),
		locks:    make(map[string]*sync.Mutex),
	}
	s.initMetrics()
	return s
}

func (s *Synchronizer) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error

	s.syncCounter, err = meter.Int64Counter(
		"commitd.syncer.syncs",
		metric.WithDescription("Completed sync operations labeled by primary system"),
		metric.WithUnit("{sync}"),
	)
	if err != nil {
		s.logger.Warn("failed to create sync counter", zap.Error(err))
	}

	s.failCounter, err = meter.Int64Counter(
		"commitd.syncer.failures",
		metric.WithDescription("Failed sync operations labeled by primary system"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		s.logger.Warn("failed to create failure counter", zap.Error(err))
	}
}

// taskLock serializes sync operations per primary task id, so concurrent
// syncs of one task cannot race the exists-check and create two mirrors.
func (s *Synchronizer) taskLock(taskID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[taskID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[taskID] = l
	}
	return l
}

// SyncTask mirrors a primary task into the other system. The first call
// creates the mirror with a back-reference to the primary id and stores the
// mapping; later calls push status and description to the existing mirror.
// Idempotent: one primary id never gets a second mirror.
func (s *Synchronizer) SyncTask(ctx context.Context, taskID string, primary patterns.System) (*Mapping, error) {
	lock := s.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	secondary := systems.Counterpart(primary)
	mapping, err := s.syncLocked(ctx, taskID, primary, secondary)
	if err != nil {
		s.recordFailure(ctx, primary)
		return nil, &errs.SyncError{
			TaskID:          taskID,
			PrimarySystem:   string(primary),
			SecondarySystem: string(secondary),
			Err:             err,
		}
	}
	s.recordSync(ctx, primary)
	return mapping, nil
}

func (s *Synchronizer) syncLocked(ctx context.Context, taskID string, primary, secondary patterns.System) (*Mapping, error) {
	primaryClient, err := s.registry.Get(primary)
	if err != nil {
		return nil, err
	}
	secondaryClient, err := s.registry.Get(secondary)
	if err != nil {
		return nil, err
	}

	task, err := primaryClient.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	existing := s.mappings[taskID]
	s.mu.Unlock()

	if existing != nil {
		_, err := secondaryClient.UpdateTask(ctx, existing.SecondaryTaskID, systems.Fields{
			"status":      task.Status,
			"description": task.Description,
		})
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		existing.LastSynced = time.Now()
		cp := *existing
		s.mu.Unlock()
		s.logger.Debug("mirror updated",
			zap.String("task_id", taskID),
			zap.String("mirror_id", cp.SecondaryTaskID),
		)
		return &cp, nil
	}

	mirror, err := secondaryClient.CreateTask(ctx, systems.TaskInput{
		Description: task.Description,
		Due:         task.Due,
		Category:    task.Category,
		Priority:    task.Priority,
		Status:      task.Status,
		SourceRef:   taskID,
	})
	if err != nil {
		return nil, err
	}

	mapping := &Mapping{
		PrimarySystem:   primary,
		PrimaryTaskID:   taskID,
		SecondarySystem: secondary,
		SecondaryTaskID: mirror.ID,
		LastSynced:      time.Now(),
	}
	s.mu.Lock()
	s.mappings[taskID] = mapping
	cp := *mapping
	s.mu.Unlock()

	s.logger.Info("mirror created",
		zap.String("task_id", taskID),
		zap.String("mirror_id", mirror.ID),
		zap.String("primary", string(primary)),
		zap.String("secondary", string(secondary)),
	)
	return &cp, nil
}

// VerifySync re-fetches both sides and compares status and description.
// Returns false when no mapping exists or any field diverges. Fetch failures
// surface as SyncError.
func (s *Synchronizer) VerifySync(ctx context.Context, taskID string) (bool, error) {
	s.mu.Lock()
	mapping := s.mappings[taskID]
	var cp Mapping
	if mapping != nil {
		cp = *mapping
	}
	s.mu.Unlock()
	if mapping == nil {
		return false, nil
	}

	wrap := func(err error) error {
		return &errs.SyncError{
			TaskID:          taskID,
			PrimarySystem:   string(cp.PrimarySystem),
			SecondarySystem: string(cp.SecondarySystem),
			Err:             err,
		}
	}

	primaryClient, err := s.registry.Get(cp.PrimarySystem)
	if err != nil {
		return false, wrap(err)
	}
	secondaryClient, err := s.registry.Get(cp.SecondarySystem)
	if err != nil {
		return false, wrap(err)
	}

	primary, err := primaryClient.GetTask(ctx, taskID)
	if err != nil {
		return false, wrap(err)
	}
	mirror, err := secondaryClient.GetTask(ctx, cp.SecondaryTaskID)
	if err != nil {
		return false, wrap(err)
	}

	return primary.Status == mirror.Status && primary.Description == mirror.Description, nil
}

// Mapping returns the stored mapping for a primary task id, if any.
func (s *Synchronizer) Mapping(taskID string) (*Mapping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mappings[taskID]
	if !ok {
		return nil, false
	}
	cp := *m
	return &cp, true
}

// MappingCount returns the number of stored mappings.
func (s *Synchronizer) MappingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mappings)
}

func (s *Synchronizer) recordSync(ctx context.Context, primary patterns.System) {
	if s.syncCounter == nil {
		return
	}
	s.syncCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("primary_system", string(primary)),
	))
}

func (s *Synchronizer) recordFailure(ctx context.Context, primary patterns.System) {
	if s.failCounter == nil {
		return
	}
	s.failCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("primary_system", string(primary)),
	))
}
