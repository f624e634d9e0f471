package systems

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
)

// MemoryClient is an in-process Client used in tests and local development.
// Failures can be injected per operation to exercise retry and rollback
// paths.
type MemoryClient struct {
	system patterns.System

	mu    sync.Mutex
	tasks map[string]*Task

	// Queued injected failures, consumed one per call before the
	// operation runs.
	failCreate []error
	failUpdate []error
	failGet    []error
	failDelete []error

	creates int
	deletes int
}

// NewMemoryClient creates an empty in-memory backend for a system.
func NewMemoryClient(system patterns.System) *MemoryClient {
	return &MemoryClient{
		system: system,
		tasks:  make(map[string]*Task),
	}
}

var _ Client = (*MemoryClient)(nil)

func (m *MemoryClient) CreateTask(_ context.Context, in TaskInput) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := pop(&m.failCreate); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = "open"
	}
	t := &Task{
		ID:          uuid.NewString(),
		Status:      status,
		Description: in.Description,
		Due:         in.Due,
		Category:    in.Category,
		Priority:    in.Priority,
		SourceRef:   in.SourceRef,
	}
	m.tasks[t.ID] = t
	m.creates++
	cp := *t
	return &cp, nil
}

func (m *MemoryClient) UpdateTask(_ context.Context, id string, fields Fields) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := pop(&m.failUpdate); err != nil {
		return nil, err
	}
	t, ok := m.tasks[id]
	if !ok {
		return nil, m.notFound(id)
	}
	for k, v := range fields {
		switch k {
		case "status":
			t.Status = fmt.Sprint(v)
		case "description":
			t.Description = fmt.Sprint(v)
		case "due":
			if due, ok := v.(time.Time); ok {
				t.Due = due
			}
		}
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryClient) GetTask(_ context.Context, id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := pop(&m.failGet); err != nil {
		return nil, err
	}
	t, ok := m.tasks[id]
	if !ok {
		return nil, m.notFound(id)
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryClient) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := pop(&m.failDelete); err != nil {
		return err
	}
	if _, ok := m.tasks[id]; !ok {
		return m.notFound(id)
	}
	delete(m.tasks, id)
	m.deletes++
	return nil
}

// FailNextCreate queues an error for the next CreateTask call.
func (m *MemoryClient) FailNextCreate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCreate = append(m.failCreate, err)
}

// FailNextUpdate queues an error for the next UpdateTask call.
func (m *MemoryClient) FailNextUpdate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUpdate = append(m.failUpdate, err)
}

// FailNextGet queues an error for the next GetTask call.
func (m *MemoryClient) FailNextGet(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet = append(m.failGet, err)
}

// FailNextDelete queues an error for the next DeleteTask call.
func (m *MemoryClient) FailNextDelete(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDelete = append(m.failDelete, err)
}

// TaskCount returns the number of live tasks.
func (m *MemoryClient) TaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Creates returns the total number of successful creations.
func (m *MemoryClient) Creates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

// Deletes returns the total number of successful deletions.
func (m *MemoryClient) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}

func (m *MemoryClient) notFound(id string) error {
	return &errs.APIError{
		System:     string(m.system),
		StatusCode: 404,
		Code:       "not_found",
		Message:    "task " + id + " not found",
	}
}

func pop(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}

// MemoryCallSource serves canned calls in tests.
type MemoryCallSource struct {
	mu    sync.Mutex
	calls map[string]*Call
}

// NewMemoryCallSource creates an empty call source.
func NewMemoryCallSource() *MemoryCallSource {
	return &MemoryCallSource{calls: make(map[string]*Call)}
}

var _ CallSource = (*MemoryCallSource)(nil)

// AddCall stores a call record.
func (m *MemoryCallSource) AddCall(c *Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[c.ID] = c
}

func (m *MemoryCallSource) GetCall(_ context.Context, callID string) (*Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	if !ok {
		return nil, &errs.APIError{
			System:     string(patterns.SystemCRM),
			StatusCode: 404,
			Code:       "not_found",
			Message:    "call " + callID + " not found",
		}
	}
	cp := *c
	return &cp, nil
}
