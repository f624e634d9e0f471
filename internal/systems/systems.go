package systems

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/commitd/internal/patterns"
)

// Task is a backend-owned task record. The owning system assigns the ID.
type Task struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Due         time.Time `json:"due"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	// SourceRef carries the primary task id when this record is a mirror.
	SourceRef string `json:"source_ref,omitempty"`
}

// TaskInput is the payload for task creation.
type TaskInput struct {
	Description string    `json:"description"`
	Due         time.Time `json:"due"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status,omitempty"`
	SourceRef   string    `json:"source_ref,omitempty"`
}

// Fields is a partial update. Known keys: status, description, due, notes.
type Fields map[string]any

// Client is the operation set every backend system exposes. DeleteTask
// exists for compensating rollback of a failed dual-write.
type Client interface {
	CreateTask(ctx context.Context, in TaskInput) (*Task, error)
	UpdateTask(ctx context.Context, id string, fields Fields) (*Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Call is a recorded call fetched from the call source.
type Call struct {
	ID         string        `json:"id"`
	LeadID     string        `json:"lead_id"`
	Transcript string        `json:"transcript"`
	Duration   time.Duration `json:"duration"`
	Direction  string        `json:"direction"`
}

// CallSource fetches call records and transcripts.
type CallSource interface {
	GetCall(ctx context.Context, callID string) (*Call, error)
}

// Counterpart returns the other system of the pair.
func Counterpart(s patterns.System) patterns.System {
	if s == patterns.SystemCRM {
		return patterns.SystemPolicy
	}
	return patterns.SystemCRM
}

// Registry maps system names to clients.
type Registry struct {
	clients map[patterns.System]Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[patterns.System]Client)}
}

// Register binds a client to a system name, replacing any previous binding.
func (r *Registry) Register(system patterns.System, client Client) {
	r.clients[system] = client
}

// Get returns the client for a system.
func (r *Registry) Get(system patterns.System) (Client, error) {
	c, ok := r.clients[system]
	if !ok {
		return nil, fmt.Errorf("no client registered for system %q", system)
	}
	return c, nil
}
