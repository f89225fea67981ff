package jobs

import (
	"context"
	"time"

	"github.com/AliNMackie/cofound-platform/internal/domain/auth"
)

// Repository port for persisting jobs. Every method is keyed by the owning
// tenant; implementations must never return or mutate a row whose tenant
// differs from the argument.
type Repository interface {
	Insert(ctx context.Context, j *Job) error
	Get(ctx context.Context, tenant auth.TenantScope, id JobID) (*Job, error)

	// Transition performs a conditional write: the update applies only when
	// the persisted state still equals from. A lost race returns ErrConflict,
	// an absent or foreign-tenant job returns ErrNotFound.
	Transition(ctx context.Context, tenant auth.TenantScope, id JobID, from, to State, p Patch) (*Job, error)

	// IncrementAttempts is a conditional counter bump keyed by the expected
	// current value, serializing concurrent deliveries of the same job.
	IncrementAttempts(ctx context.Context, tenant auth.TenantScope, id JobID, expected int) (int, error)

	AppendEvent(ctx context.Context, e *Event) error
	EventsByJob(ctx context.Context, tenant auth.TenantScope, id JobID, limit int) ([]*Event, error)
}

// Event is one audit entry in a job's history.
type Event struct {
	ID        int64            `json:"id"`
	Tenant    auth.TenantScope `json:"tenant_id"`
	JobID     JobID            `json:"job_id"`
	Kind      string           `json:"kind"` // verdict | attempt_failed | finalized
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
}

// Ref is the minimal reference handed to the dispatch queue. Content never
// travels through the queue, only the pointer back to the job.
type Ref struct {
	JobID  JobID            `json:"job_id"`
	Tenant auth.TenantScope `json:"tenant_id"`
	Digest string           `json:"digest"`
}

// Receipt acknowledges a successful enqueue.
type Receipt struct {
	TaskName   string    `json:"task_name"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Dispatcher port for the external at-least-once delivery queue.
type Dispatcher interface {
	Enqueue(ctx context.Context, ref Ref) (Receipt, error)
}
