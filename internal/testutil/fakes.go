// Package testutil provides in-memory fakes for the domain ports. The fakes
// keep the store's conditional-write contract so concurrency behavior can be
// tested without a database.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AliNMackie/cofound-platform/internal/domain/analysis"
	"github.com/AliNMackie/cofound-platform/internal/domain/auth"
	"github.com/AliNMackie/cofound-platform/internal/domain/firewall"
	domain "github.com/AliNMackie/cofound-platform/internal/domain/jobs"
)

type jobKey struct {
	tenant auth.TenantScope
	id     domain.JobID
}

// MemRepo is an in-memory jobs.Repository. Transition and IncrementAttempts
// are compare-and-swap under one mutex, matching the SQL adapters'
// conditional UPDATEs.
type MemRepo struct {
	mu     sync.Mutex
	jobs   map[jobKey]*domain.Job
	events []*domain.Event
	nextID int64
}

func NewMemRepo() *MemRepo {
	return &MemRepo{jobs: make(map[jobKey]*domain.Job)}
}

func (r *MemRepo) Insert(_ context.Context, j *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.jobs[jobKey{j.Tenant, j.ID}] = &cp
	return nil
}

func (r *MemRepo) Get(_ context.Context, tenant auth.TenantScope, id domain.JobID) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(tenant, id)
}

func (r *MemRepo) getLocked(tenant auth.TenantScope, id domain.JobID) (*domain.Job, error) {
	j, ok := r.jobs[jobKey{tenant, id}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *MemRepo) Transition(_ context.Context, tenant auth.TenantScope, id domain.JobID, from, to domain.State, p domain.Patch) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobKey{tenant, id}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.State != from {
		return nil, domain.ErrConflict
	}
	j.State = to
	j.Result = p.Result
	j.FailureReason = p.FailureReason
	j.BlockReason = p.BlockReason
	j.FirewallStage = p.FirewallStage
	j.FirewallOutcome = p.FirewallOutcome
	j.UpdatedAt = time.Now().UTC()
	cp := *j
	return &cp, nil
}

func (r *MemRepo) IncrementAttempts(_ context.Context, tenant auth.TenantScope, id domain.JobID, expected int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobKey{tenant, id}]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if j.AttemptCount != expected {
		return 0, domain.ErrConflict
	}
	j.AttemptCount++
	j.UpdatedAt = time.Now().UTC()
	return j.AttemptCount, nil
}

func (r *MemRepo) AppendEvent(_ context.Context, e *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *e
	cp.ID = r.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.events = append(r.events, &cp)
	return nil
}

func (r *MemRepo) EventsByJob(_ context.Context, tenant auth.TenantScope, id domain.JobID, limit int) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var out []*domain.Event
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.events[i]
		if e.Tenant == tenant && e.JobID == id {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MemObjects is an in-memory object store keyed by the already-rooted key.
type MemObjects struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemObjects() *MemObjects {
	return &MemObjects{data: make(map[string][]byte)}
}

func (o *MemObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	o.data[key] = cp
	return nil
}

func (o *MemObjects) Get(_ context.Context, key string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.data[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Keys returns every stored key, for isolation assertions.
func (o *MemObjects) Keys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, 0, len(o.data))
	for k := range o.data {
		keys = append(keys, k)
	}
	return keys
}

// MemQueue records enqueued references. Set Err to simulate an outage.
type MemQueue struct {
	mu   sync.Mutex
	Err  error
	refs []domain.Ref
}

func (q *MemQueue) Enqueue(_ context.Context, ref domain.Ref) (domain.Receipt, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return domain.Receipt{}, q.Err
	}
	q.refs = append(q.refs, ref)
	return domain.Receipt{TaskName: "mem/" + string(ref.JobID), EnqueuedAt: time.Now()}, nil
}

func (q *MemQueue) Refs() []domain.Ref {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.Ref(nil), q.refs...)
}

// StubAnalyzer returns a fixed result or error and counts calls.
type StubAnalyzer struct {
	mu     sync.Mutex
	Result analysis.Result
	Err    error
	calls  int
}

func (a *StubAnalyzer) Analyze(_ context.Context, _ string) (*analysis.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.Err != nil {
		return nil, a.Err
	}
	cp := a.Result
	return &cp, nil
}

func (a *StubAnalyzer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// StubClassifier returns a fixed intent or error and counts calls.
type StubClassifier struct {
	mu     sync.Mutex
	Intent firewall.Intent
	Err    error
	calls  int
}

func (c *StubClassifier) Classify(_ context.Context, _ string) (firewall.Intent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.Err != nil {
		return firewall.Intent{}, c.Err
	}
	return c.Intent, nil
}

func (c *StubClassifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// FixedClock always reports the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
