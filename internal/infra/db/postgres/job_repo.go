package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AliNMackie/cofound-platform/internal/domain/auth"
	domain "github.com/AliNMackie/cofound-platform/internal/domain/jobs"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, tenant_id, state, input_digest, attempt_count, max_attempts,
       COALESCE(result,''), COALESCE(failure_reason,''), COALESCE(block_reason,''),
       COALESCE(firewall_stage,''), COALESCE(firewall_outcome,''), created_at, updated_at`

func (r *JobRepository) Insert(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO analysis_jobs
(id, tenant_id, state, input_digest, attempt_count, max_attempts, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := r.db.ExecContext(ctx, q,
		j.ID, j.Tenant, j.State, j.InputDigest, j.AttemptCount, j.MaxAttempts,
		j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert job: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, tenant auth.TenantScope, id domain.JobID) (*domain.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE tenant_id=$1 AND id=$2 LIMIT 1;`
	return scanJob(r.db.QueryRowContext(ctx, q, tenant, id))
}

// Transition is a conditional write: the RETURNING row is present only when
// the expected prior state still held.
func (r *JobRepository) Transition(ctx context.Context, tenant auth.TenantScope, id domain.JobID, from, to domain.State, p domain.Patch) (*domain.Job, error) {
	q := `
UPDATE analysis_jobs
SET state=$1, result=$2, failure_reason=$3, block_reason=$4,
    firewall_stage=$5, firewall_outcome=$6, updated_at=$7
WHERE tenant_id=$8 AND id=$9 AND state=$10
RETURNING ` + jobColumns + `;`
	j, err := scanJob(r.db.QueryRowContext(ctx, q,
		to, p.Result, p.FailureReason, p.BlockReason,
		p.FirewallStage, p.FirewallOutcome, time.Now().UTC(),
		tenant, id, from,
	))
	if errors.Is(err, domain.ErrNotFound) {
		// No row matched the condition: distinguish absence from a lost race.
		if _, gerr := r.Get(ctx, tenant, id); gerr != nil {
			return nil, gerr
		}
		return nil, domain.ErrConflict
	}
	return j, err
}

func (r *JobRepository) IncrementAttempts(ctx context.Context, tenant auth.TenantScope, id domain.JobID, expected int) (int, error) {
	const q = `
UPDATE analysis_jobs
SET attempt_count=attempt_count+1, updated_at=$1
WHERE tenant_id=$2 AND id=$3 AND attempt_count=$4
RETURNING attempt_count;`
	var n int
	err := r.db.QueryRowContext(ctx, q, time.Now().UTC(), tenant, id, expected).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		if _, gerr := r.Get(ctx, tenant, id); gerr != nil {
			return 0, gerr
		}
		return 0, domain.ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("%w: increment attempts: %v", domain.ErrStoreUnavailable, err)
	}
	return n, nil
}

func (r *JobRepository) AppendEvent(ctx context.Context, e *domain.Event) error {
	const q = `
INSERT INTO job_events (tenant_id, job_id, kind, message, created_at)
VALUES ($1,$2,$3,$4,$5);`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, q, e.Tenant, e.JobID, e.Kind, e.Message, created); err != nil {
		return fmt.Errorf("%w: append event: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *JobRepository) EventsByJob(ctx context.Context, tenant auth.TenantScope, id domain.JobID, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, job_id, kind, COALESCE(message,''), created_at
FROM job_events
WHERE tenant_id=$1 AND job_id=$2
ORDER BY created_at DESC, id DESC
LIMIT $3;`
	rows, err := r.db.QueryContext(ctx, q, tenant, id, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Tenant, &e.JobID, &e.Kind, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", domain.ErrStoreUnavailable, err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.Tenant, &j.State, &j.InputDigest, &j.AttemptCount, &j.MaxAttempts,
		&j.Result, &j.FailureReason, &j.BlockReason,
		&j.FirewallStage, &j.FirewallOutcome, &j.CreatedAt, &j.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan job: %v", domain.ErrStoreUnavailable, err)
	}
	return &j, nil
}
