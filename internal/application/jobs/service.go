package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AliNMackie/cofound-platform/internal/application"
	"github.com/AliNMackie/cofound-platform/internal/domain/analysis"
	"github.com/AliNMackie/cofound-platform/internal/domain/auth"
	"github.com/AliNMackie/cofound-platform/internal/domain/firewall"
	domain "github.com/AliNMackie/cofound-platform/internal/domain/jobs"
	"github.com/AliNMackie/cofound-platform/internal/tenantstore"
)

const (
	defaultMaxInputBytes  = 1 << 20 // 1 MiB
	defaultMaxAttempts    = 3
	defaultAnalyzeTimeout = 60 * time.Second
)

// Service implements the job lifecycle use-cases: submission, status reads
// and delivery-callback processing. Safe for concurrent use; the only point
// of coordination between concurrent deliveries is the store's conditional
// writes.
type Service struct {
	Stores   *tenantstore.Accessor
	Queue    domain.Dispatcher
	Firewall *firewall.Pipeline
	Analyzer analysis.Analyzer
	Clock    application.Clock

	MaxInputBytes  int
	MaxAttempts    int
	AnalyzeTimeout time.Duration
}

func (s *Service) maxInputBytes() int {
	if s.MaxInputBytes > 0 {
		return s.MaxInputBytes
	}
	return defaultMaxInputBytes
}

func (s *Service) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return defaultMaxAttempts
}

func (s *Service) analyzeTimeout() time.Duration {
	if s.AnalyzeTimeout > 0 {
		return s.AnalyzeTimeout
	}
	return defaultAnalyzeTimeout
}

func inputKey(id domain.JobID) string  { return fmt.Sprintf("jobs/%s/input.txt", id) }
func resultKey(id domain.JobID) string { return fmt.Sprintf("jobs/%s/result.json", id) }

// SubmitCommand carries one contract submission.
type SubmitCommand struct {
	Tenant       auth.TenantScope
	ContractText string
}

// Submit validates the submission, persists the content and job record under
// the caller's scope and hands a reference to the dispatch queue. The job is
// accepted asynchronously: the result arrives via the delivery callback.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*domain.Job, error) {
	if strings.TrimSpace(cmd.ContractText) == "" {
		return nil, fmt.Errorf("%w: contract_text is empty", domain.ErrValidation)
	}
	if len(cmd.ContractText) > s.maxInputBytes() {
		return nil, fmt.Errorf("%w: contract_text exceeds %d bytes", domain.ErrValidation, s.maxInputBytes())
	}

	now := s.Clock.Now()
	job := &domain.Job{
		ID:          domain.JobID(uuid.New().String()),
		State:       domain.StateQueued,
		InputDigest: domain.Digest(cmd.ContractText),
		MaxAttempts: s.maxAttempts(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	sc := s.Stores.Scope(cmd.Tenant)
	if err := sc.PutObject(ctx, inputKey(job.ID), []byte(cmd.ContractText), "text/plain; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("%w: write input: %v", domain.ErrStoreUnavailable, err)
	}
	if err := sc.InsertJob(ctx, job); err != nil {
		return nil, err
	}

	ref := domain.Ref{JobID: job.ID, Tenant: sc.Tenant(), Digest: job.InputDigest}
	if _, err := s.Queue.Enqueue(ctx, ref); err != nil {
		_ = sc.AppendEvent(ctx, job.ID, "enqueue_failed", err.Error())
		return nil, fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}
	return job, nil
}

// Status returns the current job state for the caller's tenant. A job owned
// by a different tenant is indistinguishable from an absent one.
func (s *Service) Status(ctx context.Context, tenant auth.TenantScope, id domain.JobID) (*domain.Job, error) {
	return s.Stores.Scope(tenant).GetJob(ctx, id)
}

// Events returns the audit trail for a job, newest first.
func (s *Service) Events(ctx context.Context, tenant auth.TenantScope, id domain.JobID, limit int) ([]*domain.Event, error) {
	return s.Stores.Scope(tenant).Events(ctx, id, limit)
}

// Process handles one delivery of a job reference from the dispatch queue.
// Delivery is at-least-once and unordered, so the whole path is written to be
// redelivery-safe:
//
//   - a terminal job is a no-op returning the stored outcome;
//   - a delivery whose content digest does not match the stored job is
//     acknowledged and dropped without touching the job;
//   - the queued -> processing edge is a conditional write, so exactly one of
//     several concurrent first deliveries wins;
//   - every delivery must win a conditional attempt-count bump before doing
//     work, serializing racing redeliveries without a cross-process lock.
//
// A nil error means acknowledge. A retryable error (see domain.Retryable and
// firewall.ErrClassifierUnavailable) means negative-acknowledge: the queue
// redelivers with backoff.
func (s *Service) Process(ctx context.Context, ref domain.Ref) (*domain.Job, error) {
	sc := s.Stores.Scope(ref.Tenant)
	id := ref.JobID

	job, err := sc.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.State.Terminal() {
		return job, nil
	}

	if ref.Digest != "" && ref.Digest != job.InputDigest {
		// The reference does not refer to the content this job was created
		// for; a forged or corrupted delivery must not drive the pipeline.
		_ = sc.AppendEvent(ctx, id, "delivery_rejected", "content digest mismatch")
		return job, nil
	}

	if job.State == domain.StateQueued {
		won, err := sc.TransitionJob(ctx, id, domain.StateQueued, domain.StateProcessing, domain.Patch{})
		if err != nil {
			if !errors.Is(err, domain.ErrConflict) {
				return nil, err
			}
			// Lost the race for the first delivery: someone else already
			// advanced the job. Exit without side effects.
			cur, gerr := sc.GetJob(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			return cur, nil
		}
		job = won
	}

	attempt, err := sc.IncrementAttempts(ctx, id, job.AttemptCount)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// A concurrent delivery is already working this job.
			return job, nil
		}
		return nil, err
	}

	if attempt > job.MaxAttempts {
		return s.finalizeFailed(ctx, sc, id, domain.ErrMaxRetries.Error())
	}

	content, err := sc.GetObject(ctx, inputKey(id))
	if err != nil {
		return nil, fmt.Errorf("%w: read input: %v", domain.ErrStoreUnavailable, err)
	}

	verdict, err := s.Firewall.Inspect(ctx, string(content))
	if err != nil {
		_ = sc.AppendEvent(ctx, id, "attempt_failed", "firewall: "+err.Error())
		return nil, err
	}
	_ = sc.AppendEvent(ctx, id, "verdict", fmt.Sprintf("stage=%s outcome=%s", verdict.Stage, verdict.Outcome))

	if verdict.Outcome == firewall.OutcomeBlock {
		blocked, err := sc.TransitionJob(ctx, id, domain.StateProcessing, domain.StateBlocked, domain.Patch{
			BlockReason:     verdict.Reason,
			FirewallStage:   string(verdict.Stage),
			FirewallOutcome: string(verdict.Outcome),
		})
		if err != nil {
			return s.resolveConflict(ctx, sc, id, err)
		}
		_ = sc.AppendEvent(ctx, id, "finalized", "blocked")
		return blocked, nil
	}

	actx, cancel := context.WithTimeout(ctx, s.analyzeTimeout())
	defer cancel()
	result, err := s.Analyzer.Analyze(actx, string(content))
	if err != nil {
		if domain.Retryable(err) || errors.Is(err, context.DeadlineExceeded) {
			if attempt >= job.MaxAttempts {
				return s.finalizeFailed(ctx, sc, id, domain.ErrMaxRetries.Error())
			}
			_ = sc.AppendEvent(ctx, id, "attempt_failed", "analysis: "+err.Error())
			return nil, fmt.Errorf("%w: %v", domain.ErrAnalyzerUnavailable, err)
		}
		// Unrecoverable: retrying will not help.
		return s.finalizeFailed(ctx, sc, id, "analysis failed")
	}

	if err := sc.PutObject(ctx, resultKey(id), []byte(result.Raw), "application/json"); err != nil {
		return nil, fmt.Errorf("%w: write result: %v", domain.ErrStoreUnavailable, err)
	}

	completed, err := sc.TransitionJob(ctx, id, domain.StateProcessing, domain.StateCompleted, domain.Patch{
		Result:          result.Raw,
		FirewallStage:   string(verdict.Stage),
		FirewallOutcome: string(verdict.Outcome),
	})
	if err != nil {
		return s.resolveConflict(ctx, sc, id, err)
	}
	_ = sc.AppendEvent(ctx, id, "finalized", "completed")
	return completed, nil
}

// finalizeFailed drives processing -> failed. A conflict means a concurrent
// delivery already finalized the job; the stored outcome wins.
func (s *Service) finalizeFailed(ctx context.Context, sc *tenantstore.Scoped, id domain.JobID, reason string) (*domain.Job, error) {
	failed, err := sc.TransitionJob(ctx, id, domain.StateProcessing, domain.StateFailed, domain.Patch{
		FailureReason: reason,
	})
	if err != nil {
		return s.resolveConflict(ctx, sc, id, err)
	}
	_ = sc.AppendEvent(ctx, id, "finalized", "failed: "+reason)
	return failed, nil
}

// resolveConflict turns a lost terminal transition into a successful no-op by
// returning whatever the concurrent winner persisted.
func (s *Service) resolveConflict(ctx context.Context, sc *tenantstore.Scoped, id domain.JobID, cause error) (*domain.Job, error) {
	if !errors.Is(cause, domain.ErrConflict) {
		return nil, cause
	}
	cur, err := sc.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return cur, nil
}
