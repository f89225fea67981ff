package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/AliNMackie/cofound-platform/internal/domain/auth"
)

// JobID identifier type
type JobID string

// State enum for the job lifecycle
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateBlocked    State = "blocked"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether a job in this state will never change again.
func (s State) Terminal() bool {
	switch s {
	case StateBlocked, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateQueued, StateProcessing, StateBlocked, StateCompleted, StateFailed:
		return true
	}
	return false
}

// CanTransition encodes the allowed state-machine edges. States only move
// forward; a terminal state has no outgoing edges.
func CanTransition(from, to State) bool {
	switch from {
	case StateQueued:
		return to == StateProcessing
	case StateProcessing:
		return to == StateBlocked || to == StateCompleted || to == StateFailed
	}
	return false
}

// Aggregate root: Job, one asynchronous unit of contract-analysis work.
type Job struct {
	ID           JobID            `json:"id"`
	Tenant       auth.TenantScope `json:"tenant_id"`
	State        State            `json:"state"`
	InputDigest  string           `json:"input_digest"`
	AttemptCount int              `json:"attempt_count"`
	MaxAttempts  int              `json:"max_attempts"`

	// Exactly one of these is populated once the job is terminal.
	Result        string `json:"result,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	BlockReason   string `json:"block_reason,omitempty"`

	// Firewall outcome recorded for auditing; raw detection internals are
	// never persisted here.
	FirewallStage   string `json:"firewall_stage,omitempty"`
	FirewallOutcome string `json:"firewall_outcome,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patch holds the fields a state transition may set. Zero values are left
// untouched by repositories.
type Patch struct {
	Result          string
	FailureReason   string
	BlockReason     string
	FirewallStage   string
	FirewallOutcome string
}

// Digest fingerprints submitted content for duplicate-delivery detection.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
