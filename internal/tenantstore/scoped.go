// Package tenantstore is the single choke point for persistent access. Every
// read and write issued through it is namespaced under the caller's tenant
// scope; no other component holds the underlying repository or object store.
package tenantstore

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/AliNMackie/cofound-platform/internal/domain/auth"
	"github.com/AliNMackie/cofound-platform/internal/domain/jobs"
)

// ObjectStore port for content and artifact blobs. Implemented by the MinIO
// adapter; keys arrive already rooted under the tenant prefix.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Accessor owns the raw repository and object store and hands out
// tenant-bound views of them.
type Accessor struct {
	repo    jobs.Repository
	objects ObjectStore
}

func New(repo jobs.Repository, objects ObjectStore) *Accessor {
	return &Accessor{repo: repo, objects: objects}
}

// Scope binds a tenant to the accessor. The returned view cannot reach data
// outside that tenant's namespace.
func (a *Accessor) Scope(scope auth.TenantScope) *Scoped {
	return &Scoped{scope: scope, repo: a.repo, objects: a.objects}
}

// Scoped is a tenant-bound view over the store. The scope is fixed at
// construction and never taken from call arguments.
type Scoped struct {
	scope   auth.TenantScope
	repo    jobs.Repository
	objects ObjectStore
}

func (s *Scoped) Tenant() auth.TenantScope { return s.scope }

// InsertJob persists a new job. The job's tenant is overwritten with the
// bound scope so a caller cannot smuggle in a foreign owner.
func (s *Scoped) InsertJob(ctx context.Context, j *jobs.Job) error {
	j.Tenant = s.scope
	return s.repo.Insert(ctx, j)
}

func (s *Scoped) GetJob(ctx context.Context, id jobs.JobID) (*jobs.Job, error) {
	return s.repo.Get(ctx, s.scope, id)
}

func (s *Scoped) TransitionJob(ctx context.Context, id jobs.JobID, from, to jobs.State, p jobs.Patch) (*jobs.Job, error) {
	if !jobs.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", jobs.ErrConflict, from, to)
	}
	return s.repo.Transition(ctx, s.scope, id, from, to, p)
}

func (s *Scoped) IncrementAttempts(ctx context.Context, id jobs.JobID, expected int) (int, error) {
	return s.repo.IncrementAttempts(ctx, s.scope, id, expected)
}

func (s *Scoped) AppendEvent(ctx context.Context, id jobs.JobID, kind, message string) error {
	return s.repo.AppendEvent(ctx, &jobs.Event{
		Tenant:  s.scope,
		JobID:   id,
		Kind:    kind,
		Message: message,
	})
}

func (s *Scoped) Events(ctx context.Context, id jobs.JobID, limit int) ([]*jobs.Event, error) {
	return s.repo.EventsByJob(ctx, s.scope, id, limit)
}

// PutObject writes a blob under the tenant root.
func (s *Scoped) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	rooted, err := s.rootedKey(key)
	if err != nil {
		return err
	}
	return s.objects.Put(ctx, rooted, data, contentType)
}

// GetObject reads a blob from under the tenant root.
func (s *Scoped) GetObject(ctx context.Context, key string) ([]byte, error) {
	rooted, err := s.rootedKey(key)
	if err != nil {
		return nil, err
	}
	return s.objects.Get(ctx, rooted)
}

// rootedKey rewrites key under tenants/<scope>/. Traversal segments, absolute
// keys and empty keys are rejected so no key can escape its root.
func (s *Scoped) rootedKey(key string) (string, error) {
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == "" ||
		strings.HasPrefix(cleaned, "/") ||
		cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: bad object key", jobs.ErrValidation)
	}
	return path.Join("tenants", string(s.scope), cleaned), nil
}
