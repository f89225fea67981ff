package tenantstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliNMackie/cofound-platform/internal/domain/jobs"
	"github.com/AliNMackie/cofound-platform/internal/tenantstore"
	"github.com/AliNMackie/cofound-platform/internal/testutil"
)

func newAccessor() (*tenantstore.Accessor, *testutil.MemRepo, *testutil.MemObjects) {
	repo := testutil.NewMemRepo()
	objects := testutil.NewMemObjects()
	return tenantstore.New(repo, objects), repo, objects
}

func TestObjectKeysAreRootedPerTenant(t *testing.T) {
	acc, _, objects := newAccessor()
	ctx := context.Background()

	require.NoError(t, acc.Scope("acme").PutObject(ctx, "jobs/1/input.txt", []byte("a"), "text/plain"))
	require.NoError(t, acc.Scope("globex").PutObject(ctx, "jobs/1/input.txt", []byte("b"), "text/plain"))

	got, err := acc.Scope("acme").GetObject(ctx, "jobs/1/input.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)

	got, err = acc.Scope("globex").GetObject(ctx, "jobs/1/input.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got)

	assert.ElementsMatch(t, []string{
		"tenants/acme/jobs/1/input.txt",
		"tenants/globex/jobs/1/input.txt",
	}, objects.Keys())
}

func TestObjectKeyTraversalRejected(t *testing.T) {
	acc, _, objects := newAccessor()
	ctx := context.Background()
	sc := acc.Scope("acme")

	for _, key := range []string{
		"../globex/jobs/1/input.txt",
		"..",
		"a/../../globex/x",
		"/etc/passwd",
		"",
		".",
	} {
		err := sc.PutObject(ctx, key, []byte("x"), "text/plain")
		assert.True(t, errors.Is(err, jobs.ErrValidation), "key %q must be rejected", key)

		_, err = sc.GetObject(ctx, key)
		assert.True(t, errors.Is(err, jobs.ErrValidation), "key %q must be rejected", key)
	}
	assert.Empty(t, objects.Keys())
}

func TestInsertJobPinsTenantToScope(t *testing.T) {
	acc, _, _ := newAccessor()
	ctx := context.Background()

	j := &jobs.Job{
		ID:        "j1",
		Tenant:    "globex", // smuggled owner
		State:     jobs.StateQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, acc.Scope("acme").InsertJob(ctx, j))
	assert.Equal(t, "acme", string(j.Tenant))

	got, err := acc.Scope("acme").GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "acme", string(got.Tenant))

	_, err = acc.Scope("globex").GetJob(ctx, "j1")
	assert.True(t, errors.Is(err, jobs.ErrNotFound))
}

func TestTransitionJobEnforcesStateMachine(t *testing.T) {
	acc, _, _ := newAccessor()
	ctx := context.Background()
	sc := acc.Scope("acme")

	require.NoError(t, sc.InsertJob(ctx, &jobs.Job{ID: "j1", State: jobs.StateQueued}))

	// Forbidden edge is refused before touching the store.
	_, err := sc.TransitionJob(ctx, "j1", jobs.StateQueued, jobs.StateCompleted, jobs.Patch{})
	assert.True(t, errors.Is(err, jobs.ErrConflict))

	got, err := sc.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateQueued, got.State)

	// Allowed edge goes through, and only once.
	_, err = sc.TransitionJob(ctx, "j1", jobs.StateQueued, jobs.StateProcessing, jobs.Patch{})
	require.NoError(t, err)
	_, err = sc.TransitionJob(ctx, "j1", jobs.StateQueued, jobs.StateProcessing, jobs.Patch{})
	assert.True(t, errors.Is(err, jobs.ErrConflict))
}

func TestCrossTenantTransitionIsNotFound(t *testing.T) {
	acc, _, _ := newAccessor()
	ctx := context.Background()

	require.NoError(t, acc.Scope("acme").InsertJob(ctx, &jobs.Job{ID: "j1", State: jobs.StateQueued}))

	_, err := acc.Scope("globex").TransitionJob(ctx, "j1", jobs.StateQueued, jobs.StateProcessing, jobs.Patch{})
	assert.True(t, errors.Is(err, jobs.ErrNotFound))

	_, err = acc.Scope("globex").IncrementAttempts(ctx, "j1", 0)
	assert.True(t, errors.Is(err, jobs.ErrNotFound))
}

func TestEventsAreScoped(t *testing.T) {
	acc, _, _ := newAccessor()
	ctx := context.Background()

	require.NoError(t, acc.Scope("acme").InsertJob(ctx, &jobs.Job{ID: "j1", State: jobs.StateQueued}))
	require.NoError(t, acc.Scope("acme").AppendEvent(ctx, "j1", "verdict", "stage=semantic outcome=admit"))

	events, err := acc.Scope("acme").Events(ctx, "j1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "verdict", events[0].Kind)

	events, err = acc.Scope("globex").Events(ctx, "j1", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
