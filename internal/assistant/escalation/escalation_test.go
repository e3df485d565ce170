package escalation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenden-assist/server/internal/assistant/model"
	errx "github.com/lenden-assist/server/internal/core/error"
)

func newTestQueue() *MemoryQueue {
	q := NewMemoryQueue()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	q.now = func() time.Time {
		at = at.Add(time.Second)
		return at
	}
	return q
}

func testQuery(id string) model.Query {
	return model.Query{
		ID:        id,
		UserID:    "user-1",
		SessionID: "sess-1",
		Text:      "why was my withdrawal blocked",
	}
}

func TestCreateOpensRecord(t *testing.T) {
	q := newTestQueue()

	rec, err := q.Create(context.Background(), testQuery("q1"), "confidence 0.20 below threshold 0.50")

	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "q1", rec.QueryID)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, "why was my withdrawal blocked", rec.QueryText)
	assert.Equal(t, model.EscalationOpen, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Nil(t, rec.ResolvedAt)
}

func TestCreateRejectsDuplicateOpenTuple(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()

	_, err := q.Create(ctx, testQuery("q1"), "reason")
	require.NoError(t, err)

	_, err = q.Create(ctx, testQuery("q1"), "reason")
	assert.ErrorIs(t, err, errx.ErrDuplicate)
}

func TestCreateAllowsDistinctQueries(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()

	_, err := q.Create(ctx, testQuery("q1"), "reason")
	require.NoError(t, err)
	_, err = q.Create(ctx, testQuery("q2"), "reason")
	require.NoError(t, err)
}

func TestResolveLifecycle(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()

	rec, err := q.Create(ctx, testQuery("q1"), "reason")
	require.NoError(t, err)

	resolved, err := q.Resolve(ctx, rec.ID, "refund issued")
	require.NoError(t, err)
	assert.Equal(t, model.EscalationResolved, resolved.Status)
	assert.Equal(t, "refund issued", resolved.Resolution)
	require.NotNil(t, resolved.ResolvedAt)
	assert.False(t, resolved.ResolvedAt.Before(resolved.CreatedAt))

	// Resolving twice is a lifecycle violation, not an idempotent no-op.
	_, err = q.Resolve(ctx, rec.ID, "again")
	assert.ErrorIs(t, err, errx.ErrInvalidState)
}

func TestResolveUnknownRecord(t *testing.T) {
	q := newTestQueue()

	_, err := q.Resolve(context.Background(), "missing", "done")

	assert.ErrorIs(t, err, errx.ErrNotFound)
}

func TestReescalationAllowedAfterResolve(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()

	rec, err := q.Create(ctx, testQuery("q1"), "reason")
	require.NoError(t, err)
	_, err = q.Resolve(ctx, rec.ID, "done")
	require.NoError(t, err)

	again, err := q.Create(ctx, testQuery("q1"), "reason")
	require.NoError(t, err)
	assert.NotEqual(t, rec.ID, again.ID)
}

func TestListFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()

	first, err := q.Create(ctx, testQuery("q1"), "reason")
	require.NoError(t, err)
	second, err := q.Create(ctx, testQuery("q2"), "reason")
	require.NoError(t, err)
	_, err = q.Resolve(ctx, first.ID, "done")
	require.NoError(t, err)

	open, err := q.List(ctx, model.EscalationOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)

	resolved, err := q.List(ctx, model.EscalationResolved)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, first.ID, resolved[0].ID)

	all, err := q.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Oldest first regardless of status.
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
}
