package devicegrant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRecord(deviceCode, userCode string, now time.Time) *Record {
	return &Record{
		DeviceCode: deviceCode,
		UserCode:   userCode,
		ClientID:   "c1",
		Scopes:     []string{"read"},
		Status:     StatusPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(10 * time.Minute),
		Interval:   5,
	}
}

func TestMemoryStoreCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("duplicate device code", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Create(ctx, newTestRecord("dc1", "BCDF-GHJK", now)))

		err := store.Create(ctx, newTestRecord("dc1", "MNPQ-RSTV", now))
		require.ErrorIs(t, err, ErrDeviceCodeExists)
	})

	t.Run("user code conflicts only with live records", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Create(ctx, newTestRecord("dc1", "BCDF-GHJK", now)))

		err := store.Create(ctx, newTestRecord("dc2", "BCDF-GHJK", now))
		require.ErrorIs(t, err, ErrUserCodeExists)

		// Once the first record is terminal its user code can be reissued.
		require.NoError(t, store.Transition(ctx, "dc1", StatusPending, StatusExpired))
		require.NoError(t, store.Create(ctx, newTestRecord("dc2", "BCDF-GHJK", now)))
	})

	t.Run("records are copied in and out", func(t *testing.T) {
		store := NewMemoryStore()
		rec := newTestRecord("dc1", "BCDF-GHJK", now)
		require.NoError(t, store.Create(ctx, rec))

		rec.Status = StatusDenied // caller mutation must not leak in

		got, err := store.GetByDeviceCode(ctx, "dc1")
		require.NoError(t, err)
		require.Equal(t, StatusPending, got.Status)

		got.Status = StatusDenied // reader mutation must not leak back
		again, err := store.GetByDeviceCode(ctx, "dc1")
		require.NoError(t, err)
		require.Equal(t, StatusPending, again.Status)
	})
}

func TestMemoryStoreLookups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, newTestRecord("dc1", "BCDF-GHJK", now)))

	t.Run("miss returns nil without error", func(t *testing.T) {
		rec, err := store.GetByDeviceCode(ctx, "nope")
		require.NoError(t, err)
		require.Nil(t, rec)

		rec, err = store.GetByUserCode(ctx, "ZZZZ-ZZZZ")
		require.NoError(t, err)
		require.Nil(t, rec)
	})

	t.Run("user code lookup is normalized", func(t *testing.T) {
		for _, form := range []string{"BCDF-GHJK", "bcdfghjk", " bcdf-ghjk "} {
			rec, err := store.GetByUserCode(ctx, form)
			require.NoError(t, err)
			require.NotNil(t, rec, "form %q", form)
			require.Equal(t, "dc1", rec.DeviceCode)
		}
	})
}

func TestMemoryStoreConditionalUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("approve only from pending", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Create(ctx, newTestRecord("dc1", "BCDF-GHJK", now)))

		require.NoError(t, store.Approve(ctx, "dc1", "alice", now))
		rec, err := store.GetByDeviceCode(ctx, "dc1")
		require.NoError(t, err)
		require.Equal(t, StatusApproved, rec.Status)
		require.Equal(t, "alice", rec.ApprovedSubject)

		require.ErrorIs(t, store.Approve(ctx, "dc1", "bob", now), ErrConflict)
		require.ErrorIs(t, store.Deny(ctx, "dc1", "bob", now), ErrConflict)
	})

	t.Run("transition guards the from status", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Create(ctx, newTestRecord("dc1", "BCDF-GHJK", now)))

		require.ErrorIs(t, store.Transition(ctx, "dc1", StatusApproved, StatusConsumed), ErrConflict)
		require.NoError(t, store.Transition(ctx, "dc1", StatusPending, StatusExpired))
		require.ErrorIs(t, store.Transition(ctx, "unknown", StatusPending, StatusExpired), ErrConflict)
	})

	t.Run("record poll bumps interval monotonically", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Create(ctx, newTestRecord("dc1", "BCDF-GHJK", now)))

		polledAt := now.Add(3 * time.Second)
		require.NoError(t, store.RecordPoll(ctx, "dc1", polledAt, 10))
		rec, err := store.GetByDeviceCode(ctx, "dc1")
		require.NoError(t, err)
		require.Equal(t, 10, rec.Interval)
		require.Equal(t, polledAt, *rec.LastPolledAt)

		// A smaller interval never shrinks the stored one.
		require.NoError(t, store.RecordPoll(ctx, "dc1", polledAt.Add(time.Second), 5))
		rec, err = store.GetByDeviceCode(ctx, "dc1")
		require.NoError(t, err)
		require.Equal(t, 10, rec.Interval)
	})

	t.Run("record poll requires a pending record", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Create(ctx, newTestRecord("dc1", "BCDF-GHJK", now)))
		require.NoError(t, store.Approve(ctx, "dc1", "alice", now))

		require.ErrorIs(t, store.RecordPoll(ctx, "dc1", now, 5), ErrConflict)
	})
}

func TestMemoryStoreDeleteExpiredBefore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()

	old := newTestRecord("dc1", "BCDF-GHJK", now.Add(-1*time.Hour))
	fresh := newTestRecord("dc2", "MNPQ-RSTV", now)
	require.NoError(t, store.Create(ctx, old))
	require.NoError(t, store.Create(ctx, fresh))

	removed, err := store.DeleteExpiredBefore(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	rec, err := store.GetByDeviceCode(ctx, "dc1")
	require.NoError(t, err)
	require.Nil(t, rec)

	rec, err = store.GetByUserCode(ctx, "BCDF-GHJK")
	require.NoError(t, err)
	require.Nil(t, rec)

	rec, err = store.GetByDeviceCode(ctx, "dc2")
	require.NoError(t, err)
	require.NotNil(t, rec)
}
