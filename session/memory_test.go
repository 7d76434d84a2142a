package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	rec := &Record{
		SessionID:   "s1",
		BoardID:     "b1",
		UserID:      "alice",
		ServerID:    "srv-1",
		ConnectedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, rec))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b1", got.BoardID)
	assert.Equal(t, "alice", got.UserID)

	require.NoError(t, store.Delete(ctx, "s1"))
	got, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got, "deleted records should read as absent, not as an error")
}

func TestMemoryStore_MissingRecordIsNotAnError(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Refreshing or deleting an absent record is a no-op.
	assert.NoError(t, store.RefreshTTL(context.Background(), "nope"))
	assert.NoError(t, store.Delete(context.Background(), "nope"))
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(50 * time.Millisecond)

	require.NoError(t, store.Create(ctx, &Record{SessionID: "s1", BoardID: "b1"}))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)

	time.Sleep(80 * time.Millisecond)
	got, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got, "expired records must age out")
}

func TestMemoryStore_RefreshTTLExtendsLifetime(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(60 * time.Millisecond)

	require.NoError(t, store.Create(ctx, &Record{SessionID: "s1", BoardID: "b1"}))

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, store.RefreshTTL(ctx, "s1"))
	time.Sleep(40 * time.Millisecond)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, got, "refresh should push the expiry out")
}
