package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steelforge/erpauth/internal/database/testutil"
	"github.com/steelforge/erpauth/internal/models"
)

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	_, found, err := store.Get(ctx, "absent")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Set(ctx, "k", []byte("v1"), time.Minute))

	value, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), value)

	// Overwrite keeps a single row.
	require.NoError(t, store.Set(ctx, "k", []byte("v2"), time.Minute))
	value, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v2"), value)

	require.NoError(t, store.Delete(ctx, "k"))
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreExpiry(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("x"), time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	_, found, err := store.Get(ctx, "short")
	require.NoError(t, err)
	require.False(t, found)

	// Zero TTL entries never expire.
	require.NoError(t, store.Set(ctx, "forever", []byte("y"), 0))
	_, found, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, found)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, ttl, err := store.IncrementWithTTL(ctx, "counter", time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, count)
		require.Positive(t, ttl)
	}

	// A fresh window restarts the count.
	count, _, err := store.IncrementWithTTL(ctx, "window", time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	time.Sleep(10 * time.Millisecond)
	count, _, err = store.IncrementWithTTL(ctx, "window", time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "stale", []byte("x"), time.Millisecond))
	require.NoError(t, store.Set(ctx, "live", []byte("y"), time.Hour))
	require.NoError(t, store.Set(ctx, "forever", []byte("z"), 0))
	time.Sleep(10 * time.Millisecond)

	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	var remaining int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Count(&remaining).Error)
	require.Equal(t, int64(2), remaining)
}
