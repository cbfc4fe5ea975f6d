package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steelforge/erpauth/internal/cache"
	"github.com/steelforge/erpauth/internal/database/testutil"
	"github.com/steelforge/erpauth/internal/models"
	"github.com/steelforge/erpauth/internal/services"
)

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store := cache.NewDatabaseStore(db)

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "stale", []byte("x"), time.Millisecond))
	require.NoError(t, store.Set(ctx, "fresh", []byte("y"), time.Hour))
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, db.Create(&models.AuditLog{
		Action:    "role.create",
		Result:    "success",
		CreatedAt: time.Now().AddDate(0, 0, -30),
	}).Error)
	require.NoError(t, audit.Log(ctx, services.AuditEntry{Action: "role.update", Result: "success"}))

	cleaner := NewCleaner(store, audit, WithAuditRetentionDays(7))
	require.NoError(t, cleaner.RunOnce(ctx))

	_, found, err := store.Get(ctx, "stale")
	require.NoError(t, err)
	require.False(t, found)
	_, found, err = store.Get(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, found)

	var remaining int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&remaining).Error)
	require.Equal(t, int64(1), remaining)
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store := cache.NewDatabaseStore(db)

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)

	cleaner := NewCleaner(store, audit,
		WithCacheSchedule("@every 1h"),
		WithAuditSchedule("@every 24h"))
	require.NoError(t, cleaner.Start())
	<-cleaner.Stop().Done()
}

func TestCleanerWithoutDependenciesIsInert(t *testing.T) {
	cleaner := NewCleaner(nil, nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
}
