package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steelforge/erpauth/internal/database/testutil"
	"github.com/steelforge/erpauth/internal/models"
)

func TestAuditServiceLogAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Log(ctx, AuditEntry{
		ActorID:  "admin-1",
		Action:   "role.create",
		Resource: "role-id",
		Result:   "success",
		Metadata: map[string]any{"name": "STORE_KEEPER"},
	}))
	require.NoError(t, svc.Log(ctx, AuditEntry{
		ActorID: "admin-2",
		Action:  "assignment.grant",
		Result:  "success",
	}))

	logs, total, err := svc.List(ctx, AuditListOptions{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, logs, 2)

	var metadata map[string]any
	for _, log := range logs {
		if log.Action != "role.create" {
			continue
		}
		require.NoError(t, json.Unmarshal([]byte(log.Metadata), &metadata))
		require.Equal(t, "STORE_KEEPER", metadata["name"])
	}
	require.NotNil(t, metadata)

	filtered, total, err := svc.List(ctx, AuditListOptions{Filters: AuditFilters{ActorID: "admin-1"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "role.create", filtered[0].Action)
}

func TestAuditServiceRejectsIncompleteEntries(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	ctx := context.Background()
	require.Error(t, svc.Log(ctx, AuditEntry{Result: "success"}))
	require.Error(t, svc.Log(ctx, AuditEntry{Action: "role.create"}))
}

func TestAuditServiceCleanupOlderThan(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	old := models.AuditLog{
		Action:    "old.action",
		Result:    "success",
		CreatedAt: time.Now().AddDate(0, 0, -10),
	}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, svc.Log(context.Background(), AuditEntry{Action: "new.action", Result: "success"}))

	rows, err := svc.CleanupOlderThan(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	var remaining int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&remaining).Error)
	require.Equal(t, int64(1), remaining)

	_, err = svc.CleanupOlderThan(context.Background(), 0)
	require.Error(t, err)
}
