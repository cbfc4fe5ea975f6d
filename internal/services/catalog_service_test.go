package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/steelforge/erpauth/internal/database/testutil"
	"github.com/steelforge/erpauth/internal/models"
)

func newCatalogService(t *testing.T) (*CatalogService, *gorm.DB) {
	t.Helper()
	db := testutil.MustOpenTestDB(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	svc, err := NewCatalogService(db, audit)
	require.NoError(t, err)
	return svc, db
}

func TestCatalogDefineIsIdempotent(t *testing.T) {
	svc, db := newCatalogService(t)
	ctx := context.Background()

	first, err := svc.Define(ctx, DefineInput{
		Module:      "inventory",
		Action:      "create",
		Resource:    "stock_transaction",
		Description: "Record stock movements",
	})
	require.NoError(t, err)
	require.Equal(t, "INVENTORY", first.Module)
	require.Equal(t, "CREATE", first.Action)
	require.Equal(t, "STOCK_TRANSACTION", first.Resource)

	second, err := svc.Define(ctx, DefineInput{
		Module:      "INVENTORY",
		Action:      "CREATE",
		Resource:    "STOCK_TRANSACTION",
		Description: "Record warehouse stock movements",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Record warehouse stock movements", second.Description)

	var count int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestCatalogDefineRequiresModuleAndAction(t *testing.T) {
	svc, _ := newCatalogService(t)
	ctx := context.Background()

	_, err := svc.Define(ctx, DefineInput{Action: "CREATE"})
	require.Error(t, err)

	_, err = svc.Define(ctx, DefineInput{Module: "INVENTORY"})
	require.Error(t, err)
}

func TestCatalogPairAndResourceAreDistinct(t *testing.T) {
	svc, db := newCatalogService(t)
	ctx := context.Background()

	pair, err := svc.Define(ctx, DefineInput{Module: "SALES", Action: "APPROVE"})
	require.NoError(t, err)

	triple, err := svc.Define(ctx, DefineInput{Module: "SALES", Action: "APPROVE", Resource: "QUOTATION"})
	require.NoError(t, err)
	require.NotEqual(t, pair.ID, triple.ID)

	var count int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestCatalogDeleteRejectsReferencedEntry(t *testing.T) {
	svc, db := newCatalogService(t)
	ctx := context.Background()

	perm, err := svc.Define(ctx, DefineInput{Module: "HR", Action: "READ", Resource: "EMPLOYEE"})
	require.NoError(t, err)

	role := models.Role{Name: "HR_VIEWER"}
	require.NoError(t, db.Create(&role).Error)
	require.NoError(t, db.Model(&role).Association("Permissions").Append(perm))

	err = svc.Delete(ctx, perm.ID)
	require.ErrorIs(t, err, ErrPermissionReferenced)

	// Still deletable after the last reference goes away.
	require.NoError(t, db.Model(&role).Association("Permissions").Delete(perm))
	require.NoError(t, svc.Delete(ctx, perm.ID))

	_, err = svc.Find(ctx, "HR", "READ", "EMPLOYEE")
	require.ErrorIs(t, err, ErrPermissionNotFound)
}

func TestCatalogListByModule(t *testing.T) {
	svc, _ := newCatalogService(t)
	ctx := context.Background()

	for _, in := range []DefineInput{
		{Module: "SALES", Action: "READ", Resource: "LEAD"},
		{Module: "SALES", Action: "CREATE", Resource: "LEAD"},
		{Module: "HR", Action: "READ", Resource: "EMPLOYEE"},
	} {
		_, err := svc.Define(ctx, in)
		require.NoError(t, err)
	}

	sales, err := svc.ListByModule(ctx, "sales")
	require.NoError(t, err)
	require.Len(t, sales, 2)
	require.Equal(t, "CREATE", sales[0].Action)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}
