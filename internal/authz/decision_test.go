package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/steelforge/erpauth/internal/cache"
	"github.com/steelforge/erpauth/internal/database/testutil"
	"github.com/steelforge/erpauth/internal/models"
)

func createPermission(t *testing.T, db *gorm.DB, module, action, resource string) models.Permission {
	t.Helper()
	perm := models.Permission{Module: module, Action: action, Resource: resource}
	require.NoError(t, db.Create(&perm).Error)
	return perm
}

func createRole(t *testing.T, db *gorm.DB, name string, perms ...models.Permission) models.Role {
	t.Helper()
	role := models.Role{Name: name}
	require.NoError(t, db.Create(&role).Error)
	if len(perms) > 0 {
		require.NoError(t, db.Model(&role).Association("Permissions").Append(&perms))
	}
	return role
}

func createBranch(t *testing.T, db *gorm.DB, code string) models.Branch {
	t.Helper()
	branch := models.Branch{Code: code, Name: code + " Plant"}
	require.NoError(t, db.Create(&branch).Error)
	return branch
}

func assignRole(t *testing.T, db *gorm.DB, userID, roleID, branchID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.UserRoleAssignment{
		UserID:   userID,
		RoleID:   roleID,
		BranchID: branchID,
	}).Error)
}

func TestCheckValidatesInput(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = checker.Check(ctx, "", "", "INVENTORY", "CREATE", "BIN")
	require.Error(t, err)

	_, err = checker.Check(ctx, "u1", "", "", "CREATE", "BIN")
	require.Error(t, err)

	_, err = checker.Check(ctx, "u1", "", "INVENTORY", "", "BIN")
	require.Error(t, err)
}

func TestCheckDenyReasons(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	ctx := context.Background()

	readBin := createPermission(t, db, "INVENTORY", "READ", "BIN")
	createPermission(t, db, "INVENTORY", "UPDATE", "BIN")

	// Triple absent from the catalog.
	d, err := checker.Check(ctx, "u1", "", "INVENTORY", "DELETE", "BIN")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, ReasonUnknownPermission, d.Reason)

	// Known triple, user holds no role.
	d, err = checker.Check(ctx, "u1", "", "INVENTORY", "READ", "BIN")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, ReasonNoRoleAssigned, d.Reason)

	// User holds a role that lacks the permission.
	role := createRole(t, db, "VIEWER", readBin)
	assignRole(t, db, "u1", role.ID, models.GlobalScope)

	d, err = checker.Check(ctx, "u1", "", "INVENTORY", "UPDATE", "BIN")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, ReasonPermissionNotGranted, d.Reason)

	d, err = checker.Check(ctx, "u1", "", "INVENTORY", "READ", "BIN")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, ReasonGranted, d.Reason)
}

func TestCheckUnionsGrantsAcrossRoles(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	ctx := context.Background()

	readLead := createPermission(t, db, "SALES", "READ", "LEAD")
	createLead := createPermission(t, db, "SALES", "CREATE", "LEAD")

	reader := createRole(t, db, "LEAD_READER", readLead)
	writer := createRole(t, db, "LEAD_WRITER", createLead)
	assignRole(t, db, "u1", reader.ID, models.GlobalScope)
	assignRole(t, db, "u1", writer.ID, models.GlobalScope)

	for _, action := range []string{"READ", "CREATE"} {
		d, err := checker.Check(ctx, "u1", "", "SALES", action, "LEAD")
		require.NoError(t, err)
		require.True(t, d.Allowed, action)
	}
}

func TestCheckWildcardGrants(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	ctx := context.Background()

	moduleWide := createPermission(t, db, "MANUFACTURING", "*", "")
	createPermission(t, db, "MANUFACTURING", "CREATE", "PRODUCTION_ORDER")
	createPermission(t, db, "MANUFACTURING", "DELETE", "BOM")
	createPermission(t, db, "SALES", "CREATE", "LEAD")

	role := createRole(t, db, "PRODUCTION_MANAGER", moduleWide)
	assignRole(t, db, "u1", role.ID, models.GlobalScope)

	d, err := checker.Check(ctx, "u1", "", "MANUFACTURING", "CREATE", "PRODUCTION_ORDER")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = checker.Check(ctx, "u1", "", "MANUFACTURING", "DELETE", "BOM")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// Module wildcard does not leak into other modules.
	d, err = checker.Check(ctx, "u1", "", "SALES", "CREATE", "LEAD")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, ReasonPermissionNotGranted, d.Reason)
}

func TestCheckGlobalWildcardGrant(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	ctx := context.Background()

	all := createPermission(t, db, "*", "*", "")
	createPermission(t, db, "FINANCE", "DELETE", "LEDGER")

	role := createRole(t, db, "SUPER_ADMIN", all)
	assignRole(t, db, "u1", role.ID, models.GlobalScope)

	d, err := checker.Check(ctx, "u1", "", "FINANCE", "DELETE", "LEDGER")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// Even a superuser cannot exercise triples missing from the catalog.
	d, err = checker.Check(ctx, "u1", "", "FINANCE", "DELETE", "INVOICE")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, ReasonUnknownPermission, d.Reason)
}

func TestCheckBranchScoping(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	ctx := context.Background()

	perm := createPermission(t, db, "INVENTORY", "CREATE", "STOCK_TRANSACTION")
	role := createRole(t, db, "STORE_KEEPER", perm)
	kl := createBranch(t, db, "KL001")
	tn := createBranch(t, db, "TN001")

	assignRole(t, db, "u1", role.ID, kl.ID)

	// Allowed in the assigned branch.
	d, err := checker.Check(ctx, "u1", kl.ID, "INVENTORY", "CREATE", "STOCK_TRANSACTION")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// No roles in another branch.
	d, err = checker.Check(ctx, "u1", tn.ID, "INVENTORY", "CREATE", "STOCK_TRANSACTION")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, ReasonNoRoleAssigned, d.Reason)

	// The global context does not inherit branch assignments.
	d, err = checker.Check(ctx, "u1", "", "INVENTORY", "CREATE", "STOCK_TRANSACTION")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, ReasonNoRoleAssigned, d.Reason)

	// Global assignments apply in every branch.
	assignRole(t, db, "u2", role.ID, models.GlobalScope)
	for _, branch := range []string{"", kl.ID, tn.ID} {
		d, err = checker.Check(ctx, "u2", branch, "INVENTORY", "CREATE", "STOCK_TRANSACTION")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
}

func TestEffectiveGrantsDeduplicates(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	ctx := context.Background()

	perm := createPermission(t, db, "HR", "READ", "EMPLOYEE")
	roleA := createRole(t, db, "HR_VIEWER", perm)
	roleB := createRole(t, db, "HR_CLERK", perm)
	assignRole(t, db, "u1", roleA.ID, models.GlobalScope)
	assignRole(t, db, "u1", roleB.ID, models.GlobalScope)

	grants, err := checker.EffectiveGrants(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.Equal(t, Grant{Kind: GrantExact, Module: "HR", Action: "READ", Resource: "EMPLOYEE"}, grants[0])
}

func TestCheckerDecisionCacheInvalidation(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store := cache.NewDatabaseStore(db)
	checker, err := NewChecker(db, WithDecisionCache(store, time.Minute))
	require.NoError(t, err)

	ctx := context.Background()

	perm := createPermission(t, db, "SERVICE", "ASSIGN", "SERVICE_TICKET")
	role := createRole(t, db, "SERVICE_ENGINEER", perm)
	assignRole(t, db, "u1", role.ID, models.GlobalScope)

	d, err := checker.Check(ctx, "u1", "", "SERVICE", "ASSIGN", "SERVICE_TICKET")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// Revoke behind the cache's back; the cached grant set still answers.
	require.NoError(t, db.Where("user_id = ?", "u1").Delete(&models.UserRoleAssignment{}).Error)

	d, err = checker.Check(ctx, "u1", "", "SERVICE", "ASSIGN", "SERVICE_TICKET")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// Invalidation bumps the user's epoch and forces a reload.
	require.NoError(t, checker.Invalidate(ctx, "u1"))

	d, err = checker.Check(ctx, "u1", "", "SERVICE", "ASSIGN", "SERVICE_TICKET")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, ReasonNoRoleAssigned, d.Reason)
}

func TestCheckerInvalidateRole(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	store := cache.NewDatabaseStore(db)
	checker, err := NewChecker(db, WithDecisionCache(store, time.Minute))
	require.NoError(t, err)

	ctx := context.Background()

	perm := createPermission(t, db, "PORTAL", "READ", "ORDER_STATUS")
	role := createRole(t, db, "PORTAL_USER", perm)
	assignRole(t, db, "u1", role.ID, models.GlobalScope)

	d, err := checker.Check(ctx, "u1", "", "PORTAL", "READ", "ORDER_STATUS")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// Strip the role's grants, then invalidate holders of that role.
	require.NoError(t, db.Model(&role).Association("Permissions").Clear())
	require.NoError(t, checker.InvalidateRole(ctx, role.ID))

	d, err = checker.Check(ctx, "u1", "", "PORTAL", "READ", "ORDER_STATUS")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, ReasonPermissionNotGranted, d.Reason)
}
