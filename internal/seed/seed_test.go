package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steelforge/erpauth/internal/database/testutil"
	"github.com/steelforge/erpauth/internal/models"
)

func TestRunIsIdempotent(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()
	def := DefaultDefinition()

	first, err := Run(ctx, db, def)
	require.NoError(t, err)
	require.Positive(t, first.PermissionsCreated)
	require.Positive(t, first.RolesCreated)
	require.Positive(t, first.BranchesCreated)
	require.Positive(t, first.GrantsCreated)
	require.Zero(t, first.PermissionsExisting)
	require.Empty(t, first.SkippedGrants)

	second, err := Run(ctx, db, def)
	require.NoError(t, err)
	require.Zero(t, second.PermissionsCreated)
	require.Zero(t, second.RolesCreated)
	require.Zero(t, second.BranchesCreated)
	require.Zero(t, second.GrantsCreated)
	require.Zero(t, second.AssignmentsCreated)
	require.Equal(t, first.PermissionsCreated, second.PermissionsExisting)
	require.Equal(t, first.RolesCreated, second.RolesExisting)
	require.Equal(t, first.GrantsCreated, second.GrantsExisting)

	// The second run must not have widened the state.
	var permissions, roles, grants int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&permissions).Error)
	require.NoError(t, db.Model(&models.Role{}).Count(&roles).Error)
	require.NoError(t, db.Table("role_permissions").Count(&grants).Error)
	require.Equal(t, int64(first.PermissionsCreated), permissions)
	require.Equal(t, int64(first.RolesCreated), roles)
	require.Equal(t, int64(first.GrantsCreated), grants)
}

func TestRunRestoresStrippedGrants(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	_, err := Run(ctx, db, DefaultDefinition())
	require.NoError(t, err)

	// An operator strips one of a seeded role's grants.
	var role models.Role
	require.NoError(t, db.Where("name = ?", "STORE_KEEPER").Take(&role).Error)
	var perm models.Permission
	require.NoError(t, db.Where("module = ? AND action = ? AND resource = ?",
		ModuleInventory, ActionRead, "STOCK_BALANCE").Take(&perm).Error)
	require.NoError(t, db.Model(&role).Association("Permissions").Delete(&perm))

	report, err := Run(ctx, db, DefaultDefinition())
	require.NoError(t, err)

	// The stripped grant is restored on re-seed, nothing else changes.
	require.Equal(t, 1, report.GrantsCreated)

	count := db.Model(&role).Association("Permissions").Count()
	require.Positive(t, count)
}

func TestRunSkipsUnknownGrants(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	def := Definition{
		Permissions: []PermissionDef{
			{Module: "SALES", Action: "READ", Resource: "LEAD"},
		},
		Roles: []RoleDef{
			{
				Name: "PARTIAL",
				Grants: []GrantRef{
					{Module: "SALES", Action: "READ", Resource: "LEAD"},
					{Module: "SALES", Action: "DELETE", Resource: "LEAD"},
				},
			},
		},
	}

	report, err := Run(ctx, db, def)
	require.NoError(t, err)
	require.Equal(t, 1, report.GrantsCreated)
	require.Len(t, report.SkippedGrants, 1)
	require.Equal(t, "PARTIAL", report.SkippedGrants[0].Role)
	require.Equal(t, "DELETE", report.SkippedGrants[0].Action)
}

func TestRunSeedsAssignments(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	def := Definition{
		Permissions: []PermissionDef{
			{Module: "ADMIN", Action: "READ", Resource: "ROLE"},
		},
		Branches: []BranchDef{
			{Code: "KL001", Name: "Kuala Lumpur Works"},
		},
		Roles: []RoleDef{
			{Name: "ADMINISTRATOR", IsSystem: true, Grants: []GrantRef{{Module: "ADMIN", Action: "READ", Resource: "ROLE"}}},
		},
		Assignments: []AssignmentDef{
			{UserID: "boot-admin", Role: "ADMINISTRATOR"},
			{UserID: "kl-admin", Role: "ADMINISTRATOR", BranchCode: "KL001"},
			{UserID: "ghost", Role: "MISSING_ROLE"},
			{UserID: "lost", Role: "ADMINISTRATOR", BranchCode: "XX999"},
		},
	}

	report, err := Run(ctx, db, def)
	require.NoError(t, err)
	require.Equal(t, 2, report.AssignmentsCreated)
	require.Len(t, report.SkippedAssignments, 2)

	var global models.UserRoleAssignment
	require.NoError(t, db.Where("user_id = ?", "boot-admin").Take(&global).Error)
	require.True(t, global.IsGlobal())

	var scoped models.UserRoleAssignment
	require.NoError(t, db.Where("user_id = ?", "kl-admin").Take(&scoped).Error)
	require.False(t, scoped.IsGlobal())

	again, err := Run(ctx, db, def)
	require.NoError(t, err)
	require.Zero(t, again.AssignmentsCreated)
	require.Equal(t, 2, again.AssignmentsExisting)
}

func TestDefaultDefinitionGrantsResolve(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	ctx := context.Background()

	report, err := Run(ctx, db, DefaultDefinition())
	require.NoError(t, err)

	// Every default role references catalog entries the default catalog defines.
	require.Empty(t, report.SkippedGrants)
	require.Empty(t, report.SkippedAssignments)

	for _, name := range []string{"SUPER_ADMIN", "ADMINISTRATOR", "STORE_KEEPER", "PRODUCTION_MANAGER"} {
		var role models.Role
		require.NoError(t, db.Where("name = ?", name).Take(&role).Error, name)
		require.True(t, role.IsSystem, name)
		require.Positive(t, db.Model(&role).Association("Permissions").Count(), name)
	}
}
