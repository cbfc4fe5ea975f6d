package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/steelforge/erpauth/internal/database/testutil"
	"github.com/steelforge/erpauth/internal/models"
)

func newAssignmentService(t *testing.T) (*AssignmentService, *gorm.DB) {
	t.Helper()
	db := testutil.MustOpenTestDB(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	svc, err := NewAssignmentService(db, audit, nil)
	require.NoError(t, err)
	return svc, db
}

func seedRoleAndBranch(t *testing.T, db *gorm.DB) (models.Role, models.Branch) {
	t.Helper()
	role := models.Role{Name: "STORE_KEEPER"}
	require.NoError(t, db.Create(&role).Error)
	branch := models.Branch{Code: "KL001", Name: "Kuala Lumpur Works"}
	require.NoError(t, db.Create(&branch).Error)
	return role, branch
}

func TestAssignIsIdempotentPerScope(t *testing.T) {
	svc, db := newAssignmentService(t)
	ctx := context.Background()
	role, branch := seedRoleAndBranch(t, db)

	first, err := svc.Assign(ctx, AssignInput{UserID: "u1", RoleID: role.ID, BranchID: branch.ID})
	require.NoError(t, err)

	second, err := svc.Assign(ctx, AssignInput{UserID: "u1", RoleID: role.ID, BranchID: branch.ID})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.UserRoleAssignment{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	// The same role in a different scope is a distinct assignment.
	global, err := svc.Assign(ctx, AssignInput{UserID: "u1", RoleID: role.ID})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, global.ID)
	require.True(t, global.IsGlobal())

	require.NoError(t, db.Model(&models.UserRoleAssignment{}).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestAssignValidatesReferences(t *testing.T) {
	svc, db := newAssignmentService(t)
	ctx := context.Background()
	role, _ := seedRoleAndBranch(t, db)

	_, err := svc.Assign(ctx, AssignInput{UserID: "u1", RoleID: "missing"})
	require.ErrorIs(t, err, ErrRoleNotFound)

	_, err = svc.Assign(ctx, AssignInput{UserID: "u1", RoleID: role.ID, BranchID: "missing"})
	require.ErrorIs(t, err, ErrBranchNotFound)

	_, err = svc.Assign(ctx, AssignInput{UserID: "  ", RoleID: role.ID})
	require.Error(t, err)
}

func TestAssignResolvesBranchCode(t *testing.T) {
	svc, db := newAssignmentService(t)
	ctx := context.Background()
	role, branch := seedRoleAndBranch(t, db)

	// A branch code names the same scope as the branch id.
	byCode, err := svc.Assign(ctx, AssignInput{UserID: "u1", RoleID: role.ID, BranchID: "kl001"})
	require.NoError(t, err)
	require.Equal(t, branch.ID, byCode.BranchID)

	byID, err := svc.Assign(ctx, AssignInput{UserID: "u1", RoleID: role.ID, BranchID: branch.ID})
	require.NoError(t, err)
	require.Equal(t, byCode.ID, byID.ID)

	var count int64
	require.NoError(t, db.Model(&models.UserRoleAssignment{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	require.NoError(t, svc.Revoke(ctx, AssignInput{UserID: "u1", RoleID: role.ID, BranchID: "KL001"}))
	require.NoError(t, db.Model(&models.UserRoleAssignment{}).Count(&count).Error)
	require.Zero(t, count)
}

type failingInvalidator struct{}

func (failingInvalidator) Invalidate(context.Context, ...string) error {
	return errors.New("cache unavailable")
}

func (failingInvalidator) InvalidateRole(context.Context, string) error {
	return errors.New("cache unavailable")
}

func TestMutationsSurviveInvalidatorFailure(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewAssignmentService(db, nil, failingInvalidator{})
	require.NoError(t, err)
	ctx := context.Background()
	role, branch := seedRoleAndBranch(t, db)

	assignment, err := svc.Assign(ctx, AssignInput{UserID: "u1", RoleID: role.ID, BranchID: branch.ID})
	require.NoError(t, err)
	require.NotEmpty(t, assignment.ID)

	require.NoError(t, svc.Revoke(ctx, AssignInput{UserID: "u1", RoleID: role.ID, BranchID: branch.ID}))

	// Role grant changes keep working too.
	roleSvc, err := NewRoleService(db, nil, failingInvalidator{})
	require.NoError(t, err)
	perm := models.Permission{Module: "INVENTORY", Action: "READ", Resource: "STOCK_BALANCE"}
	require.NoError(t, db.Create(&perm).Error)
	require.NoError(t, roleSvc.GrantPermission(ctx, role.ID, perm.ID))
}

func TestRevokeIsNoOpWhenAbsent(t *testing.T) {
	svc, db := newAssignmentService(t)
	ctx := context.Background()
	role, branch := seedRoleAndBranch(t, db)

	require.NoError(t, svc.Revoke(ctx, AssignInput{UserID: "u1", RoleID: role.ID, BranchID: branch.ID}))

	_, err := svc.Assign(ctx, AssignInput{UserID: "u1", RoleID: role.ID, BranchID: branch.ID})
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, AssignInput{UserID: "u1", RoleID: role.ID, BranchID: branch.ID}))

	var count int64
	require.NoError(t, db.Model(&models.UserRoleAssignment{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRolesForBranchScoping(t *testing.T) {
	svc, db := newAssignmentService(t)
	ctx := context.Background()
	role, branch := seedRoleAndBranch(t, db)

	globalRole := models.Role{Name: "PORTAL_USER"}
	require.NoError(t, db.Create(&globalRole).Error)

	_, err := svc.Assign(ctx, AssignInput{UserID: "u1", RoleID: role.ID, BranchID: branch.ID})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, AssignInput{UserID: "u1", RoleID: globalRole.ID})
	require.NoError(t, err)

	// Branch context unions branch and global assignments.
	roles, err := svc.RolesFor(ctx, "u1", branch.ID)
	require.NoError(t, err)
	require.Len(t, roles, 2)

	// Global context sees only global assignments.
	roles, err = svc.RolesFor(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.Equal(t, "PORTAL_USER", roles[0].Name)

	// An unrelated branch sees only global assignments.
	other := models.Branch{Code: "JB001", Name: "Johor Bahru Sales Office"}
	require.NoError(t, db.Create(&other).Error)
	roles, err = svc.RolesFor(ctx, "u1", other.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
}

func TestRevokeAllForUser(t *testing.T) {
	svc, db := newAssignmentService(t)
	ctx := context.Background()
	role, branch := seedRoleAndBranch(t, db)

	_, err := svc.Assign(ctx, AssignInput{UserID: "u1", RoleID: role.ID, BranchID: branch.ID})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, AssignInput{UserID: "u1", RoleID: role.ID})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, AssignInput{UserID: "u2", RoleID: role.ID})
	require.NoError(t, err)

	removed, err := svc.RevokeAllForUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	list, err := svc.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, list)

	list, err = svc.ListForUser(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, role.ID, list[0].Role.ID)
}
