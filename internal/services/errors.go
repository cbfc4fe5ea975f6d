package services

import (
	"net/http"

	apperrors "github.com/steelforge/erpauth/pkg/errors"
)

var (
	// ErrRoleNotFound indicates the requested role does not exist.
	ErrRoleNotFound = apperrors.New("ROLE_NOT_FOUND", "Role not found", http.StatusNotFound)
	// ErrPermissionNotFound indicates the referenced catalog entry does not exist.
	ErrPermissionNotFound = apperrors.New("PERMISSION_NOT_FOUND", "Permission not found", http.StatusNotFound)
	// ErrBranchNotFound indicates the referenced branch does not exist.
	ErrBranchNotFound = apperrors.New("BRANCH_NOT_FOUND", "Branch not found", http.StatusNotFound)
	// ErrSystemRoleImmutable prevents destructive operations on system roles.
	ErrSystemRoleImmutable = apperrors.New("ROLE_IMMUTABLE", "System roles cannot be deleted or renamed", http.StatusConflict)
	// ErrRoleAssigned blocks deleting a role that still has active assignments.
	ErrRoleAssigned = apperrors.New("ROLE_ASSIGNED", "Role still has active assignments", http.StatusConflict)
	// ErrPermissionReferenced blocks deleting a catalog entry still granted to a role.
	ErrPermissionReferenced = apperrors.New("PERMISSION_REFERENCED", "Permission is still granted to at least one role", http.StatusConflict)
)
