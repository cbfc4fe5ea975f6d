package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/steelforge/erpauth/internal/models"
	apperrors "github.com/steelforge/erpauth/pkg/errors"
	"github.com/steelforge/erpauth/pkg/logger"
)

// AssignmentService manages user-role assignments across branch scopes.
type AssignmentService struct {
	db          *gorm.DB
	audit       *AuditService
	invalidator CacheInvalidator
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(db *gorm.DB, audit *AuditService, invalidator CacheInvalidator) (*AssignmentService, error) {
	if db == nil {
		return nil, errors.New("assignment service: db is required")
	}
	return &AssignmentService{db: db, audit: audit, invalidator: invalidator}, nil
}

// AssignInput describes an assignment request. BranchID accepts either a
// branch id or a branch code; an empty value grants the role globally,
// across every branch. The stored scope is always the branch id.
type AssignInput struct {
	UserID   string
	RoleID   string
	BranchID string
}

// Assign grants a role to a user within a branch scope. Assigning an already
// held role in the same scope is a no-op that returns the existing row.
func (s *AssignmentService) Assign(ctx context.Context, input AssignInput) (*models.UserRoleAssignment, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	var role models.Role
	if err := s.db.WithContext(ctx).Take(&role, "id = ?", input.RoleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("assignment service: load role: %w", err)
	}

	branchID := strings.TrimSpace(input.BranchID)
	if branchID != models.GlobalScope {
		branch, err := s.resolveBranch(ctx, branchID)
		if err != nil {
			return nil, err
		}
		branchID = branch.ID
	}

	assignment := models.UserRoleAssignment{
		UserID:   userID,
		RoleID:   role.ID,
		BranchID: branchID,
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "role_id"}, {Name: "branch_id"}},
			DoNothing: true,
		}).
		Create(&assignment)
	if result.Error != nil {
		return nil, fmt.Errorf("assignment service: create assignment: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Already assigned in this scope; return the existing row.
		var existing models.UserRoleAssignment
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND role_id = ? AND branch_id = ?", userID, role.ID, branchID).
			Take(&existing).Error
		if err != nil {
			return nil, fmt.Errorf("assignment service: load assignment: %w", err)
		}
		return &existing, nil
	}

	s.invalidate(ctx, userID)
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "assignment.grant",
		Resource: assignment.ID,
		Result:   "success",
		Metadata: map[string]any{
			"user_id":   userID,
			"role_id":   role.ID,
			"role_name": role.Name,
			"branch_id": branchID,
		},
	})
	return &assignment, nil
}

// Revoke removes a role assignment in the given scope. Revoking an assignment
// that does not exist is a no-op.
func (s *AssignmentService) Revoke(ctx context.Context, input AssignInput) error {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return apperrors.NewBadRequest("user id is required")
	}

	branchID := strings.TrimSpace(input.BranchID)
	if branchID != models.GlobalScope {
		branch, err := s.resolveBranch(ctx, branchID)
		if errors.Is(err, ErrBranchNotFound) {
			// No branch means no assignment can reference it.
			return nil
		}
		if err != nil {
			return err
		}
		branchID = branch.ID
	}

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ? AND branch_id = ?", userID, input.RoleID, branchID).
		Delete(&models.UserRoleAssignment{})
	if result.Error != nil {
		return fmt.Errorf("assignment service: delete assignment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil
	}

	s.invalidate(ctx, userID)
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "assignment.revoke",
		Resource: userID,
		Result:   "success",
		Metadata: map[string]any{
			"role_id":   input.RoleID,
			"branch_id": branchID,
		},
	})
	return nil
}

// RevokeAllForUser removes every assignment held by a user, typically on
// offboarding. Returns the number of rows removed.
func (s *AssignmentService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.UserRoleAssignment{})
	if result.Error != nil {
		return 0, fmt.Errorf("assignment service: delete assignments: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.invalidate(ctx, userID)
		recordAudit(s.audit, ctx, AuditEntry{
			Action:   "assignment.revoke_all",
			Resource: userID,
			Result:   "success",
			Metadata: map[string]any{"removed": result.RowsAffected},
		})
	}
	return result.RowsAffected, nil
}

// RolesFor returns the roles a user holds in the given branch scope. Global
// assignments are always included; branch assignments only when branchID
// names that branch.
func (s *AssignmentService) RolesFor(ctx context.Context, userID, branchID string) ([]models.Role, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Preload("Role")
	branchID = strings.TrimSpace(branchID)
	if branchID == models.GlobalScope {
		query = query.Where("user_id = ? AND branch_id = ?", userID, models.GlobalScope)
	} else {
		query = query.Where("user_id = ? AND branch_id IN ?", userID, []string{models.GlobalScope, branchID})
	}

	var assignments []models.UserRoleAssignment
	if err := query.Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("assignment service: list assignments: %w", err)
	}

	seen := make(map[string]struct{}, len(assignments))
	roles := make([]models.Role, 0, len(assignments))
	for _, a := range assignments {
		if _, ok := seen[a.RoleID]; ok {
			continue
		}
		seen[a.RoleID] = struct{}{}
		roles = append(roles, a.Role)
	}
	return roles, nil
}

// ListForUser returns every assignment held by a user, in all scopes.
func (s *AssignmentService) ListForUser(ctx context.Context, userID string) ([]models.UserRoleAssignment, error) {
	ctx = ensureContext(ctx)

	var assignments []models.UserRoleAssignment
	if err := s.db.WithContext(ctx).
		Preload("Role").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("assignment service: list assignments: %w", err)
	}
	return assignments, nil
}

// resolveBranch looks a branch up by id or code. Assignments always store the
// branch id as their scope.
func (s *AssignmentService) resolveBranch(ctx context.Context, ref string) (*models.Branch, error) {
	var branch models.Branch
	err := s.db.WithContext(ctx).
		Where("id = ? OR code = ?", ref, strings.ToUpper(ref)).
		Take(&branch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBranchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("assignment service: resolve branch: %w", err)
	}
	return &branch, nil
}

func (s *AssignmentService) invalidate(ctx context.Context, userID string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, userID); err != nil {
		logger.WithComponent("services").Warn("decision cache invalidation failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}
