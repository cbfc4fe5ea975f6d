package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/steelforge/erpauth/internal/authz"
	"github.com/steelforge/erpauth/internal/models"
	apperrors "github.com/steelforge/erpauth/pkg/errors"
	"github.com/steelforge/erpauth/pkg/logger"
)

// CacheInvalidator drops cached decision state after a mutation. The authz
// Checker satisfies it; a nil invalidator disables invalidation (no cache).
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...string) error
	InvalidateRole(ctx context.Context, roleID string) error
}

// RoleService manages roles and their permission grants.
type RoleService struct {
	db          *gorm.DB
	audit       *AuditService
	invalidator CacheInvalidator
}

// NewRoleService constructs a RoleService using the provided database handle.
func NewRoleService(db *gorm.DB, audit *AuditService, invalidator CacheInvalidator) (*RoleService, error) {
	if db == nil {
		return nil, errors.New("role service: db is required")
	}
	return &RoleService{db: db, audit: audit, invalidator: invalidator}, nil
}

// DefineRoleInput describes the payload accepted by DefineRole.
type DefineRoleInput struct {
	Name        string
	Description string
	IsSystem    bool
}

// UpdateRoleInput describes mutable fields on a role.
type UpdateRoleInput struct {
	Name        string
	Description string
}

// DefineRole upserts a role by its unique name. An existing role keeps its
// is_system flag and current grants; only the description is refreshed.
func (s *RoleService) DefineRole(ctx context.Context, input DefineRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("role name is required")
	}

	var role models.Role
	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&role).Error
	switch {
	case err == nil:
		if desc := strings.TrimSpace(input.Description); desc != "" && desc != role.Description {
			if err := s.db.WithContext(ctx).Model(&role).Update("description", desc).Error; err != nil {
				return nil, fmt.Errorf("role service: refresh description: %w", err)
			}
			role.Description = desc
		}
		return &role, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		role = models.Role{
			Name:        name,
			Description: strings.TrimSpace(input.Description),
			IsSystem:    input.IsSystem,
		}
		if err := s.db.WithContext(ctx).Create(&role).Error; err != nil {
			if isUniqueConstraintError(err) {
				// Lost a creation race; the row exists now.
				return s.DefineRole(ctx, input)
			}
			return nil, fmt.Errorf("role service: create role: %w", err)
		}

		recordAudit(s.audit, ctx, AuditEntry{
			Action:   "role.create",
			Resource: role.ID,
			Result:   "success",
			Metadata: map[string]any{"name": role.Name, "is_system": role.IsSystem},
		})
		return &role, nil
	default:
		return nil, fmt.Errorf("role service: lookup role: %w", err)
	}
}

// UpdateRole modifies role metadata. System roles cannot be renamed.
func (s *RoleService) UpdateRole(ctx context.Context, roleID string, input UpdateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	role, err := s.load(ctx, roleID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if role.IsSystem && name != "" && name != role.Name {
		return nil, ErrSystemRoleImmutable
	}

	updates := map[string]any{}
	if name != "" && name != role.Name {
		updates["name"] = name
	}
	if desc := strings.TrimSpace(input.Description); desc != role.Description {
		updates["description"] = desc
	}
	if len(updates) == 0 {
		return role, nil
	}

	if err := s.db.WithContext(ctx).Model(role).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrDuplicate.WithMessage("role name already exists")
		}
		return nil, fmt.Errorf("role service: update role: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "role.update",
		Resource: role.ID,
		Result:   "success",
		Metadata: updates,
	})

	return s.load(ctx, roleID)
}

// DeleteRole removes a role. System roles and roles with active assignments
// are protected; assignments must be revoked first.
func (s *RoleService) DeleteRole(ctx context.Context, roleID string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.Take(&role, "id = ?", roleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoleNotFound
			}
			return fmt.Errorf("role service: load role: %w", err)
		}

		if role.IsSystem {
			return ErrSystemRoleImmutable
		}

		var assigned int64
		if err := tx.Model(&models.UserRoleAssignment{}).
			Where("role_id = ?", role.ID).
			Count(&assigned).Error; err != nil {
			return fmt.Errorf("role service: count assignments: %w", err)
		}
		if assigned > 0 {
			return ErrRoleAssigned
		}

		if err := tx.Model(&role).Association("Permissions").Clear(); err != nil {
			return fmt.Errorf("role service: clear grants: %w", err)
		}
		if err := tx.Delete(&role).Error; err != nil {
			return fmt.Errorf("role service: delete role: %w", err)
		}

		recordAudit(s.audit, ctx, AuditEntry{
			Action:   "role.delete",
			Resource: role.ID,
			Result:   "success",
			Metadata: map[string]any{"name": role.Name},
		})
		return nil
	})
	return err
}

// GrantPermission attaches a catalog entry to the role. Granting an already
// held permission is a no-op; granting an unknown permission id is an error.
func (s *RoleService) GrantPermission(ctx context.Context, roleID, permissionID string) error {
	ctx = ensureContext(ctx)

	role, err := s.load(ctx, roleID)
	if err != nil {
		return err
	}

	var perm models.Permission
	if err := s.db.WithContext(ctx).Take(&perm, "id = ?", permissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPermissionNotFound
		}
		return fmt.Errorf("role service: load permission: %w", err)
	}

	held, err := s.holds(ctx, role, perm.ID)
	if err != nil {
		return err
	}
	if held {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(role).Association("Permissions").Append(&perm); err != nil {
		return fmt.Errorf("role service: grant permission: %w", err)
	}

	s.invalidateRole(ctx, role.ID)
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "role.grant",
		Resource: role.ID,
		Result:   "success",
		Metadata: map[string]any{"permission_id": perm.ID},
	})
	return nil
}

// RevokePermission detaches a catalog entry from the role. Revoking an
// ungranted permission is a no-op.
func (s *RoleService) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	ctx = ensureContext(ctx)

	role, err := s.load(ctx, roleID)
	if err != nil {
		return err
	}

	held, err := s.holds(ctx, role, permissionID)
	if err != nil {
		return err
	}
	if !held {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(role).
		Association("Permissions").
		Delete(&models.Permission{BaseModel: models.BaseModel{ID: permissionID}}); err != nil {
		return fmt.Errorf("role service: revoke permission: %w", err)
	}

	s.invalidateRole(ctx, role.ID)
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "role.revoke",
		Resource: role.ID,
		Result:   "success",
		Metadata: map[string]any{"permission_id": permissionID},
	})
	return nil
}

// EffectivePermissions returns the role's grants in evaluated form.
func (s *RoleService) EffectivePermissions(ctx context.Context, roleID string) ([]authz.Grant, error) {
	ctx = ensureContext(ctx)

	var role models.Role
	err := s.db.WithContext(ctx).Preload("Permissions").Take(&role, "id = ?", roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("role service: load role: %w", err)
	}

	grants := make([]authz.Grant, 0, len(role.Permissions))
	for _, perm := range role.Permissions {
		grants = append(grants, authz.Classify(perm))
	}
	return grants, nil
}

// ListRoles returns all roles with their grants, ordered by creation date.
func (s *RoleService) ListRoles(ctx context.Context) ([]models.Role, error) {
	ctx = ensureContext(ctx)

	var roles []models.Role
	if err := s.db.WithContext(ctx).
		Preload("Permissions").
		Order("created_at ASC").
		Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("role service: list roles: %w", err)
	}
	return roles, nil
}

// GetRole returns a single role with its grants.
func (s *RoleService) GetRole(ctx context.Context, roleID string) (*models.Role, error) {
	ctx = ensureContext(ctx)

	var role models.Role
	err := s.db.WithContext(ctx).Preload("Permissions").Take(&role, "id = ?", roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("role service: load role: %w", err)
	}
	return &role, nil
}

func (s *RoleService) load(ctx context.Context, roleID string) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).Take(&role, "id = ?", roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("role service: load role: %w", err)
	}
	return &role, nil
}

func (s *RoleService) holds(ctx context.Context, role *models.Role, permissionID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("role_permissions").
		Where("role_id = ? AND permission_id = ?", role.ID, permissionID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("role service: check grant: %w", err)
	}
	return count > 0, nil
}

func (s *RoleService) invalidateRole(ctx context.Context, roleID string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateRole(ctx, roleID); err != nil {
		logger.WithComponent("services").Warn("decision cache invalidation failed",
			zap.String("role_id", roleID), zap.Error(err))
	}
}
