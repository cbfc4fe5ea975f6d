package seed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/steelforge/erpauth/internal/authz"
	"github.com/steelforge/erpauth/internal/models"
	"github.com/steelforge/erpauth/pkg/logger"
	"github.com/steelforge/erpauth/pkg/metrics"
)

// PermissionDef declares one catalog entry.
type PermissionDef struct {
	Module      string
	Action      string
	Resource    string
	Description string
}

// GrantRef names a catalog entry a role should hold.
type GrantRef struct {
	Module   string
	Action   string
	Resource string
}

// RoleDef declares a role and the catalog entries it is granted.
type RoleDef struct {
	Name        string
	Description string
	IsSystem    bool
	Grants      []GrantRef
}

// BranchDef declares an organizational unit used for assignment scoping.
type BranchDef struct {
	Code    string
	Name    string
	City    string
	Country string
}

// AssignmentDef declares a default role assignment for an externally-owned
// user id, optionally scoped to a branch code.
type AssignmentDef struct {
	UserID     string
	Role       string
	BranchCode string
}

// Definition is the declarative input to Run.
type Definition struct {
	Permissions []PermissionDef
	Branches    []BranchDef
	Roles       []RoleDef
	Assignments []AssignmentDef
}

// SkippedGrant records a role grant whose catalog entry did not exist.
type SkippedGrant struct {
	Role     string `json:"role"`
	Module   string `json:"module"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
}

// Report summarises a seeding run. A second run over an unchanged definition
// reports zero creations.
type Report struct {
	PermissionsCreated  int            `json:"permissions_created"`
	PermissionsExisting int            `json:"permissions_existing"`
	BranchesCreated     int            `json:"branches_created"`
	BranchesExisting    int            `json:"branches_existing"`
	RolesCreated        int            `json:"roles_created"`
	RolesExisting       int            `json:"roles_existing"`
	GrantsCreated       int            `json:"grants_created"`
	GrantsExisting      int            `json:"grants_existing"`
	AssignmentsCreated  int            `json:"assignments_created"`
	AssignmentsExisting int            `json:"assignments_existing"`
	SkippedGrants       []SkippedGrant `json:"skipped_grants,omitempty"`
	SkippedAssignments  []string       `json:"skipped_assignments,omitempty"`
}

// Run populates the catalog, branches, roles, grants, and default
// assignments. It is idempotent and safe to invoke on every process startup;
// concurrent replicas racing through first boot are serialised by the unique
// indexes backing every insert, not by application-level checks.
func Run(ctx context.Context, db *gorm.DB, def Definition) (*Report, error) {
	if db == nil {
		return nil, errors.New("seed: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	log := logger.WithComponent("seed")
	report := &Report{}
	tx := db.WithContext(ctx)

	if err := seedPermissions(tx, def.Permissions, report); err != nil {
		metrics.SeedRuns.WithLabelValues("failure").Inc()
		return nil, err
	}
	if err := seedBranches(tx, def.Branches, report); err != nil {
		metrics.SeedRuns.WithLabelValues("failure").Inc()
		return nil, err
	}
	if err := seedRoles(tx, def.Roles, report); err != nil {
		metrics.SeedRuns.WithLabelValues("failure").Inc()
		return nil, err
	}
	if err := seedAssignments(tx, def.Assignments, report); err != nil {
		metrics.SeedRuns.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.SeedRuns.WithLabelValues("success").Inc()

	log.Info("seed complete",
		zap.Int("permissions_created", report.PermissionsCreated),
		zap.Int("roles_created", report.RolesCreated),
		zap.Int("grants_created", report.GrantsCreated),
		zap.Int("skipped_grants", len(report.SkippedGrants)),
	)
	return report, nil
}

func seedPermissions(tx *gorm.DB, defs []PermissionDef, report *Report) error {
	for _, def := range defs {
		module, action, resource := authz.Normalize(def.Module, def.Action, def.Resource)
		if module == "" || action == "" {
			return fmt.Errorf("seed: permission %q/%q requires module and action", def.Module, def.Action)
		}

		var existing models.Permission
		err := tx.Where("module = ? AND action = ? AND resource = ?", module, action, resource).
			Take(&existing).Error
		switch {
		case err == nil:
			report.PermissionsExisting++
			if existing.Description != def.Description && def.Description != "" {
				if err := tx.Model(&existing).Update("description", def.Description).Error; err != nil {
					return fmt.Errorf("seed: refresh permission description: %w", err)
				}
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			record := models.Permission{
				Module:      module,
				Action:      action,
				Resource:    resource,
				Description: def.Description,
			}
			result := tx.Clauses(clause.OnConflict{
				Columns:   permissionConflictColumns(),
				DoNothing: true,
			}).Create(&record)
			if result.Error != nil {
				return fmt.Errorf("seed: create permission %s.%s: %w", module, action, result.Error)
			}
			if result.RowsAffected == 0 {
				// A concurrent replica won the insert race.
				report.PermissionsExisting++
			} else {
				report.PermissionsCreated++
			}
		default:
			return fmt.Errorf("seed: lookup permission: %w", err)
		}
	}
	return nil
}

func seedBranches(tx *gorm.DB, defs []BranchDef, report *Report) error {
	for _, def := range defs {
		record := models.Branch{
			Code:    def.Code,
			Name:    def.Name,
			City:    def.City,
			Country: def.Country,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&record)
		if result.Error != nil {
			return fmt.Errorf("seed: create branch %s: %w", def.Code, result.Error)
		}
		if result.RowsAffected == 0 {
			report.BranchesExisting++
		} else {
			report.BranchesCreated++
		}
	}
	return nil
}

func seedRoles(tx *gorm.DB, defs []RoleDef, report *Report) error {
	for _, def := range defs {
		role, created, err := upsertRole(tx, def)
		if err != nil {
			return err
		}
		if created {
			report.RolesCreated++
		} else {
			report.RolesExisting++
		}

		if err := seedRoleGrants(tx, role, def, report); err != nil {
			return err
		}
	}
	return nil
}

func upsertRole(tx *gorm.DB, def RoleDef) (*models.Role, bool, error) {
	var role models.Role
	err := tx.Where("name = ?", def.Name).Take(&role).Error
	switch {
	case err == nil:
		// Existing roles keep their is_system flag and grants; only the
		// description is refreshed.
		if role.Description != def.Description && def.Description != "" {
			if err := tx.Model(&role).Update("description", def.Description).Error; err != nil {
				return nil, false, fmt.Errorf("seed: refresh role description: %w", err)
			}
		}
		return &role, false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		role = models.Role{
			Name:        def.Name,
			Description: def.Description,
			IsSystem:    def.IsSystem,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&role)
		if result.Error != nil {
			return nil, false, fmt.Errorf("seed: create role %s: %w", def.Name, result.Error)
		}
		if result.RowsAffected == 0 {
			if err := tx.Where("name = ?", def.Name).Take(&role).Error; err != nil {
				return nil, false, fmt.Errorf("seed: reload role %s: %w", def.Name, err)
			}
			return &role, false, nil
		}
		return &role, true, nil
	default:
		return nil, false, fmt.Errorf("seed: lookup role %s: %w", def.Name, err)
	}
}

func seedRoleGrants(tx *gorm.DB, role *models.Role, def RoleDef, report *Report) error {
	if len(def.Grants) == 0 {
		return nil
	}

	var existing []models.Permission
	if err := tx.Model(role).Association("Permissions").Find(&existing); err != nil {
		return fmt.Errorf("seed: load role grants: %w", err)
	}
	held := make(map[string]struct{}, len(existing))
	for _, perm := range existing {
		held[perm.ID] = struct{}{}
	}

	var toAttach []models.Permission
	for _, ref := range def.Grants {
		module, action, resource := authz.Normalize(ref.Module, ref.Action, ref.Resource)

		var perm models.Permission
		err := tx.Where("module = ? AND action = ? AND resource = ?", module, action, resource).
			Take(&perm).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unknown catalog entry: skip and report, never fail the seed.
			report.SkippedGrants = append(report.SkippedGrants, SkippedGrant{
				Role: def.Name, Module: module, Action: action, Resource: resource,
			})
			continue
		}
		if err != nil {
			return fmt.Errorf("seed: resolve grant for %s: %w", def.Name, err)
		}

		if _, ok := held[perm.ID]; ok {
			report.GrantsExisting++
			continue
		}
		held[perm.ID] = struct{}{}
		toAttach = append(toAttach, perm)
	}

	if len(toAttach) == 0 {
		return nil
	}
	if err := tx.Model(role).Association("Permissions").Append(toAttach); err != nil {
		return fmt.Errorf("seed: grant permissions to %s: %w", def.Name, err)
	}
	report.GrantsCreated += len(toAttach)
	return nil
}

func seedAssignments(tx *gorm.DB, defs []AssignmentDef, report *Report) error {
	for _, def := range defs {
		var role models.Role
		if err := tx.Where("name = ?", def.Role).Take(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				report.SkippedAssignments = append(report.SkippedAssignments,
					fmt.Sprintf("%s -> %s: role not found", def.UserID, def.Role))
				continue
			}
			return fmt.Errorf("seed: lookup role %s: %w", def.Role, err)
		}

		branchID := models.GlobalScope
		if def.BranchCode != "" {
			var branch models.Branch
			if err := tx.Where("code = ?", def.BranchCode).Take(&branch).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					report.SkippedAssignments = append(report.SkippedAssignments,
						fmt.Sprintf("%s -> %s: branch %s not found", def.UserID, def.Role, def.BranchCode))
					continue
				}
				return fmt.Errorf("seed: lookup branch %s: %w", def.BranchCode, err)
			}
			branchID = branch.ID
		}

		record := models.UserRoleAssignment{
			UserID:   def.UserID,
			RoleID:   role.ID,
			BranchID: branchID,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   assignmentConflictColumns(),
			DoNothing: true,
		}).Create(&record)
		if result.Error != nil {
			return fmt.Errorf("seed: assign %s to %s: %w", def.Role, def.UserID, result.Error)
		}
		if result.RowsAffected == 0 {
			report.AssignmentsExisting++
		} else {
			report.AssignmentsCreated++
		}
	}
	return nil
}

func permissionConflictColumns() []clause.Column {
	return []clause.Column{{Name: "module"}, {Name: "action"}, {Name: "resource"}}
}

func assignmentConflictColumns() []clause.Column {
	return []clause.Column{{Name: "user_id"}, {Name: "role_id"}, {Name: "branch_id"}}
}
