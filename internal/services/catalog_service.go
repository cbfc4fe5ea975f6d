package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/steelforge/erpauth/internal/authz"
	"github.com/steelforge/erpauth/internal/models"
	apperrors "github.com/steelforge/erpauth/pkg/errors"
)

// CatalogService manages the permission catalog: the universe of
// (module, action, resource) triples roles can be granted.
type CatalogService struct {
	db    *gorm.DB
	audit *AuditService
}

// NewCatalogService constructs a CatalogService using the provided database handle.
func NewCatalogService(db *gorm.DB, audit *AuditService) (*CatalogService, error) {
	if db == nil {
		return nil, errors.New("catalog service: db is required")
	}
	return &CatalogService{db: db, audit: audit}, nil
}

// DefineInput describes the payload accepted by Define.
type DefineInput struct {
	Module      string
	Action      string
	Resource    string
	Description string
}

// Define upserts a catalog entry by its triple. Re-invoking with the same
// triple returns the existing row (with its original id) and refreshes the
// description; it never errors, so callers may run it on every startup.
func (s *CatalogService) Define(ctx context.Context, input DefineInput) (*models.Permission, error) {
	ctx = ensureContext(ctx)

	module, action, resource := authz.Normalize(input.Module, input.Action, input.Resource)
	if module == "" || action == "" {
		return nil, apperrors.NewBadRequest("module and action are required")
	}

	record := models.Permission{
		Module:      module,
		Action:      action,
		Resource:    resource,
		Description: input.Description,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "module"}, {Name: "action"}, {Name: "resource"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return nil, fmt.Errorf("catalog service: define %s.%s: %w", module, action, err)
	}

	// Reload so the returned id is the stored row's id even when the upsert
	// hit the conflict path.
	perm, err := s.Find(ctx, module, action, resource)
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "catalog.define",
		Resource: perm.ID,
		Result:   "success",
		Metadata: map[string]any{"module": module, "action": action, "resource": resource},
	})

	return perm, nil
}

// Find returns the catalog entry for the exact triple.
func (s *CatalogService) Find(ctx context.Context, module, action, resource string) (*models.Permission, error) {
	ctx = ensureContext(ctx)
	module, action, resource = authz.Normalize(module, action, resource)

	var perm models.Permission
	err := s.db.WithContext(ctx).
		Where("module = ? AND action = ? AND resource = ?", module, action, resource).
		Take(&perm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPermissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog service: find permission: %w", err)
	}
	return &perm, nil
}

// ListByModule returns catalog entries for one module, used by the admin UI
// to group the permission matrix.
func (s *CatalogService) ListByModule(ctx context.Context, module string) ([]models.Permission, error) {
	ctx = ensureContext(ctx)
	module, _, _ = authz.Normalize(module, "", "")

	var perms []models.Permission
	if err := s.db.WithContext(ctx).
		Where("module = ?", module).
		Order("action ASC, resource ASC").
		Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("catalog service: list by module: %w", err)
	}
	return perms, nil
}

// List returns the whole catalog ordered for stable display.
func (s *CatalogService) List(ctx context.Context) ([]models.Permission, error) {
	ctx = ensureContext(ctx)

	var perms []models.Permission
	if err := s.db.WithContext(ctx).
		Order("module ASC, action ASC, resource ASC").
		Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("catalog service: list: %w", err)
	}
	return perms, nil
}

// Delete removes a catalog entry. Entries still granted to any role are
// protected; dropping them would silently shrink those roles.
func (s *CatalogService) Delete(ctx context.Context, permissionID string) error {
	ctx = ensureContext(ctx)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var perm models.Permission
		if err := tx.Take(&perm, "id = ?", permissionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPermissionNotFound
			}
			return fmt.Errorf("catalog service: load permission: %w", err)
		}

		refs := tx.Model(&perm).Association("Roles").Count()
		if refs > 0 {
			return ErrPermissionReferenced
		}

		if err := tx.Delete(&perm).Error; err != nil {
			return fmt.Errorf("catalog service: delete permission: %w", err)
		}

		recordAudit(s.audit, ctx, AuditEntry{
			Action:   "catalog.delete",
			Resource: perm.ID,
			Result:   "success",
			Metadata: map[string]any{"module": perm.Module, "action": perm.Action, "resource": perm.Resource},
		})
		return nil
	})
}
