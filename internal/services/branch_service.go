package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/steelforge/erpauth/internal/models"
	apperrors "github.com/steelforge/erpauth/pkg/errors"
)

// BranchService manages the branch registry used for assignment scoping.
type BranchService struct {
	db    *gorm.DB
	audit *AuditService
}

// NewBranchService constructs a BranchService.
func NewBranchService(db *gorm.DB, audit *AuditService) (*BranchService, error) {
	if db == nil {
		return nil, errors.New("branch service: db is required")
	}
	return &BranchService{db: db, audit: audit}, nil
}

// DefineBranchInput describes the payload accepted by Define.
type DefineBranchInput struct {
	Code        string
	Name        string
	AddressLine string
	City        string
	State       string
	PostalCode  string
	Country     string
	Metadata    map[string]any
}

// Define upserts a branch by its unique code.
func (s *BranchService) Define(ctx context.Context, input DefineBranchInput) (*models.Branch, error) {
	ctx = ensureContext(ctx)

	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, apperrors.NewBadRequest("branch code is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.NewBadRequest("branch name is required")
	}

	var metadata datatypes.JSON
	if len(input.Metadata) > 0 {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, apperrors.NewBadRequest("branch metadata is not serializable")
		}
		metadata = datatypes.JSON(raw)
	}

	var branch models.Branch
	err := s.db.WithContext(ctx).Where("code = ?", code).Take(&branch).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"name":         strings.TrimSpace(input.Name),
			"address_line": input.AddressLine,
			"city":         input.City,
			"state":        input.State,
			"postal_code":  input.PostalCode,
			"country":      input.Country,
		}
		if metadata != nil {
			updates["metadata"] = metadata
		}
		if err := s.db.WithContext(ctx).Model(&branch).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("branch service: update branch: %w", err)
		}
		return s.Get(ctx, branch.ID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		branch = models.Branch{
			Code:        code,
			Name:        strings.TrimSpace(input.Name),
			AddressLine: input.AddressLine,
			City:        input.City,
			State:       input.State,
			PostalCode:  input.PostalCode,
			Country:     input.Country,
			Metadata:    metadata,
		}
		if err := s.db.WithContext(ctx).Create(&branch).Error; err != nil {
			if isUniqueConstraintError(err) {
				return s.Define(ctx, input)
			}
			return nil, fmt.Errorf("branch service: create branch: %w", err)
		}
		recordAudit(s.audit, ctx, AuditEntry{
			Action:   "branch.create",
			Resource: branch.ID,
			Result:   "success",
			Metadata: map[string]any{"code": branch.Code, "name": branch.Name},
		})
		return &branch, nil
	default:
		return nil, fmt.Errorf("branch service: lookup branch: %w", err)
	}
}

// Get returns a branch by id.
func (s *BranchService) Get(ctx context.Context, branchID string) (*models.Branch, error) {
	ctx = ensureContext(ctx)

	var branch models.Branch
	err := s.db.WithContext(ctx).Take(&branch, "id = ?", branchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBranchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("branch service: load branch: %w", err)
	}
	return &branch, nil
}

// GetByCode returns a branch by its unique code.
func (s *BranchService) GetByCode(ctx context.Context, code string) (*models.Branch, error) {
	ctx = ensureContext(ctx)

	var branch models.Branch
	err := s.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		Take(&branch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBranchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("branch service: load branch: %w", err)
	}
	return &branch, nil
}

// List returns all branches ordered by code.
func (s *BranchService) List(ctx context.Context) ([]models.Branch, error) {
	ctx = ensureContext(ctx)

	var branches []models.Branch
	if err := s.db.WithContext(ctx).Order("code ASC").Find(&branches).Error; err != nil {
		return nil, fmt.Errorf("branch service: list branches: %w", err)
	}
	return branches, nil
}
