package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steelforge/erpauth/internal/services"
	appErrors "github.com/steelforge/erpauth/pkg/errors"
	"github.com/steelforge/erpauth/pkg/response"
)

type RoleHandler struct {
	svc *services.RoleService
}

func NewRoleHandler(svc *services.RoleService) (*RoleHandler, error) {
	if svc == nil {
		return nil, errors.New("role handler: service is required")
	}
	return &RoleHandler{svc: svc}, nil
}

// GET /api/roles
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.svc.ListRoles(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// GET /api/roles/:id
func (h *RoleHandler) Get(c *gin.Context) {
	role, err := h.svc.GetRole(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// POST /api/roles
func (h *RoleHandler) Define(c *gin.Context) {
	var body struct {
		Name        string `json:"name" validate:"required,min=2,max=100"`
		Description string `json:"description" validate:"max=500"`
		IsSystem    bool   `json:"is_system"`
	}
	if !bindAndValidate(c, &body) {
		return
	}
	role, err := h.svc.DefineRole(requestContext(c), services.DefineRoleInput{
		Name:        body.Name,
		Description: body.Description,
		IsSystem:    body.IsSystem,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// PATCH /api/roles/:id
func (h *RoleHandler) Update(c *gin.Context) {
	var body struct {
		Name        string `json:"name" validate:"omitempty,min=2,max=100"`
		Description string `json:"description" validate:"max=500"`
	}
	if !bindAndValidate(c, &body) {
		return
	}
	role, err := h.svc.UpdateRole(requestContext(c), c.Param("id"), services.UpdateRoleInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// DELETE /api/roles/:id
func (h *RoleHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteRole(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/roles/:id/permissions
func (h *RoleHandler) Grant(c *gin.Context) {
	var body struct {
		PermissionID string `json:"permission_id" validate:"required"`
	}
	if !bindAndValidate(c, &body) {
		return
	}
	if err := h.svc.GrantPermission(requestContext(c), c.Param("id"), body.PermissionID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"granted": true})
}

// DELETE /api/roles/:id/permissions/:permissionId
func (h *RoleHandler) Revoke(c *gin.Context) {
	permissionID := c.Param("permissionId")
	if permissionID == "" {
		response.Error(c, appErrors.NewBadRequest("permission id is required"))
		return
	}
	if err := h.svc.RevokePermission(requestContext(c), c.Param("id"), permissionID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/roles/:id/effective
func (h *RoleHandler) Effective(c *gin.Context) {
	grants, err := h.svc.EffectivePermissions(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, grants)
}
