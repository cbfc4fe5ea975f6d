package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steelforge/erpauth/internal/services"
	appErrors "github.com/steelforge/erpauth/pkg/errors"
	"github.com/steelforge/erpauth/pkg/response"
)

type AssignmentHandler struct {
	svc *services.AssignmentService
}

func NewAssignmentHandler(svc *services.AssignmentService) (*AssignmentHandler, error) {
	if svc == nil {
		return nil, errors.New("assignment handler: service is required")
	}
	return &AssignmentHandler{svc: svc}, nil
}

// POST /api/assignments
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var body struct {
		UserID   string `json:"user_id" validate:"required"`
		RoleID   string `json:"role_id" validate:"required"`
		BranchID string `json:"branch_id"`
	}
	if !bindAndValidate(c, &body) {
		return
	}
	assignment, err := h.svc.Assign(requestContext(c), services.AssignInput{
		UserID:   body.UserID,
		RoleID:   body.RoleID,
		BranchID: body.BranchID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, assignment)
}

// DELETE /api/assignments
func (h *AssignmentHandler) Revoke(c *gin.Context) {
	var body struct {
		UserID   string `json:"user_id" validate:"required"`
		RoleID   string `json:"role_id" validate:"required"`
		BranchID string `json:"branch_id"`
	}
	if !bindAndValidate(c, &body) {
		return
	}
	if err := h.svc.Revoke(requestContext(c), services.AssignInput{
		UserID:   body.UserID,
		RoleID:   body.RoleID,
		BranchID: body.BranchID,
	}); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// DELETE /api/assignments/users/:userId removes every assignment the user
// holds, typically on offboarding.
func (h *AssignmentHandler) RevokeAllForUser(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		response.Error(c, appErrors.NewBadRequest("user id is required"))
		return
	}
	removed, err := h.svc.RevokeAllForUser(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": removed})
}

// GET /api/assignments/users/:userId
func (h *AssignmentHandler) ListForUser(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		response.Error(c, appErrors.NewBadRequest("user id is required"))
		return
	}
	assignments, err := h.svc.ListForUser(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, assignments)
}

// GET /api/assignments/users/:userId/roles?branch_id=...
func (h *AssignmentHandler) RolesFor(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		response.Error(c, appErrors.NewBadRequest("user id is required"))
		return
	}
	roles, err := h.svc.RolesFor(requestContext(c), userID, c.Query("branch_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}
