package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steelforge/erpauth/internal/authz"
	"github.com/steelforge/erpauth/pkg/response"
)

type AuthzHandler struct {
	checker *authz.Checker
}

func NewAuthzHandler(checker *authz.Checker) (*AuthzHandler, error) {
	if checker == nil {
		return nil, errors.New("authz handler: checker is required")
	}
	return &AuthzHandler{checker: checker}, nil
}

// POST /api/authz/check decides a permission question for an arbitrary user.
// Admin-only; callers probing their own access use /api/authz/my/check.
func (h *AuthzHandler) Check(c *gin.Context) {
	var body struct {
		UserID   string `json:"user_id" validate:"required"`
		BranchID string `json:"branch_id"`
		Module   string `json:"module" validate:"required"`
		Action   string `json:"action" validate:"required"`
		Resource string `json:"resource"`
	}
	if !bindAndValidate(c, &body) {
		return
	}
	decision, err := h.checker.Check(requestContext(c), body.UserID, body.BranchID, body.Module, body.Action, body.Resource)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, decision)
}

// POST /api/authz/my/check decides a permission question for the caller in the
// branch the request acts in.
func (h *AuthzHandler) CheckSelf(c *gin.Context) {
	var body struct {
		Module   string `json:"module" validate:"required"`
		Action   string `json:"action" validate:"required"`
		Resource string `json:"resource"`
	}
	if !bindAndValidate(c, &body) {
		return
	}
	userID, branchID := actingScope(c)
	decision, err := h.checker.Check(requestContext(c), userID, branchID, body.Module, body.Action, body.Resource)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, decision)
}

// GET /api/authz/my/grants lists the caller's effective grants in the acting branch.
func (h *AuthzHandler) MyGrants(c *gin.Context) {
	userID, branchID := actingScope(c)
	grants, err := h.checker.EffectiveGrants(requestContext(c), userID, branchID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, grants)
}

// GET /api/authz/users/:userId/grants lists a user's effective grants in a branch.
func (h *AuthzHandler) UserGrants(c *gin.Context) {
	grants, err := h.checker.EffectiveGrants(requestContext(c), c.Param("userId"), c.Query("branch_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, grants)
}

// POST /api/authz/invalidate drops cached decision state for the given users.
func (h *AuthzHandler) Invalidate(c *gin.Context) {
	var body struct {
		UserIDs []string `json:"user_ids" validate:"required,min=1"`
	}
	if !bindAndValidate(c, &body) {
		return
	}
	if err := h.checker.Invalidate(requestContext(c), body.UserIDs...); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"invalidated": len(body.UserIDs)})
}
