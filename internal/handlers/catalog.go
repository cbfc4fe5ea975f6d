package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/steelforge/erpauth/internal/models"
	"github.com/steelforge/erpauth/internal/services"
	"github.com/steelforge/erpauth/pkg/response"
)

type CatalogHandler struct {
	svc *services.CatalogService
}

func NewCatalogHandler(svc *services.CatalogService) (*CatalogHandler, error) {
	if svc == nil {
		return nil, errors.New("catalog handler: service is required")
	}
	return &CatalogHandler{svc: svc}, nil
}

// GET /api/permissions?module=INVENTORY
func (h *CatalogHandler) List(c *gin.Context) {
	module := strings.TrimSpace(c.Query("module"))

	var (
		perms []models.Permission
		err   error
	)
	if module != "" {
		perms, err = h.svc.ListByModule(requestContext(c), module)
	} else {
		perms, err = h.svc.List(requestContext(c))
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perms)
}

// POST /api/permissions
func (h *CatalogHandler) Define(c *gin.Context) {
	var body struct {
		Module      string `json:"module" validate:"required"`
		Action      string `json:"action" validate:"required"`
		Resource    string `json:"resource"`
		Description string `json:"description" validate:"max=500"`
	}
	if !bindAndValidate(c, &body) {
		return
	}
	perm, err := h.svc.Define(requestContext(c), services.DefineInput{
		Module:      body.Module,
		Action:      body.Action,
		Resource:    body.Resource,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, perm)
}

// GET /api/permissions/lookup?module=M&action=A&resource=R
func (h *CatalogHandler) Lookup(c *gin.Context) {
	perm, err := h.svc.Find(requestContext(c), c.Query("module"), c.Query("action"), c.Query("resource"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perm)
}

// DELETE /api/permissions/:id
func (h *CatalogHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
