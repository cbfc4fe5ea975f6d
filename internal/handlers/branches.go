package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steelforge/erpauth/internal/services"
	"github.com/steelforge/erpauth/pkg/response"
)

type BranchHandler struct {
	svc *services.BranchService
}

func NewBranchHandler(svc *services.BranchService) (*BranchHandler, error) {
	if svc == nil {
		return nil, errors.New("branch handler: service is required")
	}
	return &BranchHandler{svc: svc}, nil
}

// GET /api/branches
func (h *BranchHandler) List(c *gin.Context) {
	branches, err := h.svc.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, branches)
}

// GET /api/branches/:id
func (h *BranchHandler) Get(c *gin.Context) {
	branch, err := h.svc.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, branch)
}

// POST /api/branches
func (h *BranchHandler) Define(c *gin.Context) {
	var body struct {
		Code        string         `json:"code" validate:"required,min=2,max=20"`
		Name        string         `json:"name" validate:"required,max=200"`
		AddressLine string         `json:"address_line"`
		City        string         `json:"city"`
		State       string         `json:"state"`
		PostalCode  string         `json:"postal_code"`
		Country     string         `json:"country"`
		Metadata    map[string]any `json:"metadata"`
	}
	if !bindAndValidate(c, &body) {
		return
	}
	branch, err := h.svc.Define(requestContext(c), services.DefineBranchInput{
		Code:        body.Code,
		Name:        body.Name,
		AddressLine: body.AddressLine,
		City:        body.City,
		State:       body.State,
		PostalCode:  body.PostalCode,
		Country:     body.Country,
		Metadata:    body.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, branch)
}
