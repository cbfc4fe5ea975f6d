package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/steelforge/erpauth/internal/seed"
	"github.com/steelforge/erpauth/pkg/response"
)

type SeedHandler struct {
	db *gorm.DB
}

func NewSeedHandler(db *gorm.DB) (*SeedHandler, error) {
	if db == nil {
		return nil, errors.New("seed handler: db is required")
	}
	return &SeedHandler{db: db}, nil
}

// POST /api/admin/seed re-applies the default catalog, roles, and branches.
// Safe to call at any time; existing rows are left untouched.
func (h *SeedHandler) Run(c *gin.Context) {
	report, err := seed.Run(requestContext(c), h.db, seed.DefaultDefinition())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}
