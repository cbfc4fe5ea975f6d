package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/steelforge/erpauth/internal/auth"
	"github.com/steelforge/erpauth/internal/authz"
	"github.com/steelforge/erpauth/internal/cache"
	"github.com/steelforge/erpauth/internal/handlers"
	"github.com/steelforge/erpauth/internal/middleware"
	"github.com/steelforge/erpauth/internal/seed"
	"github.com/steelforge/erpauth/internal/services"
)

// Options tunes router behaviour that is not derived from dependencies.
type Options struct {
	RateLimitPerMinute int
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
// The admin surface guards itself with decisions from the same checker it
// administers, using the ADMIN module catalog entries.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, checker *authz.Checker, store cache.Store, opts Options) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if checker == nil {
		return nil, fmt.Errorf("authorization checker must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	if opts.RateLimitPerMinute > 0 {
		rateStore := middleware.NewSharedRateStore(store)
		if rateStore == nil {
			rateStore = middleware.NewMemoryRateStore()
		}
		r.Use(middleware.RateLimit(rateStore, opts.RateLimitPerMinute, time.Minute))
	}

	// Public endpoints
	r.GET("/health", handlers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Services shared by the admin surface
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	catalogSvc, err := services.NewCatalogService(db, audit)
	if err != nil {
		return nil, err
	}
	roleSvc, err := services.NewRoleService(db, audit, checker)
	if err != nil {
		return nil, err
	}
	assignmentSvc, err := services.NewAssignmentService(db, audit, checker)
	if err != nil {
		return nil, err
	}
	branchSvc, err := services.NewBranchService(db, audit)
	if err != nil {
		return nil, err
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	guard := func(action, resource string) gin.HandlerFunc {
		return middleware.RequirePermission(checker, seed.ModuleAdmin, action, resource)
	}

	// Decisions
	authzHandler, err := handlers.NewAuthzHandler(checker)
	if err != nil {
		return nil, err
	}
	az := api.Group("/authz")
	{
		az.POST("/my/check", authzHandler.CheckSelf)
		az.GET("/my/grants", authzHandler.MyGrants)
		az.POST("/check", guard(seed.ActionRead, "ROLE"), authzHandler.Check)
		az.GET("/users/:userId/grants", guard(seed.ActionRead, "ROLE"), authzHandler.UserGrants)
		az.POST("/invalidate", guard(seed.ActionUpdate, "ROLE"), authzHandler.Invalidate)
	}

	// Roles
	roleHandler, err := handlers.NewRoleHandler(roleSvc)
	if err != nil {
		return nil, err
	}
	roles := api.Group("/roles")
	{
		roles.GET("", guard(seed.ActionRead, "ROLE"), roleHandler.List)
		roles.GET("/:id", guard(seed.ActionRead, "ROLE"), roleHandler.Get)
		roles.GET("/:id/effective", guard(seed.ActionRead, "ROLE"), roleHandler.Effective)
		roles.POST("", guard(seed.ActionCreate, "ROLE"), roleHandler.Define)
		roles.PATCH("/:id", guard(seed.ActionUpdate, "ROLE"), roleHandler.Update)
		roles.DELETE("/:id", guard(seed.ActionDelete, "ROLE"), roleHandler.Delete)
		roles.POST("/:id/permissions", guard(seed.ActionUpdate, "ROLE"), roleHandler.Grant)
		roles.DELETE("/:id/permissions/:permissionId", guard(seed.ActionUpdate, "ROLE"), roleHandler.Revoke)
	}

	// Permission catalog
	catalogHandler, err := handlers.NewCatalogHandler(catalogSvc)
	if err != nil {
		return nil, err
	}
	perms := api.Group("/permissions")
	{
		perms.GET("", guard(seed.ActionRead, "PERMISSION"), catalogHandler.List)
		perms.GET("/lookup", guard(seed.ActionRead, "PERMISSION"), catalogHandler.Lookup)
		perms.POST("", guard(seed.ActionCreate, "PERMISSION"), catalogHandler.Define)
		perms.DELETE("/:id", guard(seed.ActionDelete, "PERMISSION"), catalogHandler.Delete)
	}

	// Assignments
	assignmentHandler, err := handlers.NewAssignmentHandler(assignmentSvc)
	if err != nil {
		return nil, err
	}
	assignments := api.Group("/assignments")
	{
		assignments.POST("", guard(seed.ActionAssign, "ROLE"), assignmentHandler.Assign)
		assignments.DELETE("", guard(seed.ActionAssign, "ROLE"), assignmentHandler.Revoke)
		assignments.DELETE("/users/:userId", guard(seed.ActionAssign, "ROLE"), assignmentHandler.RevokeAllForUser)
		assignments.GET("/users/:userId", guard(seed.ActionRead, "ROLE"), assignmentHandler.ListForUser)
		assignments.GET("/users/:userId/roles", guard(seed.ActionRead, "ROLE"), assignmentHandler.RolesFor)
	}

	// Branches
	branchHandler, err := handlers.NewBranchHandler(branchSvc)
	if err != nil {
		return nil, err
	}
	branches := api.Group("/branches")
	{
		branches.GET("", guard(seed.ActionRead, "BRANCH"), branchHandler.List)
		branches.GET("/:id", guard(seed.ActionRead, "BRANCH"), branchHandler.Get)
		branches.POST("", guard(seed.ActionCreate, "BRANCH"), branchHandler.Define)
	}

	// Audit
	auditHandler, err := handlers.NewAuditHandler(audit)
	if err != nil {
		return nil, err
	}
	api.GET("/audit", guard(seed.ActionRead, "AUDIT_LOG"), auditHandler.List)
	api.GET("/audit/export", guard(seed.ActionRead, "AUDIT_LOG"), auditHandler.Export)

	// Admin maintenance
	seedHandler, err := handlers.NewSeedHandler(db)
	if err != nil {
		return nil, err
	}
	api.POST("/admin/seed", guard(seed.ActionCreate, "PERMISSION"), seedHandler.Run)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
