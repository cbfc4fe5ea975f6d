package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/steelforge/erpauth/internal/api"
	"github.com/steelforge/erpauth/internal/app"
	"github.com/steelforge/erpauth/internal/app/maintenance"
	iauth "github.com/steelforge/erpauth/internal/auth"
	"github.com/steelforge/erpauth/internal/authz"
	"github.com/steelforge/erpauth/internal/cache"
	"github.com/steelforge/erpauth/internal/database"
	"github.com/steelforge/erpauth/internal/seed"
	"github.com/steelforge/erpauth/internal/services"
	"github.com/steelforge/erpauth/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Redis   cache.Store
	Checker *authz.Checker
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, cache, checker, and HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Seed.Enabled {
		report, seedErr := seed.Run(ctx, stack.DB, seed.DefaultDefinition())
		if seedErr != nil {
			return nil, fmt.Errorf("seed catalog: %w", seedErr)
		}
		log.Info("seed applied",
			zap.Int("permissions_created", report.PermissionsCreated),
			zap.Int("roles_created", report.RolesCreated),
			zap.Int("branches_created", report.BranchesCreated),
			zap.Int("grants_created", report.GrantsCreated),
		)
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	var store cache.Store = dbStore
	if stack.Redis != nil {
		store = stack.Redis
	}

	stack.Checker, err = authz.NewChecker(stack.DB, authz.WithDecisionCache(store, cfg.Cache.DecisionTTL))
	if err != nil {
		return nil, fmt.Errorf("initialise checker: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Router, err = api.NewRouter(stack.DB, jwtSvc, stack.Checker, store, api.Options{
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	if cfg.Maintenance.Enabled {
		audit, auditErr := services.NewAuditService(stack.DB)
		if auditErr != nil {
			return nil, fmt.Errorf("initialise audit service: %w", auditErr)
		}
		stack.Cleaner = maintenance.NewCleaner(dbStore, audit,
			maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
			maintenance.WithCacheSchedule(cfg.Maintenance.Schedule),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	success = true
	return stack, nil
}

// Shutdown releases runtime resources in reverse dependency order.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if err := s.Cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if rc, ok := s.Redis.(*cache.RedisClient); ok && rc != nil {
		_ = rc.Close()
	}

	closeDatabase(s.DB, log)
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithComponent("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}
