package database

import (
	"gorm.io/gorm"

	"github.com/steelforge/erpauth/internal/models"
)

// AutoMigrate creates or updates the database schema for all models. The
// composite unique indexes on permissions, role names, and assignment scopes
// are the concurrency-safety mechanism for every upsert in the engine.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Permission{},
		&models.Role{},
		&models.Branch{},
		&models.UserRoleAssignment{},
		&models.AuditLog{},
		&models.CacheEntry{},
	)
}
