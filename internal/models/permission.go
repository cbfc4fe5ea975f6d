package models

// Wildcard is the sentinel stored in a permission column to match any value.
const Wildcard = "*"

// Permission is a catalog entry identified by its (module, action, resource)
// triple. Any column may hold the wildcard sentinel; an empty resource means
// the permission applies to the module/action pair without a specific entity.
type Permission struct {
	BaseModel

	Module      string `gorm:"not null;index;uniqueIndex:idx_permissions_triple" json:"module"`
	Action      string `gorm:"not null;uniqueIndex:idx_permissions_triple" json:"action"`
	Resource    string `gorm:"not null;default:'';uniqueIndex:idx_permissions_triple" json:"resource"`
	Description string `json:"description"`

	Roles []Role `gorm:"many2many:role_permissions;" json:"roles,omitempty"`
}
