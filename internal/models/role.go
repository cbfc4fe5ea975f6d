package models

// Role is a named bundle of permissions. System roles are created by the
// bootstrap seed and cannot be deleted or renamed.
type Role struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`
	IsSystem    bool   `gorm:"default:false" json:"is_system"`

	Permissions []Permission         `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
	Assignments []UserRoleAssignment `gorm:"foreignKey:RoleID" json:"-"`
}
