package models

// GlobalScope is stored in BranchID for assignments that apply to every
// branch. Using an empty string instead of SQL NULL keeps the composite
// unique index effective on all supported databases (NULLs never compare
// equal, which would allow duplicate global assignments).
const GlobalScope = ""

// UserRoleAssignment links an externally-owned user to a role, optionally
// scoped to a single branch. The (user, role, scope) triple is unique.
type UserRoleAssignment struct {
	BaseModel

	UserID   string `gorm:"not null;index;uniqueIndex:idx_assignments_scope" json:"user_id"`
	RoleID   string `gorm:"not null;type:uuid;uniqueIndex:idx_assignments_scope" json:"role_id"`
	BranchID string `gorm:"not null;default:'';index;uniqueIndex:idx_assignments_scope" json:"branch_id"`

	Role Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

// IsGlobal reports whether the assignment applies across all branches.
func (a *UserRoleAssignment) IsGlobal() bool {
	return a.BranchID == GlobalScope
}
