package model

import (
	"strings"
	"time"
)

// Role is the single role an account holds.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleBranch Role = "BRANCH"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleBranch
}

// Account is an authenticated principal. Credentials live with the identity
// provider; only the profile used for authorization is stored here.
type Account struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"username"`
	Name      string    `gorm:"type:varchar(120);not null" json:"name"`
	Role      Role      `gorm:"type:varchar(20);not null" json:"role"` // ADMIN, BRANCH
	Branch    string    `gorm:"type:varchar(120)" json:"branch"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

func (a *Account) IsBranch() bool {
	return a != nil && a.Role == RoleBranch
}

// HasBranch reports whether a BRANCH account carries a usable branch name.
func (a *Account) HasBranch() bool {
	return a != nil && strings.TrimSpace(a.Branch) != ""
}

// OwnsBranch reports whether the account is the BRANCH owner of branch.
func (a *Account) OwnsBranch(branch string) bool {
	return a.IsBranch() && a.HasBranch() && a.Branch == branch
}
