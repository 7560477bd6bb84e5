package entities

import "time"

// RoleID identifies a member's role. Only RoleAdministrator carries
// elevated capabilities.
type RoleID int

const (
	RoleAdministrator RoleID = 1
	RoleMember        RoleID = 2
)

// Valid reports whether r is a known role.
func (r RoleID) Valid() bool {
	return r == RoleAdministrator || r == RoleMember
}

func (r RoleID) String() string {
	switch r {
	case RoleAdministrator:
		return "administrator"
	case RoleMember:
		return "member"
	default:
		return "unknown"
	}
}

type Member struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FullName   string    `gorm:"size:256;not null" json:"name"`
	Email      string    `gorm:"uniqueIndex;size:254;not null" json:"email"`
	SecretHash string    `gorm:"size:255;not null" json:"-"`
	RoleID     RoleID    `gorm:"not null;default:2;index" json:"roleId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsAdministrator reports whether the member holds the administrator role.
func (m *Member) IsAdministrator() bool {
	return m.RoleID == RoleAdministrator
}
