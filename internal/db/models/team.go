package models

import "time"

// Team is the tenant boundary every User, AuthenticationProvider, and Group
// is scoped to. Reconciliation for one binding never crosses a Team.
type Team struct {
	// ID is the stable identifier for the team.
	ID string `gorm:"primaryKey;size:36"`
	// Name is the display name of the team.
	Name string `gorm:"size:100;not null"`
	// DefaultRoleID is the Role newly created users receive when provisioned
	// by directory sync. Falls back to RoleNameMember when zero.
	DefaultRoleID uint
	// DefaultRole is the associated role (loaded via foreign key).
	DefaultRole Role `gorm:"foreignKey:DefaultRoleID;references:ID;constraint:OnDelete:SET NULL"`
	// CreatedAt is the timestamp when the team was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the team was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Team model.
func (Team) TableName() string {
	return "teams"
}
