package models

import "time"

// AuthenticationProvider is a (Team, provider-name) binding — the unit of
// work directory reconciliation operates on. "oidc" is the only provider
// name the scheduled driver currently reconciles; the model itself is
// provider-name agnostic.
type AuthenticationProvider struct {
	// ID is the stable identifier for the binding.
	ID string `gorm:"primaryKey;size:36"`
	// TeamID is the team this binding belongs to.
	TeamID string `gorm:"size:36;not null;uniqueIndex:idx_team_provider_name"`
	// Team is the associated team (loaded via foreign key).
	Team Team `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
	// Name is the provider name, e.g. "oidc".
	Name string `gorm:"size:50;not null;uniqueIndex:idx_team_provider_name"`
	// Enabled controls whether the scheduled driver reconciles this binding.
	Enabled bool `gorm:"not null;default:true"`
	// SyncDefaultGroupID is the group newly created users are added to on
	// first provisioning. Nil when no default group is configured.
	SyncDefaultGroupID *uint
	// SyncDefaultGroupName is used to resolve a default group by name when
	// SyncDefaultGroupID is unset. ID takes precedence over name.
	SyncDefaultGroupName string `gorm:"size:100"`
	// CreatedAt is the timestamp when the binding was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the binding was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the AuthenticationProvider model.
func (AuthenticationProvider) TableName() string {
	return "authentication_providers"
}
