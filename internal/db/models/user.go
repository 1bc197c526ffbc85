package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// AuthSource represents the authentication source for a user account.
// It indicates how the user authenticates (local database, LDAP, or OIDC).
type AuthSource string

const (
	// AuthSourceLocal indicates the user authenticates with a local database password.
	AuthSourceLocal AuthSource = "local"
	// AuthSourceOIDC indicates the user authenticates via OpenID Connect (OIDC).
	AuthSourceOIDC AuthSource = "oidc"
	// AuthSourceLDAP indicates the user authenticates via LDAP or Active Directory.
	AuthSourceLDAP AuthSource = "ldap"
)

// User represents a directory entry scoped to a Team. Users provisioned by
// directory sync have AuthSource oidc and are never assigned a local
// Password; users created for operator login (local or LDAP) are outside
// the sync engine's reach entirely.
type User struct {
	// ID is the unique identifier for the user.
	ID string `gorm:"primaryKey;size:36"`
	// TeamID scopes this user to a tenant. Reconciliation never reads or
	// writes a User whose TeamID differs from the binding under sync.
	TeamID string `gorm:"size:36;not null;uniqueIndex:idx_team_email"`
	// Team is the associated team (loaded via foreign key).
	Team Team `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
	// Active indicates whether the user account is active and can log in.
	Active bool
	// Username is the unique username for local/LDAP login. Sync-provisioned
	// users do not populate this field.
	Username string `gorm:"size:100"`
	// Email is the user's email address, case-insensitive unique within Team.
	// The stored casing is whatever the IdP (or an operator) last supplied.
	Email string `gorm:"size:255;not null;uniqueIndex:idx_team_email"`
	// Password is the Argon2id hashed password (only used for local authentication).
	Password string `gorm:"size:255"`
	// FirstName is the user's first or given name.
	FirstName string `gorm:"size:100"`
	// LastName is the user's last or family name.
	LastName string `gorm:"size:100"`
	// Name is the composed display name, as produced by the snapshot
	// normalizer or set directly for local/LDAP users.
	Name string `gorm:"size:255"`
	// AvatarURL is the user's avatar image URL. Directory sync only
	// overwrites this when it is empty or already IdP-sourced.
	AvatarURL string `gorm:"size:1024"`
	// RoleID is the ID of the role assigned to this user.
	RoleID uint `gorm:"column:role_id;not null"`
	// Role is the associated role (enforced with a foreign key constraint).
	Role Role `gorm:"foreignKey:RoleID;references:ID;constraint:OnDelete:RESTRICT,OnUpdate:CASCADE"`
	// AuthSource indicates how this user authenticates (local, oidc, or ldap).
	AuthSource AuthSource `gorm:"type:varchar(20);not null;default:'local'"`
	// ExternalID is the external identifier for LDAP (DN) users. OIDC
	// provisioning links users via UserAuthentication instead.
	ExternalID string `gorm:"size:255"`
	// SuspendedAt is non-nil once a user has been suspended, either by an
	// operator or by directory sync noticing the user left the IdP
	// snapshot. Nil means active. Suspension is terminal: the engine never
	// deletes a User.
	SuspendedAt *time.Time
	// SuspendedByID records who suspended the user. Nil when the engine
	// performed the suspension as a system action.
	SuspendedByID *string
	// LastActiveAt is the last time the user was seen active. Nil for a
	// user newly created by directory sync who has not yet logged in.
	LastActiveAt *time.Time
	// CreatedAt is the timestamp when the user was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the user was last updated (managed by GORM).
	UpdatedAt time.Time
	// DeletedAt is a nullable deletion timestamp. It is a plain *time.Time,
	// not gorm.DeletedAt, so GORM neither sets it nor filters on it.
	DeletedAt *time.Time
}

// TableName specifies the database table name for the User model.
func (User) TableName() string {
	return "users"
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
// This function should be used when creating or updating local user passwords.
// It uses the default Argon2id parameters for secure password hashing.
func HashPassword(password string) string {
	hashedPassword, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashedPassword
}

// VerifyPassword verifies a plaintext password against the user's stored hashed password.
// It uses constant-time comparison to prevent timing attacks.
// Returns true if the password matches, false otherwise.
func (u *User) VerifyPassword(password string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, u.Password)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}
