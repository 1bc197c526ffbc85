package models

import "time"

// UserAuthentication links a User to an AuthenticationProvider by the
// IdP-assigned external subject id (providerId). A User has at most one
// UserAuthentication per AuthenticationProvider, and no two
// UserAuthentication rows for the same AuthenticationProvider share a
// providerId.
type UserAuthentication struct {
	// ID is the stable identifier for the authentication record.
	ID string `gorm:"primaryKey;size:36"`
	// AuthenticationProviderID is the binding this record links against.
	AuthenticationProviderID string `gorm:"size:36;not null;uniqueIndex:idx_provider_subject;uniqueIndex:idx_provider_user"`
	// AuthenticationProvider is the associated binding (loaded via foreign key).
	AuthenticationProvider AuthenticationProvider `gorm:"foreignKey:AuthenticationProviderID;constraint:OnDelete:CASCADE"`
	// ProviderID is the IdP-assigned external subject id for this user.
	ProviderID string `gorm:"size:255;not null;uniqueIndex:idx_provider_subject"`
	// UserID is the local User this record authenticates.
	UserID string `gorm:"size:36;not null;uniqueIndex:idx_provider_user"`
	// User is the associated user (loaded via foreign key).
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// Scopes holds space-separated OAuth2 scopes granted at link time.
	// Directory reconciliation always creates this empty; scope tracking is
	// only relevant to the interactive OIDC login flow, out of scope here.
	Scopes string `gorm:"size:255"`
	// CreatedAt is the timestamp this record was created. UserAuthentication
	// rows are never modified after creation.
	CreatedAt time.Time
}

// TableName specifies the database table name for the UserAuthentication model.
func (UserAuthentication) TableName() string {
	return "user_authentications"
}
