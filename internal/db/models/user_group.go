package models

import "time"

// GroupPermission is the permission level a user holds within a group.
type GroupPermission string

const (
	// GroupPermissionMember is the default permission granted when
	// directory sync adds a newly created user to a binding's default group.
	GroupPermissionMember GroupPermission = "member"
	// GroupPermissionAdmin marks a group administrator, never assigned by
	// directory sync.
	GroupPermissionAdmin GroupPermission = "admin"
)

// UserGroup represents the many-to-many relationship between users and groups.
// This junction table allows users to belong to multiple groups, and groups to contain multiple users.
// For external auth sources (OIDC/LDAP), these memberships are automatically synchronized on login.
type UserGroup struct {
	// UserID is the ID of the user in this membership.
	UserID string `gorm:"primaryKey;column:user_id;size:36"`
	// GroupID is the ID of the group in this membership.
	GroupID uint `gorm:"primaryKey;column:group_id"`
	// User is the associated user (loaded via foreign key).
	// When a user is deleted, all their group memberships are automatically removed (CASCADE).
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// Group is the associated group (loaded via foreign key).
	// When a group is deleted, all user memberships in that group are automatically removed (CASCADE).
	Group Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	// Permission is this user's permission level within the group.
	Permission GroupPermission `gorm:"type:varchar(20);not null;default:'member'"`
	// CreatedAt is the timestamp when the user was added to the group (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the UserGroup model.
// This overrides GORM's default pluralized table naming.
func (UserGroup) TableName() string {
	return "user_groups"
}
