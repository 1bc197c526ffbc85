// Package directory defines the storage contract the reconciliation engine
// uses to read and write the local directory. It intentionally knows
// nothing about IdP snapshots or reconciliation phases — those live in
// internal/reconcile — so the same Store can back production (GORM) and
// tests (an in-memory fake) without either implementation depending on
// the other's package.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/lariatlabs/dirsync/internal/db/models"
)

// ErrTeamNotFound is returned by FindTeam when no team matches the id.
var ErrTeamNotFound = errors.New("team not found")

// ErrAuthProviderNotFound is returned by FindAuthProvider when no binding matches the id.
var ErrAuthProviderNotFound = errors.New("authentication provider not found")

// ErrGroupNotFound is returned by the group lookups when nothing matches.
var ErrGroupNotFound = errors.New("group not found")

// ErrUserNotFound is returned by FindUserByEmailCI when no user matches.
var ErrUserNotFound = errors.New("user not found")

// ErrRoleNotFound is returned by FindRoleByName when no role matches.
var ErrRoleNotFound = errors.New("role not found")

// AuthWithUser is a UserAuthentication joined with its owning User, the
// shape Phase 1 of reconciliation iterates over.
type AuthWithUser struct {
	Auth models.UserAuthentication
	User models.User
}

// UserAttrs is the subset of User fields the reconciliation engine may
// overwrite. Zero-valued fields are left untouched by UpdateUser except
// where explicitly noted.
type UserAttrs struct {
	Name      string
	Email     string
	AvatarURL string
}

// Store is the contract the reconciliation engine depends on. Every
// mutating method that documents "scoped transaction" must be atomic with
// respect to any other method call it performs internally — callers pass
// a context so a Store backed by a real database can bind the whole
// mutation to one SQL transaction.
type Store interface {
	// FindTeam returns the team with the given id, or ErrTeamNotFound.
	FindTeam(ctx context.Context, id string) (*models.Team, error)

	// FindAuthProvider returns the binding with the given id, or ErrAuthProviderNotFound.
	FindAuthProvider(ctx context.Context, id string) (*models.AuthenticationProvider, error)

	// FindGroupByIDInTeam returns the group with the given id scoped to teamID, or ErrGroupNotFound.
	FindGroupByIDInTeam(ctx context.Context, teamID string, groupID uint) (*models.Group, error)

	// FindGroupByNameInTeam returns the group with the given name scoped to teamID, or ErrGroupNotFound.
	FindGroupByNameInTeam(ctx context.Context, teamID, name string) (*models.Group, error)

	// FindUserByEmailCI returns the user matching email case-insensitively
	// within teamID, or ErrUserNotFound.
	FindUserByEmailCI(ctx context.Context, teamID, email string) (*models.User, error)

	// FindRoleByName returns the role with the given name, or ErrRoleNotFound.
	FindRoleByName(ctx context.Context, name string) (*models.Role, error)

	// FindAuthenticationsByProvider returns every UserAuthentication for
	// authProviderID whose User is scoped to teamID, joined with that user.
	FindAuthenticationsByProvider(ctx context.Context, authProviderID, teamID string) ([]AuthWithUser, error)

	// UpdateUser applies attrs to the user with id userID. Empty string
	// fields in attrs are skipped: the stored value for that field is left
	// unchanged.
	UpdateUser(ctx context.Context, userID string, attrs UserAttrs) error

	// SuspendUser sets SuspendedAt to now and SuspendedByID to suspendedByID
	// (nil for a system action) on the user with id userID.
	SuspendUser(ctx context.Context, userID string, suspendedByID *string, now time.Time) error

	// ClearSuspension clears SuspendedAt and SuspendedByID on the user with id userID.
	ClearSuspension(ctx context.Context, userID string) error

	// CreateUser inserts a new user and returns its generated id.
	CreateUser(ctx context.Context, user *models.User) (string, error)

	// CreateAuthentication inserts a new UserAuthentication row.
	CreateAuthentication(ctx context.Context, auth *models.UserAuthentication) error

	// CreateGroupMembership inserts a new UserGroup row with the given permission.
	CreateGroupMembership(ctx context.Context, userID string, groupID uint, permission models.GroupPermission) error

	// WithTransaction runs fn against a Store bound to a single atomic
	// unit of work, guaranteeing release (commit or rollback) on every
	// exit path including panics propagated from fn.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
