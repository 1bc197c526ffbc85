// Package memstore is an in-memory directory.Store used by the
// reconciliation engine's own tests, in the spirit of the teacher's
// sqlite-backed setting_test.go fixtures but without any database at all —
// the engine's contract is narrow enough that a map-backed fake is a
// faithful stand-in.
package memstore

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lariatlabs/dirsync/internal/db/models"
	"github.com/lariatlabs/dirsync/internal/directory"
)

// Store is an in-memory implementation of directory.Store.
type Store struct {
	mu sync.Mutex

	teams   map[string]models.Team
	authP   map[string]models.AuthenticationProvider
	groups  map[uint]models.Group
	users   map[string]models.User
	authns  map[string]models.UserAuthentication // keyed by ID
	members map[string]models.GroupPermission // key: userID+"/"+groupID
	roles   map[string]models.Role            // keyed by name
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		teams:   map[string]models.Team{},
		authP:   map[string]models.AuthenticationProvider{},
		groups:  map[uint]models.Group{},
		users:   map[string]models.User{},
		authns:  map[string]models.UserAuthentication{},
		members: map[string]models.GroupPermission{},
		roles:   map[string]models.Role{},
	}
}

// SeedRole inserts a role fixture.
func (s *Store) SeedRole(r models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[r.Name] = r
}

// SeedTeam inserts a team fixture.
func (s *Store) SeedTeam(t models.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[t.ID] = t
}

// SeedAuthProvider inserts an authentication-provider binding fixture.
func (s *Store) SeedAuthProvider(p models.AuthenticationProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authP[p.ID] = p
}

// SeedGroup inserts a group fixture.
func (s *Store) SeedGroup(g models.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
}

// SeedUser inserts a user fixture and returns its id.
func (s *Store) SeedUser(u models.User) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	s.users[u.ID] = u

	return u.ID
}

// SeedAuthentication links a fixture user to a fixture binding.
func (s *Store) SeedAuthentication(a models.UserAuthentication) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	s.authns[a.ID] = a

	return a.ID
}

// User returns a copy of the stored user by id, for test assertions.
func (s *Store) User(id string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]

	return u, ok
}

// UsersInTeam returns every user scoped to teamID, for test assertions.
func (s *Store) UsersInTeam(teamID string) []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.User, 0)

	for _, u := range s.users {
		if u.TeamID == teamID {
			out = append(out, u)
		}
	}

	return out
}

// AuthenticationsForUser returns every UserAuthentication row for userID, for test assertions.
func (s *Store) AuthenticationsForUser(userID string) []models.UserAuthentication {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.UserAuthentication, 0)

	for _, a := range s.authns {
		if a.UserID == userID {
			out = append(out, a)
		}
	}

	return out
}

// IsMember reports whether userID has any membership row in groupID, for test assertions.
func (s *Store) IsMember(userID string, groupID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.members[memberKey(userID, groupID)]

	return ok
}

// FindTeam implements directory.Store.
func (s *Store) FindTeam(_ context.Context, id string) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.teams[id]
	if !ok {
		return nil, directory.ErrTeamNotFound
	}

	return &t, nil
}

// FindAuthProvider implements directory.Store.
func (s *Store) FindAuthProvider(_ context.Context, id string) (*models.AuthenticationProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.authP[id]
	if !ok {
		return nil, directory.ErrAuthProviderNotFound
	}

	return &p, nil
}

// FindGroupByIDInTeam implements directory.Store.
func (s *Store) FindGroupByIDInTeam(_ context.Context, teamID string, groupID uint) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok || g.TeamID != teamID {
		return nil, directory.ErrGroupNotFound
	}

	return &g, nil
}

// FindGroupByNameInTeam implements directory.Store.
func (s *Store) FindGroupByNameInTeam(_ context.Context, teamID, name string) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.groups {
		if g.TeamID == teamID && g.Name == name {
			return &g, nil
		}
	}

	return nil, directory.ErrGroupNotFound
}

// FindUserByEmailCI implements directory.Store.
func (s *Store) FindUserByEmailCI(_ context.Context, teamID, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lower := strings.ToLower(email)

	for _, u := range s.users {
		if u.TeamID == teamID && strings.ToLower(u.Email) == lower {
			return &u, nil
		}
	}

	return nil, directory.ErrUserNotFound
}

// FindRoleByName implements directory.Store.
func (s *Store) FindRoleByName(_ context.Context, name string) (*models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[name]
	if !ok {
		return nil, directory.ErrRoleNotFound
	}

	return &r, nil
}

// FindAuthenticationsByProvider implements directory.Store.
func (s *Store) FindAuthenticationsByProvider(
	_ context.Context, authProviderID, teamID string,
) ([]directory.AuthWithUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]directory.AuthWithUser, 0)

	for _, a := range s.authns {
		if a.AuthenticationProviderID != authProviderID {
			continue
		}

		u, ok := s.users[a.UserID]
		if !ok || u.TeamID != teamID {
			continue
		}

		out = append(out, directory.AuthWithUser{Auth: a, User: u})
	}

	return out, nil
}

// UpdateUser implements directory.Store.
func (s *Store) UpdateUser(_ context.Context, userID string, attrs directory.UserAttrs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return directory.ErrUserNotFound
	}

	if attrs.Name != "" {
		u.Name = attrs.Name
	}

	if attrs.Email != "" {
		u.Email = attrs.Email
	}

	if attrs.AvatarURL != "" {
		u.AvatarURL = attrs.AvatarURL
	}

	s.users[userID] = u

	return nil
}

// SuspendUser implements directory.Store.
func (s *Store) SuspendUser(_ context.Context, userID string, suspendedByID *string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return directory.ErrUserNotFound
	}

	t := now
	u.SuspendedAt = &t
	u.SuspendedByID = suspendedByID
	s.users[userID] = u

	return nil
}

// ClearSuspension implements directory.Store.
func (s *Store) ClearSuspension(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return directory.ErrUserNotFound
	}

	u.SuspendedAt = nil
	u.SuspendedByID = nil
	s.users[userID] = u

	return nil
}

// CreateUser implements directory.Store.
func (s *Store) CreateUser(_ context.Context, user *models.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	s.users[user.ID] = *user

	return user.ID, nil
}

// CreateAuthentication implements directory.Store.
func (s *Store) CreateAuthentication(_ context.Context, auth *models.UserAuthentication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if auth.ID == "" {
		auth.ID = uuid.NewString()
	}

	s.authns[auth.ID] = *auth

	return nil
}

// CreateGroupMembership implements directory.Store.
func (s *Store) CreateGroupMembership(
	_ context.Context, userID string, groupID uint, permission models.GroupPermission,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.members[memberKey(userID, groupID)] = permission

	return nil
}

// WithTransaction implements directory.Store. The in-memory store has no
// real transactions; it runs fn directly against itself, which is
// sufficient for engine tests since no fixture ever needs partial
// rollback to be observed.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx directory.Store) error) error {
	return fn(ctx, s)
}

func memberKey(userID string, groupID uint) string {
	return userID + "/" + strconv.FormatUint(uint64(groupID), 10)
}
