// Package gormstore implements directory.Store on top of GORM, following
// the query and error-wrapping idiom of the teacher's
// internal/db/controller/setting package and the
// db.Transaction(func(tx *gorm.DB) error {...}) idiom of
// internal/auth.Service.SyncUserGroups.
package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lariatlabs/dirsync/internal/db/models"
	"github.com/lariatlabs/dirsync/internal/directory"
)

// Store is a GORM-backed directory.Store.
type Store struct {
	db *gorm.DB
}

// New wraps a *gorm.DB as a directory.Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindTeam implements directory.Store.
func (s *Store) FindTeam(ctx context.Context, id string) (*models.Team, error) {
	var t models.Team

	err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, directory.ErrTeamNotFound
	}

	if err != nil {
		return nil, err
	}

	return &t, nil
}

// FindAuthProvider implements directory.Store.
func (s *Store) FindAuthProvider(ctx context.Context, id string) (*models.AuthenticationProvider, error) {
	var p models.AuthenticationProvider

	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, directory.ErrAuthProviderNotFound
	}

	if err != nil {
		return nil, err
	}

	return &p, nil
}

// FindGroupByIDInTeam implements directory.Store.
func (s *Store) FindGroupByIDInTeam(ctx context.Context, teamID string, groupID uint) (*models.Group, error) {
	var g models.Group

	err := s.db.WithContext(ctx).
		Where("id = ? AND team_id = ?", groupID, teamID).
		First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, directory.ErrGroupNotFound
	}

	if err != nil {
		return nil, err
	}

	return &g, nil
}

// FindGroupByNameInTeam implements directory.Store.
func (s *Store) FindGroupByNameInTeam(ctx context.Context, teamID, name string) (*models.Group, error) {
	var g models.Group

	err := s.db.WithContext(ctx).
		Where("team_id = ? AND name = ?", teamID, name).
		First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, directory.ErrGroupNotFound
	}

	if err != nil {
		return nil, err
	}

	return &g, nil
}

// FindUserByEmailCI implements directory.Store.
func (s *Store) FindUserByEmailCI(ctx context.Context, teamID, email string) (*models.User, error) {
	var u models.User

	err := s.db.WithContext(ctx).
		Where("team_id = ? AND LOWER(email) = LOWER(?)", teamID, email).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, directory.ErrUserNotFound
	}

	if err != nil {
		return nil, err
	}

	return &u, nil
}

// FindRoleByName implements directory.Store.
func (s *Store) FindRoleByName(ctx context.Context, name string) (*models.Role, error) {
	var r models.Role

	err := s.db.WithContext(ctx).Where("name = ?", name).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, directory.ErrRoleNotFound
	}

	if err != nil {
		return nil, err
	}

	return &r, nil
}

// FindAuthenticationsByProvider implements directory.Store.
func (s *Store) FindAuthenticationsByProvider(
	ctx context.Context, authProviderID, teamID string,
) ([]directory.AuthWithUser, error) {
	var rows []models.UserAuthentication

	err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = user_authentications.user_id").
		Where("user_authentications.authentication_provider_id = ? AND users.team_id = ?", authProviderID, teamID).
		Preload("User").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]directory.AuthWithUser, 0, len(rows))
	for _, r := range rows {
		out = append(out, directory.AuthWithUser{Auth: r, User: r.User})
	}

	return out, nil
}

// UpdateUser implements directory.Store.
func (s *Store) UpdateUser(ctx context.Context, userID string, attrs directory.UserAttrs) error {
	updates := map[string]any{}

	if attrs.Name != "" {
		updates["name"] = attrs.Name
	}

	if attrs.Email != "" {
		updates["email"] = attrs.Email
	}

	if attrs.AvatarURL != "" {
		updates["avatar_url"] = attrs.AvatarURL
	}

	if len(updates) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error
}

// SuspendUser implements directory.Store.
func (s *Store) SuspendUser(ctx context.Context, userID string, suspendedByID *string, now time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"suspended_at":    now,
		"suspended_by_id": suspendedByID,
	}).Error
}

// ClearSuspension implements directory.Store.
func (s *Store) ClearSuspension(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"suspended_at":    nil,
		"suspended_by_id": nil,
	}).Error
}

// CreateUser implements directory.Store.
func (s *Store) CreateUser(ctx context.Context, user *models.User) (string, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return "", err
	}

	return user.ID, nil
}

// CreateAuthentication implements directory.Store.
func (s *Store) CreateAuthentication(ctx context.Context, auth *models.UserAuthentication) error {
	if auth.ID == "" {
		auth.ID = uuid.NewString()
	}

	return s.db.WithContext(ctx).Create(auth).Error
}

// CreateGroupMembership implements directory.Store.
func (s *Store) CreateGroupMembership(
	ctx context.Context, userID string, groupID uint, permission models.GroupPermission,
) error {
	return s.db.WithContext(ctx).Create(&models.UserGroup{
		UserID:     userID,
		GroupID:    groupID,
		Permission: permission,
	}).Error
}

// ListEnabledBindings returns every enabled AuthenticationProvider with the
// given provider name, across all teams. It is not part of directory.Store
// — the engine never enumerates bindings, only the scheduled driver does —
// so it lives as a plain exported method the scheduler package depends on
// through its own narrow interface.
func (s *Store) ListEnabledBindings(ctx context.Context, providerName string) ([]models.AuthenticationProvider, error) {
	var providers []models.AuthenticationProvider

	err := s.db.WithContext(ctx).
		Where("name = ? AND enabled = ?", providerName, true).
		Find(&providers).Error
	if err != nil {
		return nil, err
	}

	return providers, nil
}

// SaveSyncRun persists one SyncRun record. Like ListEnabledBindings this is
// scheduler-facing, not part of directory.Store: the engine's SyncReport is
// its only return channel, and turning that into a SyncRun row is the
// driver's job, never the engine's.
func (s *Store) SaveSyncRun(ctx context.Context, run *models.SyncRun) error {
	return s.db.WithContext(ctx).Create(run).Error
}

// WithTransaction implements directory.Store, mirroring
// internal/auth.Service.SyncUserGroups's use of db.Transaction to bind an
// entire per-user mutation to one atomic unit of work with guaranteed
// release on every exit path, including a panic inside fn.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx directory.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Store{db: tx})
	})
}
