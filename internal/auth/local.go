package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lariatlabs/dirsync/internal/db/models"
)

// LocalProvider handles local database authentication.
type LocalProvider struct {
	db *gorm.DB
}

const (
	whereIDAndAuthSource = "id = ? AND auth_source = ?"

	whereID = "id = ?"
)

// NewLocalProvider creates a new local authentication provider.
func NewLocalProvider(db *gorm.DB) *LocalProvider {
	return &LocalProvider{
		db: db,
	}
}

// Authenticate authenticates a user against the local database.
func (p *LocalProvider) Authenticate(username, password string) (*models.User, error) {
	var user models.User

	// Find user by username
	err := p.db.Where("username = ? AND auth_source = ?", username, models.AuthSourceLocal).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	// Check if user is active
	if !user.Active {
		return nil, ErrUserAccountDisabled
	}

	// Verify password
	if !user.VerifyPassword(password) {
		return nil, ErrInvalidPassword
	}

	// Update last login time
	now := time.Now()
	user.LastActiveAt = &now
	p.db.Save(&user)

	return &user, nil
}

// CreateUser creates a new local operator account, scoped to teamID.
func (p *LocalProvider) CreateUser(
	teamID, username, email, password, firstName, lastName string,
	roleID uint,
) (*models.User, error) {
	// Check if user already exists
	var existingUser models.User

	err := p.db.Where("team_id = ? AND (username = ? OR email = ?)", teamID, username, email).First(&existingUser).Error
	if err == nil {
		return nil, ErrUserNameOrEmailExists
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	// Hash password
	hashedPassword := models.HashPassword(password)

	// Create user
	user := models.User{
		ID:         uuid.NewString(),
		TeamID:     teamID,
		Active:     true,
		Username:   username,
		Email:      email,
		Password:   hashedPassword,
		FirstName:  firstName,
		LastName:   lastName,
		Name:       firstName + " " + lastName,
		RoleID:     roleID,
		AuthSource: models.AuthSourceLocal,
	}

	if err := p.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// UpdateUser updates an existing local user.
func (p *LocalProvider) UpdateUser(userID, email, firstName, lastName string, roleID uint) error {
	updates := map[string]interface{}{
		"email":      email,
		"first_name": firstName,
		"last_name":  lastName,
		"role_id":    roleID,
	}

	return p.db.Model(&models.User{}).
		Where(whereIDAndAuthSource, userID, models.AuthSourceLocal).
		Updates(updates).Error
}

// ChangePassword changes a user's password.
func (p *LocalProvider) ChangePassword(userID, oldPassword, newPassword string) error {
	var user models.User
	if err := p.db.Where(whereIDAndAuthSource, userID, models.AuthSourceLocal).
		First(&user).Error; err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	// Verify old password
	if !user.VerifyPassword(oldPassword) {
		return ErrInvalidOldPassword
	}

	// Hash new password
	hashedPassword := models.HashPassword(newPassword)

	// Update password
	return p.db.Model(&models.User{}).
		Where(whereID, userID).
		Update("password", hashedPassword).Error
}

// ResetPassword resets a user's password (admin function).
func (p *LocalProvider) ResetPassword(userID, newPassword string) error {
	hashedPassword := models.HashPassword(newPassword)

	return p.db.Model(&models.User{}).
		Where(whereIDAndAuthSource, userID, models.AuthSourceLocal).
		Update("password", hashedPassword).Error
}

// ActivateUser activates a user account.
func (p *LocalProvider) ActivateUser(userID string) error {
	return p.db.Model(&models.User{}).
		Where(whereID, userID).
		Update("active", true).Error
}

// DeactivateUser deactivates a user account.
func (p *LocalProvider) DeactivateUser(userID string) error {
	return p.db.Model(&models.User{}).
		Where(whereID, userID).
		Update("active", false).Error
}

// DeleteUser deletes a user row. models.User.DeletedAt is a plain nullable
// column, not gorm.DeletedAt, so GORM issues a hard delete.
func (p *LocalProvider) DeleteUser(userID string) error {
	return p.db.Delete(&models.User{}, whereID, userID).Error
}

// GetUserByID retrieves a user by ID.
func (p *LocalProvider) GetUserByID(userID string) (*models.User, error) {
	var user models.User
	if err := p.db.First(&user, whereID, userID).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (p *LocalProvider) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := p.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// ListUsers lists all users with optional filters.
func (p *LocalProvider) ListUsers(
	authSource models.AuthSource,
	active *bool,
	limit, offset int,
) ([]models.User, int64, error) {
	var users []models.User

	var total int64

	query := p.db.Model(&models.User{})

	if authSource != "" {
		query = query.Where("auth_source = ?", authSource)
	}

	if active != nil {
		query = query.Where("active = ?", *active)
	}

	// Get total count
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Get paginated results
	if err := query.Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}
