package daemon

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/lariatlabs/dirsync/internal/auth"
	"github.com/lariatlabs/dirsync/internal/config"
	"github.com/lariatlabs/dirsync/internal/db/models"
)

const (
	defaultTeamName = "Default"
	adminRoleName   = "admin"
	adminUsername   = "admin"
	adminPassword   = "changeme"
)

// seed seeds the RBAC scaffolding (a default team, the admin/member
// roles, and the sync.read permission) and a default admin operator the
// first time the daemon starts against an empty database. The member role
// is wired into the default team's DefaultRoleID so directory sync has a
// role to fall back to even without engine.createUser's own zero-fallback.
func seed(cfg *config.Config, db *gorm.DB) {
	adminRole := seedRole(db, adminRoleName, true)
	memberRole := seedRole(db, models.RoleNameMember, false)
	seedPermissions(db, adminRole)
	team := seedDefaultTeam(db, cfg, memberRole.ID)

	var count int64
	db.Model(&models.User{}).Count(&count)

	if count == 0 {
		user := &models.User{
			ID:         uuid.NewString(),
			TeamID:     team.ID,
			Active:     true,
			Username:   adminUsername,
			Email:      "admin@" + team.ID + ".local",
			Password:   models.HashPassword(adminPassword),
			Name:       "Administrator",
			RoleID:     adminRole.ID,
			AuthSource: models.AuthSourceLocal,
		}

		if err := db.Create(user).Error; err != nil {
			log.Error().Err(err).Msg("failed to seed default admin user")
		}
	}
}

func seedDefaultTeam(db *gorm.DB, cfg *config.Config, defaultRoleID uint) *models.Team {
	teamID := cfg.Auth.OperatorTeamID
	if teamID == "" {
		teamID = uuid.NewString()
	}

	team := models.Team{ID: teamID, Name: defaultTeamName, DefaultRoleID: defaultRoleID}

	if err := db.Where("id = ?", team.ID).FirstOrCreate(&team).Error; err != nil {
		log.Error().Err(err).Msg("failed to seed default team")
	}

	return &team
}

func seedRole(db *gorm.DB, name string, isSystem bool) *models.Role {
	role := models.Role{Name: name, IsSystem: isSystem}

	if err := db.Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
		log.Error().Err(err).Str("role", name).Msg("failed to seed role")
	}

	return &role
}

// permissionSeeds are the permissions granted to the admin role at seed
// time. sync.read lets an admin operator read the Status API's sync report.
var permissionSeeds = []struct {
	name, resource, action string
}{
	{auth.PermSyncRead, "sync", "read"},
	{auth.PermAdminSettings, "admin", "settings"},
	{auth.PermAdminUsers, "admin", "users"},
	{auth.PermAdminRoles, "admin", "roles"},
	{auth.PermAdminGroups, "admin", "groups"},
	{auth.PermAdminGroupMappings, "admin", "group_mappings"},
	{auth.PermAdminProviders, "admin", "providers"},
}

func seedPermissions(db *gorm.DB, adminRole *models.Role) {
	for _, p := range permissionSeeds {
		perm := models.Permission{Name: p.name, Resource: p.resource, Action: p.action}

		if err := db.Where("name = ?", p.name).FirstOrCreate(&perm).Error; err != nil {
			log.Error().Err(err).Str("permission", p.name).Msg("failed to seed permission")
			continue
		}

		mapping := models.RolePermission{RoleID: adminRole.ID, PermissionID: perm.ID}
		if err := db.Where(&mapping).FirstOrCreate(&mapping).Error; err != nil {
			log.Error().Err(err).Str("permission", p.name).Msg("failed to grant permission to admin role")
		}
	}
}
