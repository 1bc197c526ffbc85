// Package login implements the Status API's JSON login endpoint: it trades a
// username/password (checked against local or LDAP) for a session cookie.
package login

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/lariatlabs/dirsync/internal/auth"
	"github.com/lariatlabs/dirsync/internal/config"
	"github.com/lariatlabs/dirsync/internal/db/models"
	"github.com/lariatlabs/dirsync/internal/web/handler"
	"github.com/lariatlabs/dirsync/internal/web/session"
)

// Path is the path to the login route.
const Path = "/login"

// credentials is the JSON body Post accepts.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	AuthType string `json:"auth_type"`
}

// userResponse is the JSON body returned on successful login.
type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg         *config.Config
	local       *auth.LocalProvider
	ldapAuth    *auth.LDAPProvider
	authService *auth.Service
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New("app, cfg or db is nil")
	}

	s.cfg = cfg
	s.local = auth.NewLocalProvider(db)
	s.authService = auth.NewService(db)

	if cfg.Auth.LDAP.Enabled {
		ldapProvider, err := auth.NewLDAPProvider(ldapConfigFromApp(cfg), db)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize ldap provider, ldap login unavailable")
		} else {
			s.ldapAuth = ldapProvider
		}
	}

	app.Route(Path, func(router fiber.Router) {
		router.Post(handler.RouterRootPath, s.Post)
	})

	return nil
}

// ldapConfigFromApp adapts the application's LDAP config section into the
// shape auth.NewLDAPProvider expects, filling in the operator team/role that
// LDAP-provisioned operators are scoped to.
func ldapConfigFromApp(cfg *config.Config) *auth.LDAPConfig {
	l := cfg.Auth.LDAP

	return &auth.LDAPConfig{
		Enabled:          l.Enabled,
		TeamID:           cfg.Auth.OperatorTeamID,
		DefaultRoleID:    cfg.Auth.OperatorDefaultRoleID,
		Host:             l.Host,
		Port:             l.Port,
		UseSSL:           l.UseSSL,
		UseTLS:           l.UseTLS,
		SkipVerify:       l.SkipVerify,
		BindDN:           l.BindDN,
		BindPassword:     l.BindPassword,
		BaseDN:           l.BaseDN,
		UserFilter:       l.UserFilter,
		GroupBaseDN:      l.GroupBaseDN,
		GroupFilter:      l.GroupFilter,
		GroupMemberAttr:  l.GroupMemberAttr,
		UsernameAttr:     l.UsernameAttr,
		EmailAttr:        l.EmailAttr,
		FirstNameAttr:    l.FirstNameAttr,
		LastNameAttr:     l.LastNameAttr,
		GroupNameAttr:    l.GroupNameAttr,
		Timeout:          l.Timeout,
		SearchAttributes: l.SearchAttributes,
	}
}

// pickAuthType resolves which authentication backend to use, defaulting to
// whichever backend is enabled when the caller doesn't request one.
func (s *Service) pickAuthType(requested string) (string, error) {
	switch requested {
	case "local":
		if !s.cfg.Auth.LocalDB.Enabled {
			return "", ErrLocalAuthDisabled
		}

		return "local", nil
	case "ldap":
		if !s.cfg.Auth.LDAP.Enabled || s.ldapAuth == nil {
			return "", ErrLDAPAuthDisabled
		}

		return "ldap", nil
	case "":
		if s.cfg.Auth.LocalDB.Enabled {
			return "local", nil
		}

		if s.cfg.Auth.LDAP.Enabled {
			return "ldap", nil
		}

		return "", ErrNoAuthMethod
	default:
		return "", ErrInvalidAuthMethod
	}
}

// authenticate runs the chosen backend against the given credentials.
func (s *Service) authenticate(authType, username, password string) (*models.User, error) {
	switch authType {
	case "local":
		user, err := s.local.Authenticate(username, password)
		if err != nil {
			return nil, ErrInvalidCredentials
		}

		return user, nil
	case "ldap":
		user, groups, err := s.ldapAuth.Authenticate(username, password)
		if err != nil {
			return nil, ErrInvalidCredentials
		}

		if err := s.authService.SyncUserGroups(user.ID, user.TeamID, groups, models.GroupSourceLDAP); err != nil {
			log.Error().Err(err).Str("username", username).Msg("failed to sync LDAP group memberships")
		}

		return user, nil
	default:
		return nil, ErrInvalidAuthMethod
	}
}

// Post handles a login attempt and, on success, sets a session cookie.
func (s *Service) Post(c *fiber.Ctx) error {
	var creds credentials

	if err := c.BodyParser(&creds); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidFormData.Error()})
	}

	authType, err := s.pickAuthType(creds.AuthType)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := s.authenticate(authType, creds.Username, creds.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session ID")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrInternalServerError.Error()})
	}

	userSession := &session.Data{User: *user}

	if err := userSession.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrInternalServerError.Error()})
	}

	cookieSettings := &fiber.Cookie{
		Name:     "session",
		Value:    sessionID,
		MaxAge:   int(s.cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if s.cfg.DevMode {
		cookieSettings.Secure = false
	}

	c.Cookie(cookieSettings)

	return c.Status(fiber.StatusOK).JSON(userResponse{ID: user.ID, Username: user.Username, Email: user.Email})
}
