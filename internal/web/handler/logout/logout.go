// Package logout implements the Status API's JSON logout endpoint.
package logout

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/lariatlabs/dirsync/internal/config"
	"github.com/lariatlabs/dirsync/internal/web/handler"
	"github.com/lariatlabs/dirsync/internal/web/session"
)

// Path is the path to the logout route.
const Path = "/logout"

// Service is the logout handler service.
type Service struct {
	handler.Service
}

// Handler is the logout handler.
var Handler = Service{}

// Init initializes the logout handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, _ *gorm.DB) error {
	if app == nil || cfg == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return nil
	}

	app.Post(Path, s.Logout)

	return nil
}

// Logout clears the caller's session and cookie.
func (s *Service) Logout(c *fiber.Ctx) error {
	sessionID := c.Cookies("session")
	if sessionID != "" {
		if err := session.Store.Storage.Delete(sessionID); err != nil {
			log.Error().Err(err).Msg("failed to delete session")
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     "session",
		Value:    "",
		MaxAge:   -1,
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return c.SendStatus(fiber.StatusNoContent)
}
