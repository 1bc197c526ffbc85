package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/lariatlabs/dirsync/internal/web/handler/login"
	"github.com/lariatlabs/dirsync/internal/web/handler/logout"
	"github.com/lariatlabs/dirsync/internal/web/session"
)

// Middleware is a Fiber middleware that requires a valid session for every
// route except the login route, the logout route and the liveness probe.
func Middleware(c *fiber.Ctx) error {
	if isPublicRoute(c) {
		return c.Next()
	}

	loginCookie := c.Cookies("session")
	if loginCookie == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	sessData := new(session.Data)
	if err := sessData.Read(loginCookie); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	if sessData.User.ID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	c.Locals("CurrentUser", sessData.User)

	return c.Next()
}

func isPublicRoute(c *fiber.Ctx) bool {
	originalURL := strings.ToLower(c.OriginalURL())

	return strings.HasPrefix(originalURL, login.Path) ||
		strings.HasPrefix(originalURL, logout.Path) ||
		originalURL == "/healthz"
}
