// Package auth provides session-authentication middleware for the Status API.
//
// The middleware validates the session cookie on every request except the
// login route, the logout route, and the liveness probe, returning a JSON
// 401 for any request that lacks a valid session. On success it adds the
// authenticated user to fiber.Locals for downstream handlers.
//
// Usage:
//
//	app.Use(authmiddleware.Middleware)
package auth
