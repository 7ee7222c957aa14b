package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/fundlink/fundlink/internal/pkg/env"
)

// AdminBasicAuth guards the admin API with HTTP basic auth. Credentials come
// from the environment; there is no local user store in this service.
func AdminBasicAuth() fiber.Handler {
	user := env.GetEnv("ADMIN_API_USER", "admin")
	password := env.GetEnv("ADMIN_API_PASSWORD", "")

	return basicauth.New(basicauth.Config{
		Users: map[string]string{
			user: password,
		},
		Unauthorized: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Admin credentials required"})
		},
	})
}
