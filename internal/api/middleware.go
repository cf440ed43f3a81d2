package api

import (
	"strings"

	"devnotify/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware accepts the token either in the x-auth-token header or as
// "Authorization: Bearer <token>".
func AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("x-auth-token")
		if token == "" {
			authHeader := c.Get("Authorization")
			if authHeader == "" {
				return fiber.NewError(fiber.StatusUnauthorized, "Missing authorization header")
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization header format")
			}
			token = parts[1]
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		c.Locals("userID", claims.UserID)
		c.Locals("username", claims.Username)

		return c.Next()
	}
}
