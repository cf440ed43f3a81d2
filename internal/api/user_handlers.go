package api

import (
	"database/sql"

	"devnotify/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetCurrentUserHandler returns the authenticated user. Clients call it to
// check that a stored token is still valid.
func GetCurrentUserHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var user models.User
		err := db.QueryRow(
			"SELECT id, username, created_at FROM users WHERE id = ?",
			userID,
		).Scan(&user.ID, &user.Username, &user.CreatedAt)
		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusUnauthorized, "User no longer exists")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to get user profile")
		}

		return c.JSON(user)
	}
}
