package api

import (
	"database/sql"
	"log"
	"strings"
	"time"

	"devnotify/internal/auth"
	"devnotify/internal/models"

	"github.com/gofiber/fiber/v2"
)

const refreshCookieName = "refresh_token"

func setRefreshCookie(c *fiber.Ctx, value string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   auth.CookieSecure,
		SameSite: "Lax",
		Path:     "/api/auth",
	})
}

// issueTokens creates an access token, persists a fresh refresh token and
// sets it as a cookie.
func issueTokens(c *fiber.Ctx, db *sql.DB, user models.User, days int) (string, error) {
	accessToken, err := auth.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to generate token")
	}

	refreshToken, err := auth.GenerateRefreshToken(user.ID, user.Username, days)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to generate refresh token")
	}

	expiresAt := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	if err := StoreRefreshToken(db, user.ID, refreshToken, expiresAt, days); err != nil {
		log.Printf("Failed to store refresh token (user %d): %v", user.ID, err)
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to store refresh token")
	}
	setRefreshCookie(c, refreshToken, expiresAt)
	return accessToken, nil
}

func RegisterHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Username and password are required")
		}

		hashedPassword, err := auth.HashPassword(req.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to hash password")
		}

		result, err := db.Exec(
			"INSERT INTO users (username, password_hash) VALUES (?, ?)",
			req.Username, hashedPassword,
		)
		if err != nil {
			return fiber.NewError(fiber.StatusConflict, "Username already exists")
		}

		userID, _ := result.LastInsertId()
		user := models.User{
			ID:       int(userID),
			Username: req.Username,
		}

		token, err := issueTokens(c, db, user, auth.RefreshDays(req.Remember))
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(models.AuthResponse{
			Token: token,
			User:  user,
		})
	}
}

func LoginHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		var user models.User
		err := db.QueryRow(
			"SELECT id, username, password_hash, created_at FROM users WHERE username = ?",
			strings.TrimSpace(req.Username),
		).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)

		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid username or password")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Database error")
		}

		if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid username or password")
		}

		token, err := issueTokens(c, db, user, auth.RefreshDays(req.Remember))
		if err != nil {
			return err
		}

		return c.JSON(models.AuthResponse{
			Token: token,
			User:  user,
		})
	}
}

// RefreshTokenHandler generates a new access token from a valid refresh token cookie
func RefreshTokenHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		refreshToken := c.Cookies(refreshCookieName)
		if refreshToken == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Refresh token not found")
		}

		claims, err := auth.ValidateRefreshToken(refreshToken)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired refresh token")
		}

		dbUserID, ttlDays, err := ValidateRefreshTokenInDB(db, refreshToken)
		if err != nil {
			log.Printf("Refresh token DB validation failed: %v", err)
			return fiber.NewError(fiber.StatusUnauthorized, "Refresh token not valid")
		}
		if dbUserID != claims.UserID {
			return fiber.NewError(fiber.StatusUnauthorized, "Token user mismatch")
		}

		// Rotate: issue a new pair with the same TTL, then revoke the old refresh token.
		user := models.User{ID: claims.UserID, Username: claims.Username}
		token, err := issueTokens(c, db, user, ttlDays)
		if err != nil {
			return err
		}
		if err := RevokeRefreshToken(db, refreshToken); err != nil {
			log.Printf("Failed to revoke rotated refresh token (user %d): %v", claims.UserID, err)
		}

		return c.JSON(fiber.Map{
			"token": token,
		})
	}
}

// LogoutHandler revokes and clears the refresh token cookie
func LogoutHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if old := c.Cookies(refreshCookieName); old != "" {
			_ = RevokeRefreshToken(db, old) // best-effort
		}

		setRefreshCookie(c, "", time.Now().Add(-1*time.Hour))

		return c.JSON(fiber.Map{
			"message": "Logged out successfully",
		})
	}
}
