package api

import (
	"database/sql"
	"errors"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders errors as {"error": ..., "msg": ...}. The msg key is
// what older clients read.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"msg":   err.Error(),
	})
}

func SetupRoutes(app *fiber.App, db *sql.DB) {
	api := app.Group("/api")

	disableRegistration := strings.ToLower(os.Getenv("DISABLE_REGISTRATION")) == "true"

	api.Get("/config", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"disableRegistration": disableRegistration,
		})
	})

	// Auth routes
	auth := api.Group("/auth")
	if !disableRegistration {
		auth.Post("/register", RegisterHandler(db))
	}
	auth.Post("/login", LoginHandler(db))
	auth.Post("/refresh", RefreshTokenHandler(db))
	auth.Post("/logout", LogoutHandler(db))

	// VAPID public key endpoint (public - must be before protected routes for proper routing)
	api.Get("/push/vapid-public-key", VapidPublicKeyHandler())

	protected := api.Group("/", AuthMiddleware())

	users := protected.Group("/users")
	users.Get("/me", GetCurrentUserHandler(db))
	users.Get("/calendar.ics", ReminderCalendarHandler(db))

	reminders := users.Group("/reminders")
	reminders.Post("/", CreateReminderHandler(db))
	reminders.Get("/", ListRemindersHandler(db))
	reminders.Get("/:eventId", GetReminderHandler(db))
	reminders.Delete("/:eventId", DeleteReminderHandler(db))

	push := protected.Group("/push")
	push.Post("/subscribe", SubscribePushHandler(db))
	push.Delete("/unsubscribe", UnsubscribePushHandler(db))
	push.Post("/test", SendTestPushHandler(db))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
