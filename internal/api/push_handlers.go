package api

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"devnotify/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SubscribePushHandler registers the caller's push endpoint. Registering the
// same endpoint again updates its keys instead of adding a second row.
func SubscribePushHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var sub models.PushSubscription
		if err := c.BodyParser(&sub); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Missing subscription fields")
		}

		_, err := db.Exec(
			`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth`,
			userID, sub.Endpoint, sub.P256dh, sub.Auth,
		)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{"success": true, "userId": userID})
	}
}

func UnsubscribePushHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var body struct {
			Endpoint string `json:"endpoint"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		_, err := db.Exec(
			"DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?",
			userID, body.Endpoint,
		)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{"success": true})
	}
}

// SendTestPushHandler pushes a sample notification about the caller's next reminder.
func SendTestPushHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		if !IsWebPushConfigured() {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Push notifications not configured. Set VAPID_PUBLIC_KEY, VAPID_PRIVATE_KEY, and VAPID_SUBJECT environment variables.")
		}

		payload := PushPayload{
			Title: "DevNotify: test notification",
			Body:  "This is a test notification",
			Tag:   fmt.Sprintf("devnotify-test-%d", time.Now().Unix()),
		}

		var eventID int
		var eventName string
		err := db.QueryRow(
			"SELECT event_id, event_name FROM reminders WHERE user_id = ? ORDER BY reminder_time ASC LIMIT 1",
			userID,
		).Scan(&eventID, &eventName)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return err
		default:
			payload.Body = fmt.Sprintf("Next up: %s", eventName)
			payload.Data = map[string]interface{}{"eventId": eventID}
		}

		if err := SendPushToUser(db, userID, payload); err != nil {
			log.Printf("[push] test push failed for user %d: %v", userID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to send test notification: "+err.Error())
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Test notification sent",
		})
	}
}
