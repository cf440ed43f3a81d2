package api

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/gofiber/fiber/v2"
)

// PushPayload represents the notification payload sent to clients
type PushPayload struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Icon  string                 `json:"icon,omitempty"`
	Badge string                 `json:"badge,omitempty"`
	Tag   string                 `json:"tag,omitempty"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// sendNotification is swapped out in tests.
var sendNotification = webpush.SendNotification

// GetVapidOptions returns configured VAPID options from environment
func GetVapidOptions() *webpush.Options {
	return &webpush.Options{
		Subscriber:      os.Getenv("VAPID_SUBJECT"),
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		TTL:             30,
	}
}

// IsWebPushConfigured checks if VAPID keys are configured
func IsWebPushConfigured() bool {
	return os.Getenv("VAPID_PUBLIC_KEY") != "" &&
		os.Getenv("VAPID_PRIVATE_KEY") != "" &&
		os.Getenv("VAPID_SUBJECT") != ""
}

func userSubscriptions(db *sql.DB, userID int) ([]*webpush.Subscription, error) {
	rows, err := db.Query(
		"SELECT endpoint, p256dh, auth FROM push_subscriptions WHERE user_id = ?",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*webpush.Subscription
	for rows.Next() {
		var endpoint, p256dh, auth string
		if err := rows.Scan(&endpoint, &p256dh, &auth); err != nil {
			return nil, err
		}
		subs = append(subs, &webpush.Subscription{
			Endpoint: endpoint,
			Keys:     webpush.Keys{P256dh: p256dh, Auth: auth},
		})
	}
	return subs, rows.Err()
}

func shortEndpoint(endpoint string) string {
	if len(endpoint) > 50 {
		return endpoint[:50] + "..."
	}
	return endpoint
}

// SendPushToUser sends a push notification to all subscriptions for a user.
// Subscriptions the push service reports as gone (404/410) or bound to other
// VAPID keys (403) are deleted so the client re-subscribes.
func SendPushToUser(db *sql.DB, userID int, payload PushPayload) error {
	if !IsWebPushConfigured() {
		log.Println("[push] web push not configured - skipping notification")
		return nil
	}

	subs, err := userSubscriptions(db, userID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return fmt.Errorf("no push subscriptions found for user %d", userID)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	options := GetVapidOptions()
	successCount := 0
	failCount := 0

	for _, sub := range subs {
		resp, err := sendNotification(payloadJSON, sub, options)
		if err != nil {
			log.Printf("[push] failed to send to %s: %v", shortEndpoint(sub.Endpoint), err)
			failCount++
			if resp != nil && (resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound) {
				pruneSubscription(db, sub.Endpoint, "expired")
			}
			continue
		}

		if resp != nil {
			if resp.StatusCode >= 400 {
				body, _ := io.ReadAll(resp.Body)
				log.Printf("[push] push service error response (%d): %s", resp.StatusCode, string(body))
			}
			resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusGone, http.StatusNotFound:
				pruneSubscription(db, sub.Endpoint, "expired")
				failCount++
				continue
			case http.StatusForbidden:
				pruneSubscription(db, sub.Endpoint, "mismatched VAPID keys")
				failCount++
				continue
			}
		}

		successCount++
	}

	log.Printf("[push] summary for user %d: subscriptions=%d, success=%d, failed=%d", userID, len(subs), successCount, failCount)

	if failCount > 0 && successCount == 0 {
		return fmt.Errorf("failed to send any push notifications (attempted %d)", failCount)
	}
	return nil
}

func pruneSubscription(db *sql.DB, endpoint, reason string) {
	if _, err := db.Exec("DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint); err != nil {
		log.Printf("[push] failed to remove subscription %s: %v", shortEndpoint(endpoint), err)
		return
	}
	log.Printf("[push] removed subscription (%s): %s", reason, shortEndpoint(endpoint))
}

// VapidPublicKeyHandler returns the VAPID public key for client subscription
func VapidPublicKeyHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		publicKey := os.Getenv("VAPID_PUBLIC_KEY")
		if publicKey == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Push notifications not configured")
		}
		return c.JSON(fiber.Map{
			"publicKey": publicKey,
		})
	}
}
