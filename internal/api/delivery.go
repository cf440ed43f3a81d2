package api

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"devnotify/internal/models"

	"github.com/robfig/cron/v3"
)

const DefaultDeliverySchedule = "@every 1m"

// dueReminders returns undelivered reminders whose reminder time is at or before now.
func dueReminders(db *sql.DB, now time.Time) ([]models.StoredReminder, error) {
	rows, err := db.Query(
		`SELECT `+reminderColumns+` FROM reminders
		WHERE delivered_at IS NULL AND reminder_time <= ?
		ORDER BY reminder_time ASC`,
		now.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []models.StoredReminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, r)
	}
	return due, rows.Err()
}

func reminderPayload(r models.StoredReminder) PushPayload {
	return PushPayload{
		Title: fmt.Sprintf("Reminder: %s", r.EventName),
		Body:  fmt.Sprintf("%s starts at %s", r.EventName, r.EventDate.UTC().Format("Jan 2, 15:04 MST")),
		Tag:   fmt.Sprintf("devnotify-event-%d", r.EventID),
		Data:  map[string]interface{}{"eventId": r.EventID},
	}
}

// DeliverDueReminders pushes every due reminder to its owner and stamps it as
// delivered. A reminder is stamped even when its push fails so a dead
// subscription does not cause a retry every tick. It returns the number of
// reminders handled.
func DeliverDueReminders(db *sql.DB, now time.Time) (int, error) {
	if !IsWebPushConfigured() {
		return 0, nil
	}

	due, err := dueReminders(db, now)
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, r := range due {
		if err := SendPushToUser(db, r.UserID, reminderPayload(r)); err != nil {
			log.Printf("[delivery] reminder for event %d (user %d) not delivered: %v", r.EventID, r.UserID, err)
		}
		if _, err := db.Exec(
			"UPDATE reminders SET delivered_at = ? WHERE user_id = ? AND event_id = ? AND delivered_at IS NULL",
			now.UTC(), r.UserID, r.EventID,
		); err != nil {
			return handled, err
		}
		handled++
	}

	if handled > 0 {
		log.Printf("[delivery] handled %d due reminders", handled)
	}
	return handled, nil
}

// StartDeliveryWorker runs DeliverDueReminders on the given cron schedule.
// The caller stops the returned scheduler on shutdown.
func StartDeliveryWorker(db *sql.DB, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		schedule = DefaultDeliverySchedule
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := DeliverDueReminders(db, time.Now()); err != nil {
			log.Printf("[delivery] worker error: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid delivery schedule %q: %w", schedule, err)
	}

	c.Start()
	return c, nil
}
