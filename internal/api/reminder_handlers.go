package api

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"devnotify/internal/models"

	"github.com/gofiber/fiber/v2"
)

const reminderColumns = `event_id, event_name, event_date, reminder_time, user_id, delivered_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (models.StoredReminder, error) {
	var r models.StoredReminder
	var delivered sql.NullTime
	err := row.Scan(
		&r.EventID, &r.EventName, &r.EventDate, &r.ReminderTime,
		&r.UserID, &delivered, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}
	if delivered.Valid {
		t := delivered.Time
		r.DeliveredAt = &t
	}
	return r, nil
}

// listUserReminders returns every reminder owned by userID, earliest first.
func listUserReminders(db *sql.DB, userID int) ([]models.StoredReminder, error) {
	rows, err := db.Query(
		`SELECT `+reminderColumns+` FROM reminders WHERE user_id = ? ORDER BY reminder_time ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reminders := []models.StoredReminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func eventIDParam(c *fiber.Ctx) (int, error) {
	eventID, err := strconv.Atoi(c.Params("eventId"))
	if err != nil || eventID <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid event ID")
	}
	return eventID, nil
}

// CreateReminderHandler stores the caller's reminder for an event. A second
// write for the same event replaces the first.
func CreateReminderHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var req models.CreateReminderRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if req.EventID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "eventId is required")
		}
		if req.EventDate.IsZero() {
			return fiber.NewError(fiber.StatusBadRequest, "eventDate is required")
		}

		reminder := models.Reminder{
			EventID:      req.EventID,
			EventName:    strings.TrimSpace(req.EventName),
			EventDate:    req.EventDate.UTC(),
			ReminderTime: req.EventDate.UTC(),
		}
		if req.ReminderTime != nil && !req.ReminderTime.IsZero() {
			reminder.ReminderTime = req.ReminderTime.UTC()
		}

		_, err := db.Exec(
			`INSERT INTO reminders (user_id, event_id, event_name, event_date, reminder_time)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id, event_id) DO UPDATE SET
			event_name = excluded.event_name,
			event_date = excluded.event_date,
			reminder_time = excluded.reminder_time,
			delivered_at = NULL,
			updated_at = CURRENT_TIMESTAMP`,
			userID, reminder.EventID, reminder.EventName, reminder.EventDate, reminder.ReminderTime,
		)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(models.CreateReminderResponse{
			UserID:   userID,
			Reminder: reminder,
		})
	}
}

func ListRemindersHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		reminders, err := listUserReminders(db, userID)
		if err != nil {
			return err
		}
		return c.JSON(reminders)
	}
}

func GetReminderHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		eventID, err := eventIDParam(c)
		if err != nil {
			return err
		}

		row := db.QueryRow(
			`SELECT `+reminderColumns+` FROM reminders WHERE user_id = ? AND event_id = ?`,
			userID, eventID,
		)
		r, err := scanReminder(row)
		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusNotFound, "Reminder not found")
		}
		if err != nil {
			return err
		}
		return c.JSON(r)
	}
}

func DeleteReminderHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		eventID, err := eventIDParam(c)
		if err != nil {
			return err
		}

		result, err := db.Exec(
			"DELETE FROM reminders WHERE user_id = ? AND event_id = ?",
			userID, eventID,
		)
		if err != nil {
			return err
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Reminder not found")
		}

		return c.JSON(fiber.Map{"success": true, "eventId": eventID, "removedAt": time.Now().UTC()})
	}
}
