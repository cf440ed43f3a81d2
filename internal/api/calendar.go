package api

import (
	"database/sql"
	"fmt"
	"time"

	"devnotify/internal/models"

	ical "github.com/arran4/golang-ical"
	"github.com/gofiber/fiber/v2"
)

// alarmTrigger expresses the reminder time as an offset from event start,
// e.g. "-PT30M". The offset is rounded to whole minutes.
func alarmTrigger(r models.Reminder) string {
	lead := r.EventDate.Sub(r.ReminderTime)
	minutes := int(lead.Round(time.Minute) / time.Minute)
	if minutes < 0 {
		return fmt.Sprintf("PT%dM", -minutes)
	}
	return fmt.Sprintf("-PT%dM", minutes)
}

// BuildReminderCalendar renders the reminders as an iCalendar feed with one
// VEVENT per event and a display alarm at the reminder time.
func BuildReminderCalendar(userID int, reminders []models.StoredReminder, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//DevNotify//Event Reminders//EN")

	for _, r := range reminders {
		ev := cal.AddEvent(fmt.Sprintf("reminder-%d-%d@devnotify", userID, r.EventID))
		ev.SetDtStampTime(now.UTC())
		ev.SetStartAt(r.EventDate.UTC())
		ev.SetSummary(r.EventName)

		alarm := ev.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(alarmTrigger(r.Reminder))
	}

	return cal.Serialize()
}

// ReminderCalendarHandler serves the caller's reminders as text/calendar.
func ReminderCalendarHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		reminders, err := listUserReminders(db, userID)
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="reminders.ics"`)
		return c.SendString(BuildReminderCalendar(userID, reminders, time.Now()))
	}
}
