package models

import "time"

const (
	EventTypeHackathon = "hackathon"
	EventTypeContest   = "contest"
)

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Event is a catalog entry. The catalog owns it; reminders only reference it by ID.
type Event struct {
	ID   int       `json:"id"`
	Name string    `json:"name"`
	Date time.Time `json:"date"`
	Type string    `json:"type"`
}

// Reminder is replaced on write, never mutated in place.
type Reminder struct {
	EventID      int       `json:"eventId"`
	EventName    string    `json:"eventName"`
	EventDate    time.Time `json:"eventDate"`
	ReminderTime time.Time `json:"reminderTime"`
}

// NewReminder builds the reminder for an event. The reminder fires at event start.
func NewReminder(ev Event) Reminder {
	date := ev.Date.UTC()
	return Reminder{
		EventID:      ev.ID,
		EventName:    ev.Name,
		EventDate:    date,
		ReminderTime: date,
	}
}

// StoredReminder is a reminder row on the remote service.
type StoredReminder struct {
	Reminder
	UserID      int        `json:"userId"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type PushSubscription struct {
	ID       int    `json:"id,omitempty"`
	UserID   int    `json:"user_id,omitempty"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

type CreateReminderRequest struct {
	EventID      int        `json:"eventId"`
	EventName    string     `json:"eventName"`
	EventDate    time.Time  `json:"eventDate"`
	ReminderTime *time.Time `json:"reminderTime,omitempty"`
}

type CreateReminderResponse struct {
	UserID   int      `json:"userId"`
	Reminder Reminder `json:"reminder"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
