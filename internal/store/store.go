// Package store persists reminders for an owner. LocalStore keeps anonymous
// reminders on the device; RemoteStore keeps an authenticated user's
// reminders on the remote reminder service.
package store

import (
	"context"

	"devnotify/internal/models"
)

// ReminderStore is the capability both backends provide. Get returns
// found=false (and no error) when no reminder exists. Delete of a missing
// reminder succeeds.
type ReminderStore interface {
	Get(ctx context.Context, owner models.Owner, eventID int) (models.Reminder, bool, error)
	List(ctx context.Context, owner models.Owner) ([]models.Reminder, error)
	Put(ctx context.Context, owner models.Owner, r models.Reminder) error
	Delete(ctx context.Context, owner models.Owner, eventID int) error
}

// Selector picks the backend that owns an owner's reminders.
type Selector struct {
	Local  ReminderStore
	Remote ReminderStore
}

func (s Selector) For(owner models.Owner) ReminderStore {
	if owner.IsAuthenticated() {
		return s.Remote
	}
	return s.Local
}
