package reminder

import (
	"context"
	"errors"
	"log"

	"devnotify/internal/models"
)

// EventSnapshots is the device's copy of the event catalog.
type EventSnapshots interface {
	DeleteEvent(ctx context.Context, eventID int) error
}

// Watcher cascades catalog deletions into reminder state.
type Watcher struct {
	engine    *Engine
	snapshots EventSnapshots
}

// NewWatcher builds a watcher. snapshots may be nil.
func NewWatcher(engine *Engine, snapshots EventSnapshots) *Watcher {
	return &Watcher{engine: engine, snapshots: snapshots}
}

// OnEventDeleted is called by the catalog after it confirms eventID is gone.
// It removes the reminder from the active backend and any device copy not yet
// migrated, then shows the event as unset. It is a no-op when no reminder
// exists. On failure the view keeps its previous state and the call may be
// repeated.
func (w *Watcher) OnEventDeleted(ctx context.Context, eventID int) error {
	e := w.engine

	e.mu.Lock()
	e.markDeleted(eventID)
	owner := e.owner
	e.mu.Unlock()

	var errs []error
	if err := e.stores.For(owner).Delete(ctx, owner, eventID); err != nil {
		errs = append(errs, err)
	}
	if owner.IsAuthenticated() && e.stores.Local != nil {
		if err := e.stores.Local.Delete(ctx, models.Anonymous(), eventID); err != nil {
			errs = append(errs, err)
		}
	}
	if w.snapshots != nil {
		if err := w.snapshots.DeleteEvent(ctx, eventID); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		log.Printf("[sync] cascade delete for event %d (%s) failed: %v", eventID, owner, err)
		return err
	}
	e.clear(eventID)
	return nil
}
