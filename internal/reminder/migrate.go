package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"

	"devnotify/internal/models"
)

// MigrationReport counts what happened to each device reminder.
type MigrationReport struct {
	// Migrated reminders now live in the account and left the device.
	Migrated int `json:"migrated"`
	// Discarded reminders were already in the account; the account copy won.
	Discarded int `json:"discarded"`
	// Failed reminders are still on the device and will be retried.
	Failed int `json:"failed"`
}

func (r MigrationReport) String() string {
	return fmt.Sprintf("migrated=%d discarded=%d failed=%d", r.Migrated, r.Discarded, r.Failed)
}

// Migrate moves every reminder held on the device into the current
// authenticated owner's account. Items commit one by one: a device copy is
// deleted only after the account confirms it holds that event, so stopping
// at any point leaves each reminder in at least one store and the next call
// picks up where this one ended.
//
// Unauthorized stops the run, since every further write would fail the same
// way. Other failures are per item.
func (e *Engine) Migrate(ctx context.Context) (MigrationReport, error) {
	var report MigrationReport

	e.mu.Lock()
	owner, gen := e.owner, e.gen
	e.mu.Unlock()
	if !owner.IsAuthenticated() {
		return report, fmt.Errorf("%w: migration needs an authenticated owner", models.ErrUnauthorized)
	}
	local, remote := e.stores.Local, e.stores.Remote
	if local == nil {
		return report, errNoLocalStore
	}

	pending, err := local.List(ctx, models.Anonymous())
	if err != nil {
		return report, err
	}
	if len(pending) == 0 {
		return report, nil
	}

	existing, err := remote.List(ctx, owner)
	if err != nil {
		report.Failed = len(pending)
		log.Printf("[sync] migration for %s could not read account reminders: %v", owner, err)
		return report, err
	}
	inAccount := make(map[int]bool, len(existing))
	for _, r := range existing {
		inAccount[r.EventID] = true
	}

	for i, r := range pending {
		if err := ctx.Err(); err != nil {
			report.Failed += len(pending) - i
			return report, err
		}

		if inAccount[r.EventID] || e.isDeleted(r.EventID) {
			if err := local.Delete(ctx, models.Anonymous(), r.EventID); err != nil {
				log.Printf("[sync] discard device copy of event %d failed: %v", r.EventID, err)
				report.Failed++
				continue
			}
			report.Discarded++
			continue
		}

		if err := remote.Put(ctx, owner, r); err != nil {
			log.Printf("[sync] migrate event %d for %s failed: %v", r.EventID, owner, err)
			report.Failed++
			if errors.Is(err, models.ErrUnauthorized) {
				report.Failed += len(pending) - i - 1
				return report, err
			}
			continue
		}
		inAccount[r.EventID] = true
		e.markSet(r.EventID, gen)

		// The account holds the reminder now; a leftover device copy is
		// discarded as a duplicate on the next run.
		if err := local.Delete(ctx, models.Anonymous(), r.EventID); err != nil {
			log.Printf("[sync] remove migrated device copy of event %d failed: %v", r.EventID, err)
		}
		report.Migrated++
	}

	if report.Migrated > 0 {
		e.subscribe(ctx, owner)
	}
	log.Printf("[sync] migration for %s: %s", owner, report)
	return report, nil
}
