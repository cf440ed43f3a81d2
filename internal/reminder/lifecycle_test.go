package reminder_test

import (
	"context"
	"errors"
	"testing"

	"devnotify/internal/models"
	"devnotify/internal/reminder"
)

func TestOnEventDeleted(t *testing.T) {
	ctx := context.Background()

	t.Run("removes a live reminder", func(t *testing.T) {
		h := newHarness(reminder.WithOwner(alice))
		snaps := &fakeSnapshots{}
		w := reminder.NewWatcher(h.engine, snaps)

		if _, err := h.engine.Toggle(ctx, event(42)); err != nil {
			t.Fatal(err)
		}
		// An unmigrated device copy goes too.
		h.local.reminders[42] = models.NewReminder(event(42))

		if err := w.OnEventDeleted(ctx, 42); err != nil {
			t.Fatal(err)
		}
		if _, found, _ := h.remote.Get(ctx, alice, 42); found {
			t.Fatal("expected account reminder to be gone")
		}
		if h.local.has(42) {
			t.Fatal("expected device copy to be gone")
		}
		if len(snaps.deleted) != 1 || snaps.deleted[0] != 42 {
			t.Fatalf("expected snapshot removal, got %v", snaps.deleted)
		}
		if v := h.engine.View(42); v.Status != reminder.StatusUnset || v.Reminded {
			t.Fatalf("expected unset, got %+v", v)
		}
	})

	t.Run("no reminder is a no-op", func(t *testing.T) {
		h := newHarness()
		w := reminder.NewWatcher(h.engine, nil)
		if err := w.OnEventDeleted(ctx, 42); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("failure leaves the view alone", func(t *testing.T) {
		h := newHarness(reminder.WithOwner(alice))
		h.remote.reminders[42] = models.NewReminder(event(42))
		if v, _ := h.engine.Load(ctx, 42); !v.Reminded {
			t.Fatal("expected reminder to be set")
		}
		h.remote.deleteErr = models.ErrNetworkFailure

		w := reminder.NewWatcher(h.engine, nil)
		if err := w.OnEventDeleted(ctx, 42); !errors.Is(err, models.ErrNetworkFailure) {
			t.Fatalf("expected network failure, got %v", err)
		}
		if v := h.engine.View(42); !v.Reminded {
			t.Fatalf("expected view to keep its state, got %+v", v)
		}

		h.remote.deleteErr = nil
		if err := w.OnEventDeleted(ctx, 42); err != nil {
			t.Fatal(err)
		}
		if v := h.engine.View(42); v.Reminded {
			t.Fatalf("expected unset after retry, got %+v", v)
		}
	})

	t.Run("deleted event cannot be toggled", func(t *testing.T) {
		h := newHarness()
		w := reminder.NewWatcher(h.engine, nil)
		if err := w.OnEventDeleted(ctx, 42); err != nil {
			t.Fatal(err)
		}
		if _, err := h.engine.Toggle(ctx, event(42)); !errors.Is(err, models.ErrEventDeleted) {
			t.Fatalf("expected ErrEventDeleted, got %v", err)
		}
		if h.local.has(42) {
			t.Fatal("no reminder may be created for a deleted event")
		}
	})

	t.Run("in-flight set is undone", func(t *testing.T) {
		h := newHarness()
		w := reminder.NewWatcher(h.engine, nil)
		release := h.local.hold(42)

		done := make(chan error, 1)
		go func() {
			_, err := h.engine.Toggle(ctx, event(42))
			done <- err
		}()
		<-h.local.putStarted

		if err := w.OnEventDeleted(ctx, 42); err != nil {
			t.Fatal(err)
		}
		close(release)

		if err := <-done; !errors.Is(err, models.ErrEventDeleted) {
			t.Fatalf("expected ErrEventDeleted, got %v", err)
		}
		if h.local.has(42) {
			t.Fatal("expected the late write to be removed")
		}
		if v := h.engine.View(42); v.Reminded {
			t.Fatalf("expected unset, got %+v", v)
		}
	})

	t.Run("failed in-flight removal ends unset", func(t *testing.T) {
		h := newHarness(reminder.WithOwner(alice))
		h.remote.reminders[5] = models.NewReminder(event(5))
		if v, _ := h.engine.Load(ctx, 5); !v.Reminded {
			t.Fatal("expected reminder to be set")
		}
		w := reminder.NewWatcher(h.engine, nil)
		release := h.remote.holdDelete(5)

		done := make(chan error, 1)
		go func() {
			_, err := h.engine.Toggle(ctx, event(5))
			done <- err
		}()
		<-h.remote.deleteStarted

		if err := w.OnEventDeleted(ctx, 5); err != nil {
			t.Fatal(err)
		}
		h.remote.failDeletes(models.ErrNetworkFailure)
		close(release)

		if err := <-done; !errors.Is(err, models.ErrNetworkFailure) {
			t.Fatalf("expected network failure, got %v", err)
		}
		if h.remote.has(5) {
			t.Fatal("expected account reminder to be gone")
		}
		if v := h.engine.View(5); v.Status != reminder.StatusUnset || v.Reminded {
			t.Fatalf("expected unset, got %+v", v)
		}
	})

	t.Run("migration skips deleted events", func(t *testing.T) {
		h := newHarness()
		w := reminder.NewWatcher(h.engine, nil)
		if err := w.OnEventDeleted(ctx, 42); err != nil {
			t.Fatal(err)
		}
		// A copy written by an older session.
		h.local.reminders[42] = models.NewReminder(event(42))

		report, err := h.engine.Login(ctx, alice)
		if err != nil {
			t.Fatal(err)
		}
		if report.Discarded != 1 || h.remote.has(42) {
			t.Fatalf("expected deleted event to be discarded, got %s", report)
		}
	})
}
