package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"devnotify/internal/models"
)

func openTestLocal(t *testing.T, opts ...LocalOption) *LocalStore {
	t.Helper()
	s, err := OpenLocal(":memory:", opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLocalStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestLocal(t)
	anon := models.Anonymous()

	ev := models.Event{ID: 7, Name: "Spring Hack", Date: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), Type: models.EventTypeHackathon}
	r := models.NewReminder(ev)

	if _, found, err := s.Get(ctx, anon, 7); err != nil || found {
		t.Fatalf("expected absent reminder, found=%v err=%v", found, err)
	}
	if err := s.Put(ctx, anon, r); err != nil {
		t.Fatal(err)
	}
	// Replace-on-write keeps a single entry per event.
	if err := s.Put(ctx, anon, r); err != nil {
		t.Fatal(err)
	}

	got, found, err := s.Get(ctx, anon, 7)
	if err != nil || !found {
		t.Fatalf("expected reminder, found=%v err=%v", found, err)
	}
	if !got.ReminderTime.Equal(ev.Date) {
		t.Fatalf("expected reminder time %v, got %v", ev.Date, got.ReminderTime)
	}

	list, err := s.List(ctx, anon)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(list))
	}

	if err := s.Delete(ctx, anon, 7); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, anon, 7); err != nil {
		t.Fatalf("deleting a missing reminder should succeed, got %v", err)
	}
	if _, found, _ := s.Get(ctx, anon, 7); found {
		t.Fatal("expected reminder to be gone")
	}
}

func TestLocalStore_EventSnapshots(t *testing.T) {
	ctx := context.Background()
	s := openTestLocal(t)

	events := []models.Event{
		{ID: 1, Name: "A", Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Type: models.EventTypeContest},
		{ID: 2, Name: "B", Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Type: models.EventTypeHackathon},
	}
	if err := s.SaveEvents(ctx, events); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEvent(ctx, 1); err != nil {
		t.Fatal(err)
	}

	got, err := s.Events(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("unexpected events: %+v", got)
	}
	if _, found, _ := s.Event(ctx, 1); found {
		t.Fatal("expected event 1 to be deleted")
	}
}

func TestLocalStore_Bookmarks(t *testing.T) {
	ctx := context.Background()
	s := openTestLocal(t)

	for _, id := range []int{12, 3, 12} {
		if err := s.Bookmark(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := s.Bookmarks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 12 {
		t.Fatalf("expected [3 12], got %v", ids)
	}

	saved, err := s.ToggleBookmark(ctx, 3)
	if err != nil || saved {
		t.Fatalf("expected event 3 to be unsaved, saved=%v err=%v", saved, err)
	}
	if ok, _ := s.IsBookmarked(ctx, 3); ok {
		t.Fatal("expected event 3 bookmark to be gone")
	}
	saved, err = s.ToggleBookmark(ctx, 5)
	if err != nil || !saved {
		t.Fatalf("expected event 5 to be saved, saved=%v err=%v", saved, err)
	}

	// Bookmarks are not reminders.
	if list, _ := s.List(ctx, models.Anonymous()); len(list) != 0 {
		t.Fatalf("expected no reminders, got %+v", list)
	}

	if err := s.SaveEvents(ctx, []models.Event{{ID: 12, Name: "Gone"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEvent(ctx, 12); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.IsBookmarked(ctx, 12); ok {
		t.Fatal("expected bookmark to go with the event")
	}
	if err := s.Unbookmark(ctx, 99); err != nil {
		t.Fatalf("unsaving a missing bookmark should succeed, got %v", err)
	}
}

func TestLocalStore_DeviceIDIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.db")

	s, err := OpenLocal(path)
	if err != nil {
		t.Fatal(err)
	}
	id := s.DeviceID()
	s.Close()
	if id == "" {
		t.Fatal("expected a device id")
	}

	s, err = OpenLocal(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.DeviceID() != id {
		t.Fatalf("expected device id %q to persist, got %q", id, s.DeviceID())
	}
}

func TestLocalStore_QuotaExhaustionIsStorageFailure(t *testing.T) {
	ctx := context.Background()
	// A quota below the current size is clamped to the current size, so any
	// write that needs a new page fails.
	s := openTestLocal(t, WithQuotaPages(1))

	r := models.Reminder{EventID: 1, EventName: strings.Repeat("x", 256<<10)}
	err := s.Put(ctx, models.Anonymous(), r)
	if !errors.Is(err, models.ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected quota message, got %v", err)
	}
}

func TestSelector(t *testing.T) {
	local := openTestLocal(t)
	remote := NewRemoteStore("http://example.invalid")
	sel := Selector{Local: local, Remote: remote}

	if sel.For(models.Anonymous()) != ReminderStore(local) {
		t.Fatal("expected local store for anonymous owner")
	}
	if sel.For(models.Authenticated(1, "tok")) != ReminderStore(remote) {
		t.Fatal("expected remote store for authenticated owner")
	}
}
