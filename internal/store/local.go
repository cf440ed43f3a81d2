package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"devnotify/internal/database"
	"devnotify/internal/models"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

const (
	bucketReminders = "reminders"
	bucketEvents    = "events"
	bucketDevice    = "device"
	bucketSaved     = "saved"
)

// LocalStore is the device's key-value storage. It holds eventId -> Reminder,
// eventId -> Event snapshots, the events bookmarked on this device and the
// device identity. Reminders here belong
// to the device, so the owner argument is not used for scoping.
type LocalStore struct {
	db       *sql.DB
	deviceID string
}

type LocalOption func(*localOptions)

type localOptions struct {
	quotaPages int
}

// WithQuotaPages caps the database at n pages. Writes past the cap fail with
// ErrStorageFailure, the way browser storage fails once its quota is used up.
func WithQuotaPages(n int) LocalOption {
	return func(o *localOptions) {
		if n > 0 {
			o.quotaPages = n
		}
	}
}

func OpenLocal(path string, opts ...LocalOption) (*LocalStore, error) {
	var o localOptions
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.Open(path)
	if err != nil {
		return nil, storageErr("open", err)
	}
	// Pragmas such as max_page_count are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		bucket TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (bucket, key)
	)`); err != nil {
		db.Close()
		return nil, storageErr("create schema", err)
	}

	s := &LocalStore{db: db}
	if err := s.loadDeviceID(); err != nil {
		db.Close()
		return nil, err
	}

	if o.quotaPages > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA max_page_count = %d", o.quotaPages)); err != nil {
			db.Close()
			return nil, storageErr("set quota", err)
		}
	}
	return s, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

// DeviceID identifies this device's anonymous owner. It is created on first open.
func (s *LocalStore) DeviceID() string {
	return s.deviceID
}

func (s *LocalStore) loadDeviceID() error {
	var raw []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE bucket = ? AND key = 'id'", bucketDevice).Scan(&raw)
	if err == nil {
		s.deviceID = string(raw)
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return storageErr("read device id", err)
	}

	s.deviceID = uuid.NewString()
	if _, err := s.db.Exec("INSERT INTO kv (bucket, key, value) VALUES (?, 'id', ?)", bucketDevice, []byte(s.deviceID)); err != nil {
		return storageErr("write device id", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrFull {
		return fmt.Errorf("%w: %s: quota exceeded: %v", models.ErrStorageFailure, op, err)
	}
	return fmt.Errorf("%w: %s: %v", models.ErrStorageFailure, op, err)
}

func (s *LocalStore) put(ctx context.Context, bucket string, key int, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return storageErr("encode "+bucket, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (bucket, key, value) VALUES (?, ?, ?)
		ON CONFLICT(bucket, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		bucket, strconv.Itoa(key), value,
	)
	if err != nil {
		return storageErr("write "+bucket, err)
	}
	return nil
}

func (s *LocalStore) get(ctx context.Context, bucket string, key int, v any) (bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE bucket = ? AND key = ?", bucket, strconv.Itoa(key)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("read "+bucket, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, storageErr("decode "+bucket, err)
	}
	return true, nil
}

func (s *LocalStore) values(ctx context.Context, bucket string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT value FROM kv WHERE bucket = ? ORDER BY key", bucket)
	if err != nil {
		return nil, storageErr("list "+bucket, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, storageErr("list "+bucket, err)
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list "+bucket, err)
	}
	return out, nil
}

func (s *LocalStore) remove(ctx context.Context, bucket string, key int) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE bucket = ? AND key = ?", bucket, strconv.Itoa(key)); err != nil {
		return storageErr("delete "+bucket, err)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, _ models.Owner, eventID int) (models.Reminder, bool, error) {
	var r models.Reminder
	found, err := s.get(ctx, bucketReminders, eventID, &r)
	return r, found, err
}

func (s *LocalStore) List(ctx context.Context, _ models.Owner) ([]models.Reminder, error) {
	raws, err := s.values(ctx, bucketReminders)
	if err != nil {
		return nil, err
	}
	reminders := make([]models.Reminder, 0, len(raws))
	for _, raw := range raws {
		var r models.Reminder
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, storageErr("decode reminders", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, nil
}

func (s *LocalStore) Put(ctx context.Context, _ models.Owner, r models.Reminder) error {
	return s.put(ctx, bucketReminders, r.EventID, r)
}

func (s *LocalStore) Delete(ctx context.Context, _ models.Owner, eventID int) error {
	return s.remove(ctx, bucketReminders, eventID)
}

// SaveEvents stores catalog snapshots, replacing existing ones by ID.
func (s *LocalStore) SaveEvents(ctx context.Context, events []models.Event) error {
	for _, ev := range events {
		if err := s.put(ctx, bucketEvents, ev.ID, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *LocalStore) Event(ctx context.Context, eventID int) (models.Event, bool, error) {
	var ev models.Event
	found, err := s.get(ctx, bucketEvents, eventID, &ev)
	return ev, found, err
}

func (s *LocalStore) Events(ctx context.Context) ([]models.Event, error) {
	raws, err := s.values(ctx, bucketEvents)
	if err != nil {
		return nil, err
	}
	events := make([]models.Event, 0, len(raws))
	for _, raw := range raws {
		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, storageErr("decode events", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// DeleteEvent drops the snapshot of eventID along with its bookmark.
func (s *LocalStore) DeleteEvent(ctx context.Context, eventID int) error {
	if err := s.remove(ctx, bucketEvents, eventID); err != nil {
		return err
	}
	return s.remove(ctx, bucketSaved, eventID)
}

type bookmark struct {
	EventID int       `json:"eventId"`
	SavedAt time.Time `json:"savedAt"`
}

// Bookmark marks eventID as saved on this device. Bookmarking twice keeps one entry.
func (s *LocalStore) Bookmark(ctx context.Context, eventID int) error {
	return s.put(ctx, bucketSaved, eventID, bookmark{EventID: eventID, SavedAt: time.Now().UTC()})
}

func (s *LocalStore) Unbookmark(ctx context.Context, eventID int) error {
	return s.remove(ctx, bucketSaved, eventID)
}

func (s *LocalStore) IsBookmarked(ctx context.Context, eventID int) (bool, error) {
	var b bookmark
	return s.get(ctx, bucketSaved, eventID, &b)
}

// Bookmarks returns the saved event IDs in ascending order.
func (s *LocalStore) Bookmarks(ctx context.Context) ([]int, error) {
	raws, err := s.values(ctx, bucketSaved)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(raws))
	for _, raw := range raws {
		var b bookmark
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, storageErr("decode saved", err)
		}
		ids = append(ids, b.EventID)
	}
	sort.Ints(ids)
	return ids, nil
}

// ToggleBookmark saves eventID if it is not saved and unsaves it otherwise.
// It reports whether the event is saved afterwards.
func (s *LocalStore) ToggleBookmark(ctx context.Context, eventID int) (bool, error) {
	saved, err := s.IsBookmarked(ctx, eventID)
	if err != nil {
		return false, err
	}
	if saved {
		return false, s.Unbookmark(ctx, eventID)
	}
	return true, s.Bookmark(ctx, eventID)
}
