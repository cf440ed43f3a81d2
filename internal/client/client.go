// Package client assembles the reminder client core from a config.
package client

import (
	"context"
	"fmt"

	"devnotify/internal/config"
	"devnotify/internal/models"
	"devnotify/internal/notify"
	"devnotify/internal/permission"
	"devnotify/internal/reminder"
	"devnotify/internal/store"
)

type Client struct {
	Engine  *reminder.Engine
	Watcher *reminder.Watcher
	Gate    *permission.Gate
	Local   *store.LocalStore
	Remote  *store.RemoteStore
	Channel *notify.Channel
}

// Open builds the client. prompter may be nil, in which case the
// configured Notifications answer is used without prompting.
func Open(cfg *config.Config, prompter permission.Prompter) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Normalize()

	if prompter == nil {
		prompter = permission.Fixed(permission.State(cfg.Notifications))
	}

	var localOpts []store.LocalOption
	if cfg.QuotaPages > 0 {
		localOpts = append(localOpts, store.WithQuotaPages(cfg.QuotaPages))
	}
	local, err := store.OpenLocal(cfg.LocalStorePath, localOpts...)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	remote := store.NewRemoteStore(cfg.ServerURL, store.WithTimeout(cfg.RequestTimeout))
	channel := notify.NewChannel(cfg.ServerURL, models.PushSubscription{
		Endpoint: cfg.Push.Endpoint,
		P256dh:   cfg.Push.P256dh,
		Auth:     cfg.Push.Auth,
	}, notify.WithTimeout(cfg.RequestTimeout))
	gate := permission.NewGate(prompter)

	engine := reminder.New(store.Selector{Local: local, Remote: remote}, gate, channel)

	return &Client{
		Engine:  engine,
		Watcher: reminder.NewWatcher(engine, local),
		Gate:    gate,
		Local:   local,
		Remote:  remote,
		Channel: channel,
	}, nil
}

// SaveEvents records catalog snapshots on the device and loads the reminder
// view for each event.
func (c *Client) SaveEvents(ctx context.Context, events []models.Event) ([]reminder.View, error) {
	if err := c.Local.SaveEvents(ctx, events); err != nil {
		return nil, err
	}
	views := make([]reminder.View, 0, len(events))
	for _, ev := range events {
		v, err := c.Engine.Load(ctx, ev.ID)
		if err != nil {
			return views, err
		}
		views = append(views, v)
	}
	return views, nil
}

// EventState is what the device shows for one event: its reminder view and
// whether the event is bookmarked here.
type EventState struct {
	reminder.View
	Saved bool `json:"saved"`
}

func (c *Client) State(ctx context.Context, eventID int) (EventState, error) {
	v, err := c.Engine.Load(ctx, eventID)
	if err != nil {
		return EventState{View: v}, err
	}
	saved, err := c.Local.IsBookmarked(ctx, eventID)
	return EventState{View: v, Saved: saved}, err
}

// ToggleSaved bookmarks eventID on this device, or drops the bookmark. Saved
// events stay on the device across logins and are never migrated.
func (c *Client) ToggleSaved(ctx context.Context, eventID int) (EventState, error) {
	if c.Engine.Deleted(eventID) {
		return EventState{View: c.Engine.View(eventID)}, models.ErrEventDeleted
	}
	if _, err := c.Local.ToggleBookmark(ctx, eventID); err != nil {
		return EventState{View: c.Engine.View(eventID)}, err
	}
	return c.State(ctx, eventID)
}

// Saved returns the snapshots of the events bookmarked on this device.
// Bookmarks without a snapshot are skipped.
func (c *Client) Saved(ctx context.Context) ([]models.Event, error) {
	ids, err := c.Local.Bookmarks(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]models.Event, 0, len(ids))
	for _, id := range ids {
		ev, found, err := c.Local.Event(ctx, id)
		if err != nil {
			return events, err
		}
		if found {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (c *Client) Close() error {
	return c.Local.Close()
}
