// Package notify registers this client with the reminder service's push
// delivery channel.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"devnotify/internal/models"
	"devnotify/internal/store"

	"golang.org/x/sync/singleflight"
)

// Channel subscribes an authenticated user to server-pushed delivery. A user
// is registered at most once per session; the service also upserts on
// (user, endpoint), so a repeat that slips through adds nothing.
type Channel struct {
	baseURL string
	sub     models.PushSubscription
	client  *http.Client
	timeout time.Duration

	group singleflight.Group

	mu         sync.Mutex
	subscribed map[int]bool
}

type Option func(*Channel)

func WithTimeout(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Channel) {
		if hc != nil {
			c.client = hc
		}
	}
}

func NewChannel(baseURL string, sub models.PushSubscription, opts ...Option) *Channel {
	c := &Channel{
		baseURL:    strings.TrimRight(baseURL, "/"),
		sub:        sub,
		client:     &http.Client{},
		timeout:    store.DefaultRequestTimeout,
		subscribed: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether this device has a push endpoint to register.
func (c *Channel) Enabled() bool {
	return c.sub.Endpoint != "" && c.sub.P256dh != "" && c.sub.Auth != ""
}

// Subscribed reports whether userID has been registered during this session.
func (c *Channel) Subscribed(userID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed[userID]
}

// Subscribe registers the device endpoint for owner. Calls for a user that is
// already registered return immediately; concurrent calls for the same user
// share one request.
func (c *Channel) Subscribe(ctx context.Context, owner models.Owner) error {
	if !owner.IsAuthenticated() {
		return fmt.Errorf("%w: channel needs an authenticated owner", models.ErrUnauthorized)
	}
	if !c.Enabled() {
		return nil
	}
	if c.Subscribed(owner.UserID) {
		return nil
	}

	ch := c.group.DoChan(strconv.Itoa(owner.UserID), func() (interface{}, error) {
		if c.Subscribed(owner.UserID) {
			return nil, nil
		}
		var resp struct {
			Success bool `json:"success"`
			UserID  int  `json:"userId"`
		}
		_, err := store.Request(context.WithoutCancel(ctx), c.client, c.timeout,
			http.MethodPost, c.baseURL+"/api/push/subscribe", owner.Token, c.sub, &resp)
		if err != nil {
			return nil, err
		}
		if resp.UserID != 0 && resp.UserID != owner.UserID {
			return nil, fmt.Errorf("%w: subscription stored for user %d, expected %d", models.ErrServerError, resp.UserID, owner.UserID)
		}

		c.mu.Lock()
		c.subscribed[owner.UserID] = true
		c.mu.Unlock()
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Reset forgets every registration, so the next Subscribe contacts the service again.
func (c *Channel) Reset() {
	c.mu.Lock()
	c.subscribed = make(map[int]bool)
	c.mu.Unlock()
}
