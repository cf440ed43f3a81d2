package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"devnotify/internal/models"
)

const DefaultRequestTimeout = 10 * time.Second

// maxErrorBody bounds how much of a failed response is kept in ServerError.
const maxErrorBody = 4 << 10

// RemoteStore talks to the remote reminder service. Every call is bounded by
// the request timeout; a call that runs out of time is a NetworkFailure.
type RemoteStore struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

type RemoteOption func(*RemoteStore)

func WithTimeout(d time.Duration) RemoteOption {
	return func(s *RemoteStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithHTTPClient(c *http.Client) RemoteOption {
	return func(s *RemoteStore) {
		if c != nil {
			s.client = c
		}
	}
}

func NewRemoteStore(baseURL string, opts ...RemoteOption) *RemoteStore {
	s := &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request performs an authenticated call against the service and decodes a
// 2xx JSON body into out (if non-nil). Failures are classified into
// ErrUnauthorized, ErrNetworkFailure or *models.ServerError.
func Request(ctx context.Context, client *http.Client, timeout time.Duration, method, url, token string, body, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("x-auth-token", token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %v", models.ErrNetworkFailure, method, url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, fmt.Errorf("%w: %s %s: status %d", models.ErrUnauthorized, method, url, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &models.ServerError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return resp.StatusCode, fmt.Errorf("%w: %s %s: %v", models.ErrNetworkFailure, method, url, err)
			}
			return resp.StatusCode, fmt.Errorf("%w: decode response: %v", models.ErrServerError, err)
		}
	}
	return resp.StatusCode, nil
}

func (s *RemoteStore) do(ctx context.Context, owner models.Owner, method, path string, body, out any) (int, error) {
	if !owner.IsAuthenticated() {
		return 0, fmt.Errorf("%w: remote store needs an authenticated owner", models.ErrUnauthorized)
	}
	return Request(ctx, s.client, s.timeout, method, s.baseURL+path, owner.Token, body, out)
}

func reminderPath(eventID int) string {
	return "/api/users/reminders/" + strconv.Itoa(eventID)
}

func (s *RemoteStore) Get(ctx context.Context, owner models.Owner, eventID int) (models.Reminder, bool, error) {
	var stored models.StoredReminder
	status, err := s.do(ctx, owner, http.MethodGet, reminderPath(eventID), nil, &stored)
	if status == http.StatusNotFound {
		return models.Reminder{}, false, nil
	}
	if err != nil {
		return models.Reminder{}, false, err
	}
	return stored.Reminder, true, nil
}

func (s *RemoteStore) List(ctx context.Context, owner models.Owner) ([]models.Reminder, error) {
	var stored []models.StoredReminder
	if _, err := s.do(ctx, owner, http.MethodGet, "/api/users/reminders", nil, &stored); err != nil {
		return nil, err
	}
	reminders := make([]models.Reminder, 0, len(stored))
	for _, r := range stored {
		reminders = append(reminders, r.Reminder)
	}
	return reminders, nil
}

func (s *RemoteStore) Put(ctx context.Context, owner models.Owner, r models.Reminder) error {
	reminderTime := r.ReminderTime
	req := models.CreateReminderRequest{
		EventID:      r.EventID,
		EventName:    r.EventName,
		EventDate:    r.EventDate,
		ReminderTime: &reminderTime,
	}
	var resp models.CreateReminderResponse
	if _, err := s.do(ctx, owner, http.MethodPost, "/api/users/reminders", req, &resp); err != nil {
		return err
	}
	if resp.UserID != 0 && resp.UserID != owner.UserID {
		return fmt.Errorf("%w: reminder stored for user %d, expected %d", models.ErrServerError, resp.UserID, owner.UserID)
	}
	return nil
}

func (s *RemoteStore) Delete(ctx context.Context, owner models.Owner, eventID int) error {
	status, err := s.do(ctx, owner, http.MethodDelete, reminderPath(eventID), nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}
