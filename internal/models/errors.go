package models

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("notification permission denied")
	ErrStorageFailure   = errors.New("local storage failure")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNetworkFailure   = errors.New("network failure")
	ErrServerError      = errors.New("server error")

	ErrToggleInProgress = errors.New("reminder operation already in progress")
	ErrEventDeleted     = errors.New("event has been deleted")
)

// ServerError is a non-2xx answer from the remote reminder service.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("server error: status %d: %s", e.StatusCode, e.Body)
}

func (e *ServerError) Is(target error) bool {
	return target == ErrServerError
}

// IsTerminal reports whether err needs user action (re-grant permission or
// re-authenticate) before the operation may be attempted again.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrUnauthorized)
}
