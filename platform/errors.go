package platform

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound reports that the record, channel or user does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden reports that the bot lacks access to the target.
var ErrForbidden = errors.New("forbidden")

// APIError carries a non-2xx platform response. errors.Is matches
// ErrNotFound for 404 and ErrForbidden for 403 through Unwrap.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("platform api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("platform api: status %d", e.Status)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrForbidden
	}
	return nil
}
