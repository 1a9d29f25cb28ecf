package stemclient

import (
	"errors"
	"fmt"
)

// Sentinel kinds for client errors.
var (
	ErrJobFailed = errors.New("separation failed")
	ErrNoStems   = errors.New("no stems found")
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}
