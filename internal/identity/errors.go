package identity

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotLoaded is returned by calls made before Load succeeded.
	ErrNotLoaded = errors.New("identity client not loaded")
	// ErrUnauthorized covers 401/403 answers from the service.
	ErrUnauthorized = errors.New("identity service rejected the request")
	// ErrNotFound covers 404 answers from the service.
	ErrNotFound = errors.New("identity resource not found")
)

// APIError is a non-2xx answer from the identity service.
type APIError struct {
	Status      int
	Code        string
	Message     string
	LongMessage string
}

func (e *APIError) Error() string {
	if e == nil {
		return "identity api error"
	}

	switch {
	case e.Code != "" && e.LongMessage != "":
		return fmt.Sprintf("identity api error %d (%s): %s", e.Status, e.Code, e.LongMessage)
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("identity api error %d (%s): %s", e.Status, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("identity api error %d (%s)", e.Status, e.Code)
	default:
		return fmt.Sprintf("identity api error %d", e.Status)
	}
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

type apiErrorBody struct {
	Errors []struct {
		Code        string `json:"code"`
		Message     string `json:"message"`
		LongMessage string `json:"long_message"`
	} `json:"errors"`
}
