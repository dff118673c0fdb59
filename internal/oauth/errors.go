package oauth

import (
	"errors"
	"fmt"
)

// ErrMissingIDToken means the token response had no id_token.
var ErrMissingIDToken = errors.New("token response missing id_token")

// ProviderError is a failure reported by, or while talking to, the external
// provider.
type ProviderError struct {
	Provider    string
	Code        string
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "oauth provider error"
	}

	msg := fmt.Sprintf("%s oauth error", e.Provider)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Metadata returns the error's fields for structured logging.
func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}
	meta := map[string]any{
		"provider": e.Provider,
		"code":     e.Code,
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}
	return meta
}

func providerError(provider, code, description string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Code: code, Description: description, Err: err}
}
