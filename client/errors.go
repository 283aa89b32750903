package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the credential is missing, invalid or expired.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrQuotaExceeded means the weekly word allowance is used up.
	ErrQuotaExceeded  = errors.New("weekly quota exceeded")
	ErrEmailTaken     = errors.New("email already registered")
	ErrKeyAlreadyUsed = errors.New("license key already in use")
	ErrInvalidKey     = errors.New("invalid license key")
)

// TransportError is a failure to reach the service or read its reply,
// including timeouts.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is any non-2xx reply without a more specific meaning.
type ServerError struct {
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server error %d", e.StatusCode)
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Detail)
}
