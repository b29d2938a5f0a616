package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error values for the chat client
var (
	// Session errors
	ErrNoSession       = errors.New("no active session")
	ErrMissingIdentity = errors.New("identity missing for session tokens")
	ErrSessionEnded    = errors.New("session ended, re-authentication required")
	ErrAuthentication  = errors.New("authentication required")

	// Token errors
	ErrNoAccessToken  = errors.New("no access token available")
	ErrNoRefreshToken = errors.New("no refresh token available")
	ErrMissingTokens  = errors.New("server did not return the session tokens")

	// Transport errors
	ErrQueueFull    = errors.New("outbound queue is full")
	ErrNotConnected = errors.New("websocket not connected")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// Kind classifies a failed request so callers can pick presentation without
// looking at raw status codes.
type Kind string

const (
	KindNetwork        Kind = "NETWORK"
	KindAuthentication Kind = "AUTHENTICATION"
	KindAuthorization  Kind = "AUTHORIZATION"
	KindValidation     Kind = "VALIDATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindServer         Kind = "SERVER"
	KindUnknown        Kind = "UNKNOWN"
)

// Classify maps an HTTP status code onto a Kind. A zero status means no
// response was received.
func Classify(status int) Kind {
	switch {
	case status == 0:
		return KindNetwork
	case status == http.StatusUnauthorized:
		return KindAuthentication
	case status == http.StatusForbidden:
		return KindAuthorization
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnprocessableEntity:
		return KindValidation
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindValidation
	}
	return KindUnknown
}

// Describe returns a user-facing sentence for a failure. raw is used where the
// server message is more useful than a generic one.
func Describe(kind Kind, status int, raw string) string {
	switch status {
	case http.StatusUnauthorized:
		return "Invalid credentials or expired session. Please sign in again."
	case http.StatusConflict:
		return "The username or email is already in use."
	}

	switch kind {
	case KindNetwork:
		return "Could not reach the server. Check your internet connection."
	case KindAuthentication:
		return "Your session has expired. Please sign in again."
	case KindAuthorization:
		return "You do not have permission to perform this action."
	case KindNotFound:
		return "The requested resource was not found."
	case KindValidation:
		if raw != "" {
			return raw
		}
		return "The submitted data is not valid."
	case KindServer:
		return "Server error. Please try again later."
	}
	if raw != "" {
		return raw
	}
	return "An unexpected error occurred."
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
