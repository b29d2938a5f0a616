package auth

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-chat-client/internal/errors"
)

// Validation failures. All of them match apperrors.ErrInvalidInput.
var (
	ErrEmailRequired    = invalid("email is required")
	ErrEmailInvalid     = invalid("email is not valid")
	ErrPasswordRequired = invalid("password is required")
	ErrUsernameRequired = invalid("username is required")
	ErrUsernameLength   = invalid("username must be between 3 and 50 characters")
	ErrUsernameChars    = invalid("username may only contain letters, digits, hyphens and underscores")
	ErrUsernameEdges    = invalid("username cannot start or end with a hyphen or underscore")
	ErrTelephoneInvalid = invalid("telephone format is not valid")
	ErrTelephoneDigits  = invalid("telephone must have between 7 and 15 digits")
	ErrMessageEmpty     = invalid("message cannot be empty")
	ErrMessageTooLong   = invalid(fmt.Sprintf("message cannot exceed %d characters", MaxMessageLength))
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, msg)
}
