package auth

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxEmailLength   = 254
	MinUsernameLen   = 3
	MaxUsernameLen   = 50
	MinPhoneDigits   = 7
	MaxPhoneDigits   = 15
	MaxMessageLength = 5000
)

var (
	emailPattern = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")
	usernameChars = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	phonePattern  = regexp.MustCompile(`^\+?[\d\s\-()]{7,15}$`)
)

// Validator checks user input before it is sent to the server.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateEmail applies a simplified RFC 5322 check.
func (v *Validator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > MaxEmailLength ||
		strings.HasPrefix(email, ".") ||
		strings.HasPrefix(email, "@") ||
		strings.Contains(email, "..") ||
		!emailPattern.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}

func (v *Validator) ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}
	if n := utf8.RuneCountInString(username); n < MinUsernameLen || n > MaxUsernameLen {
		return ErrUsernameLength
	}
	if !usernameChars.MatchString(username) {
		return ErrUsernameChars
	}
	if strings.ContainsAny(username[:1], "-_") || strings.ContainsAny(username[len(username)-1:], "-_") {
		return ErrUsernameEdges
	}
	return nil
}

// ValidateTelephone accepts international formats such as "+34 600-000 000".
func (v *Validator) ValidateTelephone(telephone string) error {
	telephone = strings.TrimSpace(telephone)
	if !phonePattern.MatchString(telephone) {
		return ErrTelephoneInvalid
	}
	digits := 0
	for _, r := range telephone {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits < MinPhoneDigits || digits > MaxPhoneDigits {
		return ErrTelephoneDigits
	}
	return nil
}

// ValidateChatMessage requires non-blank content of at most MaxMessageLength characters.
func (v *Validator) ValidateChatMessage(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrMessageEmpty
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ValidateCredentials validates login credentials
func (v *Validator) ValidateCredentials(email, password string) error {
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return ErrPasswordRequired
	}
	return nil
}
