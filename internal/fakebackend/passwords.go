package fakebackend

import (
	"strings"
	"unicode"

	"github.com/jrsteele09/go-chat-client/apimodel"
	"golang.org/x/crypto/bcrypt"
)

const specialChars = "!@#$%^&*()-_=+[]{};:,.<>?/"

var requirements = apimodel.PasswordRequirements{
	MinLength:           8,
	MaxLength:           128,
	RequireUppercase:    true,
	RequireLowercase:    true,
	RequireDigits:       true,
	RequireSpecialChars: true,
	SpecialChars:        specialChars,
}

// passwordErrors lists every rule password breaks.
func passwordErrors(password string) []string {
	var errs []string
	if len(password) < requirements.MinLength {
		errs = append(errs, "password must be at least 8 characters long")
	}
	if len(password) > requirements.MaxLength {
		errs = append(errs, "password must be at most 128 characters long")
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case strings.ContainsRune(specialChars, char):
			hasSpecial = true
		}
	}

	if !hasUpper {
		errs = append(errs, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "password must contain at least one lowercase letter")
	}
	if !hasNumber {
		errs = append(errs, "password must contain at least one number")
	}
	if !hasSpecial {
		errs = append(errs, "password must contain at least one special character")
	}
	return errs
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
}

func checkPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
