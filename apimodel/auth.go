package apimodel

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	// AccessToken is the short-lived JWT used for every authenticated call.
	// Usage: "Authorization: Bearer <access_token>" and the websocket "token" query parameter.
	AccessToken string `json:"access_token"`

	// RefreshToken is the long-lived credential exchanged at /auth/refresh.
	// It is never sent anywhere else.
	RefreshToken string `json:"refresh_token"`

	// Email identifies the logged in user.
	Email string `json:"email"`

	// Username is optional; clients fall back to the email when it is empty.
	Username string `json:"username,omitempty"`

	// TokenType is "bearer" when present.
	TokenType string `json:"token_type,omitempty"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse is returned by POST /auth/refresh. Refresh tokens rotate on each use.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Telephone string `json:"telephone"`
}

type UserProfile struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Telephone string `json:"telephone,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// UpdateProfileRequest only carries the fields being changed.
type UpdateProfileRequest struct {
	Username        *string `json:"username,omitempty"`
	Email           *string `json:"email,omitempty"`
	CurrentPassword *string `json:"currentPassword,omitempty"`
	NewPassword     *string `json:"newPassword,omitempty"`
}

type PasswordRequirements struct {
	MinLength           int    `json:"min_length"`
	MaxLength           int    `json:"max_length"`
	RequireUppercase    bool   `json:"require_uppercase"`
	RequireLowercase    bool   `json:"require_lowercase"`
	RequireDigits       bool   `json:"require_digits"`
	RequireSpecialChars bool   `json:"require_special_chars"`
	SpecialChars        string `json:"special_chars,omitempty"`
}

type ValidatePasswordRequest struct {
	Password string `json:"password"`
}

type PasswordValidation struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// ErrorBody is the FastAPI style error payload. Detail is either a string or
// a list of {msg} objects, so it is kept raw.
type ErrorBody struct {
	Detail  any    `json:"detail,omitempty"`
	Message string `json:"message,omitempty"`
}

// MessageResponse is the generic {"message": "..."} acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
