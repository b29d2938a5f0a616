package credentials

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Identity is derived from the last successful login.
type Identity struct {
	Email    string
	Username string
}

// Credentials is a consistent snapshot of the session state. An access token
// is never present without an identity.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Identity     *Identity
}

func (c Credentials) Authenticated() bool {
	return c.AccessToken != "" && c.Identity != nil
}

// Expiry reads the exp claim of the access token. The signature is not
// verified, the client never holds the signing key. A zero time means unknown.
func (c Credentials) Expiry() time.Time {
	return tokenExpiry(c.AccessToken)
}

// Expired is true only when the token carries an expiry that has passed.
func (c Credentials) Expired(now time.Time) bool {
	exp := c.Expiry()
	return !exp.IsZero() && !now.Before(exp)
}

// OAuth2Token converts the snapshot into an x/oauth2 token so it can set the
// bearer header on outgoing requests.
func (c Credentials) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry(),
	}
}

func tokenExpiry(accessToken string) time.Time {
	if accessToken == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
