package fakebackend

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var errRevoked = errors.New("token revoked")

// issueTokens creates an access/refresh pair for email. Caller holds s.mu.
func (s *Server) issueTokens(email string) (string, string, error) {
	now := time.Now()
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":   email,
		"email": email,
		"jti":   jti,
		"iat":   now.Unix(),
		"exp":   now.Add(s.accessTTL).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", errors.Wrap(err, "sign access token")
	}

	refresh := uuid.NewString()
	s.issued = append(s.issued, jti)
	s.refreshTokens[refresh] = email
	return access, refresh, nil
}

// verifyAccessToken returns the email of a valid, unrevoked access token.
func (s *Server) verifyAccessToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", errors.Wrap(err, "parse access token")
	}

	email, _ := claims["email"].(string)
	jti, _ := claims["jti"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked[jti] {
		return "", errRevoked
	}
	if _, ok := s.users[email]; !ok {
		return "", errors.New("unknown user")
	}
	return email, nil
}
