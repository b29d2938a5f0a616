package fakebackend

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const contextKeyEmail contextKey = "email"

func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}

// RequireAuth validates the Bearer access token and stores the caller's email
// in the request context.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		email, err := s.verifyAccessToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyEmail, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerEmail(r *http.Request) string {
	email, _ := r.Context().Value(contextKeyEmail).(string)
	return email
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

// writeFieldErrors answers 422 with the list form of detail.
func writeFieldErrors(w http.ResponseWriter, msgs ...string) {
	detail := make([]map[string]string, 0, len(msgs))
	for _, msg := range msgs {
		detail = append(detail, map[string]string{"msg": msg})
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": detail})
}
