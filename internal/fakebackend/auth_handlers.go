package fakebackend

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-chat-client/apimodel"
	"github.com/pkg/errors"
)

var errUserExists = errors.New("user already exists")

func (s *Server) createUser(email, username, password, telephone string) (*user, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return nil, errUserExists
	}
	now := time.Now().UTC()
	u := &user{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		Telephone:    telephone,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[email] = u
	s.confirmations[uuid.NewString()] = email
	return u, nil
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFieldErrors(w, "invalid JSON body")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeFieldErrors(w, "email and password are required")
			return
		}

		s.mu.Lock()
		u, ok := s.users[req.Email]
		s.mu.Unlock()
		if !ok || !checkPassword(u.PasswordHash, req.Password) {
			writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
			return
		}

		s.mu.Lock()
		access, refresh, err := s.issueTokens(u.Email)
		s.mu.Unlock()
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, apimodel.LoginResponse{
			AccessToken:  access,
			RefreshToken: refresh,
			Email:        u.Email,
			Username:     u.Username,
			TokenType:    "bearer",
		})
	}
}

// RefreshHandler rotates the refresh token: the presented one is consumed.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.refreshCalls++
		gate := s.refreshGate
		s.mu.Unlock()
		if gate != nil {
			<-gate
		}

		var req apimodel.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeFieldErrors(w, "refresh_token is required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		email, ok := s.refreshTokens[req.RefreshToken]
		if !ok || s.failRefresh {
			writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		delete(s.refreshTokens, req.RefreshToken)

		access, refresh, err := s.issueTokens(email)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, apimodel.RefreshResponse{AccessToken: access, RefreshToken: refresh})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := callerEmail(r)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failLogout {
			writeDetail(w, http.StatusInternalServerError, "logout failed")
			return
		}
		for token, owner := range s.refreshTokens {
			if owner == email {
				delete(s.refreshTokens, token)
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFieldErrors(w, "invalid JSON body")
			return
		}
		if req.Email == "" || req.Username == "" {
			writeFieldErrors(w, "email and username are required")
			return
		}
		if errs := passwordErrors(req.Password); len(errs) > 0 {
			writeFieldErrors(w, errs...)
			return
		}

		u, err := s.createUser(req.Email, req.Username, req.Password, req.Telephone)
		if errors.Is(err, errUserExists) {
			writeDetail(w, http.StatusConflict, "Email already registered")
			return
		}
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, u.profile())
	}
}

func (s *Server) ConfirmEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")

		s.mu.Lock()
		defer s.mu.Unlock()
		email, ok := s.confirmations[token]
		if !ok {
			writeDetail(w, http.StatusNotFound, "Confirmation token not found")
			return
		}
		delete(s.confirmations, token)
		s.users[email].Confirmed = true
		writeJSON(w, http.StatusOK, apimodel.MessageResponse{Message: "Email confirmed"})
	}
}

func (s *Server) PasswordRequirementsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, requirements)
	}
}

func (s *Server) ValidatePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.ValidatePasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFieldErrors(w, "invalid JSON body")
			return
		}
		errs := passwordErrors(req.Password)
		writeJSON(w, http.StatusOK, apimodel.PasswordValidation{IsValid: len(errs) == 0, Errors: errs})
	}
}

func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		u, ok := s.users[callerEmail(r)]
		if !ok {
			writeDetail(w, http.StatusNotFound, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, u.profile())
	}
}

func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFieldErrors(w, "invalid JSON body")
			return
		}

		var newHash []byte
		if req.NewPassword != nil {
			if errs := passwordErrors(*req.NewPassword); len(errs) > 0 {
				writeFieldErrors(w, errs...)
				return
			}
			hash, err := hashPassword(*req.NewPassword)
			if err != nil {
				writeDetail(w, http.StatusInternalServerError, err.Error())
				return
			}
			newHash = hash
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		u, ok := s.users[callerEmail(r)]
		if !ok {
			writeDetail(w, http.StatusNotFound, "User not found")
			return
		}
		if newHash != nil {
			if req.CurrentPassword == nil || !checkPassword(u.PasswordHash, *req.CurrentPassword) {
				writeDetail(w, http.StatusBadRequest, "Current password is incorrect")
				return
			}
			u.PasswordHash = newHash
		}
		if req.Email != nil && *req.Email != u.Email {
			if _, taken := s.users[*req.Email]; taken {
				writeDetail(w, http.StatusConflict, "Email already registered")
				return
			}
			for token, owner := range s.refreshTokens {
				if owner == u.Email {
					s.refreshTokens[token] = *req.Email
				}
			}
			delete(s.users, u.Email)
			u.Email = *req.Email
			s.users[u.Email] = u
		}
		if req.Username != nil {
			u.Username = *req.Username
		}
		u.UpdatedAt = time.Now().UTC()
		writeJSON(w, http.StatusOK, u.profile())
	}
}
