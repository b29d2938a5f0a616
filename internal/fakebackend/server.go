// Package fakebackend is an in-memory chat backend speaking the same HTTP and
// WebSocket protocol as the real service. It exists for tests and local runs
// of the CLI.
package fakebackend

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-chat-client/apimodel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultAccessTTL = 15 * time.Minute
	bcryptCost       = 4
)

type user struct {
	ID           string
	Email        string
	Username     string
	Telephone    string
	PasswordHash []byte
	Confirmed    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *user) profile() apimodel.UserProfile {
	return apimodel.UserProfile{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Telephone: u.Telephone,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}

type Server struct {
	router    chi.Router
	secret    []byte
	accessTTL time.Duration
	logger    zerolog.Logger
	upgrader  websocket.Upgrader

	mu            sync.Mutex
	users         map[string]*user
	confirmations map[string]string
	refreshTokens map[string]string
	issued        []string
	revoked       map[string]bool
	messages      []apimodel.ChatMessage
	conns         map[*wsConn]struct{}
	frames        map[string][]map[string]any

	// test hooks
	refreshCalls  int
	wsAttempts    int
	failRefresh   bool
	failLogout    bool
	rejectUpgrade bool
	refreshGate   chan struct{}
}

type Option func(*Server)

func WithSecret(secret string) Option {
	return func(s *Server) {
		s.secret = []byte(secret)
	}
}

// WithAccessTTL sets the lifetime of issued access tokens. A negative value
// issues tokens that are already expired.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = d
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(options ...Option) *Server {
	s := &Server{
		secret:        []byte("fakebackend-secret"),
		accessTTL:     defaultAccessTTL,
		logger:        log.Logger.With().Str("component", "fakebackend").Logger(),
		users:         make(map[string]*user),
		confirmations: make(map[string]string),
		refreshTokens: make(map[string]string),
		revoked:       make(map[string]bool),
		conns:         make(map[*wsConn]struct{}),
		frames:        make(map[string][]map[string]any),
	}
	for _, opt := range options {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	s.initRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddUser registers a confirmed account.
func (s *Server) AddUser(email, username, password string) error {
	if _, err := s.createUser(email, username, password, ""); err != nil {
		return errors.Wrap(err, "[AddUser]")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email].Confirmed = true
	return nil
}

// RefreshCalls returns how many requests reached /auth/refresh.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// WebSocketAttempts returns how many handshakes reached /ws/chat, accepted or not.
func (s *Server) WebSocketAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wsAttempts
}

// ExpireAccessTokens revokes every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, jti := range s.issued {
		s.revoked[jti] = true
	}
}

// FailRefresh makes /auth/refresh answer 401.
func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// FailLogout makes /auth/logout answer 500.
func (s *Server) FailLogout(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogout = fail
}

// HoldRefresh blocks /auth/refresh until the returned function is called.
func (s *Server) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.refreshGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.refreshGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// RejectWebSockets makes handshakes fail with 503.
func (s *Server) RejectWebSockets(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectUpgrade = reject
}

// ConfirmationToken returns the pending email confirmation token for email.
func (s *Server) ConfirmationToken(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, e := range s.confirmations {
		if e == email {
			return token, true
		}
	}
	return "", false
}

// Messages returns a copy of every stored chat message.
func (s *Server) Messages() []apimodel.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]apimodel.ChatMessage(nil), s.messages...)
}
