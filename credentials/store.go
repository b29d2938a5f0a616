package credentials

import (
	"sync"

	apperrors "github.com/jrsteele09/go-chat-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var _ oauth2.TokenSource = (*Store)(nil)

// Store owns the session credentials. Every mutation writes the tokens and the
// identity in one repo batch and swaps the in-memory snapshot under the same
// lock, so readers never observe a half-written session.
type Store struct {
	repo    Repo
	logger  zerolog.Logger
	mu      sync.RWMutex
	current Credentials
}

type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore loads any persisted session from repo.
func NewStore(repo Repo, options ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, errors.New("[NewStore] repo is required")
	}
	s := &Store{
		repo:   repo,
		logger: log.Logger.With().Str("component", "credentials").Logger(),
	}
	for _, opt := range options {
		opt(s)
	}
	if err := s.load(); err != nil {
		return nil, errors.Wrap(err, "[NewStore] load")
	}
	return s, nil
}

func (s *Store) load() error {
	values := make(map[string]string, len(SessionKeys))
	for _, key := range SessionKeys {
		v, err := s.repo.Get(key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return errors.Wrapf(err, "get %s", key)
		}
		values[key] = v
	}

	access := values[KeyAccessToken]
	if access == "" {
		access = values[KeyLegacyToken]
	}
	email := values[KeyUserEmail]

	if access != "" && email == "" {
		s.logger.Warn().Msg("stored token has no identity, discarding session")
		return s.repo.Apply(Batch{Deletes: SessionKeys})
	}
	if access == "" {
		return nil
	}

	username := values[KeyUsername]
	if username == "" {
		username = email
	}
	s.current = Credentials{
		AccessToken:  access,
		RefreshToken: values[KeyRefreshToken],
		Identity:     &Identity{Email: email, Username: username},
	}
	return nil
}

func (s *Store) Snapshot() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.current
	if c.Identity != nil {
		id := *c.Identity
		c.Identity = &id
	}
	return c
}

func (s *Store) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.AccessToken, s.current.AccessToken != ""
}

func (s *Store) RefreshToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.RefreshToken, s.current.RefreshToken != ""
}

func (s *Store) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.Identity == nil {
		return Identity{}, false
	}
	return *s.current.Identity, true
}

// Token implements oauth2.TokenSource.
func (s *Store) Token() (*oauth2.Token, error) {
	c := s.Snapshot()
	if !c.Authenticated() {
		return nil, apperrors.ErrNoSession
	}
	return c.OAuth2Token(), nil
}

// SaveLogin stores a fresh session.
func (s *Store) SaveLogin(access, refresh string, id Identity) error {
	if access == "" || refresh == "" {
		return apperrors.ErrMissingTokens
	}
	if id.Email == "" {
		return apperrors.ErrMissingIdentity
	}
	if id.Username == "" {
		id.Username = id.Email
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.repo.Apply(Batch{Puts: map[string]string{
		KeyAccessToken:  access,
		KeyLegacyToken:  access,
		KeyRefreshToken: refresh,
		KeyUserEmail:    id.Email,
		KeyUsername:     id.Username,
	}})
	if err != nil {
		return errors.Wrap(err, "[SaveLogin] apply")
	}
	s.current = Credentials{AccessToken: access, RefreshToken: refresh, Identity: &id}
	return nil
}

// Save replaces both tokens after a refresh. The identity from login is kept;
// tokens are never stored without one.
func (s *Store) Save(access, refresh string) error {
	if access == "" || refresh == "" {
		return apperrors.ErrMissingTokens
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Identity == nil {
		return apperrors.ErrMissingIdentity
	}
	err := s.repo.Apply(Batch{Puts: map[string]string{
		KeyAccessToken:  access,
		KeyLegacyToken:  access,
		KeyRefreshToken: refresh,
	}})
	if err != nil {
		return errors.Wrap(err, "[Save] apply")
	}
	s.current.AccessToken = access
	s.current.RefreshToken = refresh
	return nil
}

// UpdateIdentity records profile changes for the current session.
func (s *Store) UpdateIdentity(id Identity) error {
	if id.Email == "" {
		return apperrors.ErrMissingIdentity
	}
	if id.Username == "" {
		id.Username = id.Email
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.AccessToken == "" {
		return apperrors.ErrNoSession
	}
	err := s.repo.Apply(Batch{Puts: map[string]string{
		KeyUserEmail: id.Email,
		KeyUsername:  id.Username,
	}})
	if err != nil {
		return errors.Wrap(err, "[UpdateIdentity] apply")
	}
	s.current.Identity = &id
	return nil
}

// Clear removes every session key.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Apply(Batch{Deletes: SessionKeys}); err != nil {
		return errors.Wrap(err, "[Clear] apply")
	}
	s.current = Credentials{}
	return nil
}

func (s *Store) Close() error {
	return s.repo.Close()
}
