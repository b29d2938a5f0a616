package refresh

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-chat-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultRefreshTimeout = 30 * time.Second

// Tokens is the rotated pair returned by the refresh endpoint.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
}

type RefresherFunc func(ctx context.Context, refreshToken string) (Tokens, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	return f(ctx, refreshToken)
}

// TokenStore is the slice of credentials.Store the coordinator reads and writes.
type TokenStore interface {
	AccessToken() (string, bool)
	RefreshToken() (string, bool)
	Save(access, refresh string) error
	Clear() error
}

// Replay re-issues a request that failed with 401 using a fresh access token.
type Replay func(ctx context.Context, accessToken string) (*http.Response, error)

type outcome struct {
	token string
	err   error
}

// Coordinator guarantees at most one refresh call in flight per session.
// Callers that hit a 401 while a refresh is running wait for its outcome
// instead of starting another one.
type Coordinator struct {
	store          TokenStore
	refresher      Refresher
	onSessionEnded func(error)
	refreshTimeout time.Duration
	logger         zerolog.Logger

	mu         sync.Mutex
	refreshing bool
	waiters    []chan outcome
}

type Option func(*Coordinator)

// WithSessionEndedHandler is called after a refresh fails and the session has
// been cleared. The application should send the user back to login.
func WithSessionEndedHandler(fn func(error)) Option {
	return func(c *Coordinator) {
		c.onSessionEnded = fn
	}
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.refreshTimeout = d
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func NewCoordinator(store TokenStore, refresher Refresher, options ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("[NewCoordinator] store is required")
	}
	if refresher == nil {
		return nil, errors.New("[NewCoordinator] refresher is required")
	}
	c := &Coordinator{
		store:          store,
		refresher:      refresher,
		refreshTimeout: defaultRefreshTimeout,
		logger:         log.Logger.With().Str("component", "refresh").Logger(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Handle renews the access token and replays the failed request once with it.
// staleToken is the token the failed request carried.
func (c *Coordinator) Handle(ctx context.Context, staleToken string, replay Replay) (*http.Response, error) {
	token, err := c.Renew(ctx, staleToken)
	if err != nil {
		return nil, err
	}
	return replay(ctx, token)
}

// Renew returns an access token newer than staleToken, refreshing at most once
// across all concurrent callers.
func (c *Coordinator) Renew(ctx context.Context, staleToken string) (string, error) {
	c.mu.Lock()
	if !c.refreshing {
		// A refresh finished after this caller's request went out.
		if current, ok := c.store.AccessToken(); ok && current != staleToken {
			c.mu.Unlock()
			return current, nil
		}
		c.refreshing = true
		c.mu.Unlock()
		return c.lead(ctx)
	}

	w := make(chan outcome, 1)
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	select {
	case o := <-w:
		return o.token, o.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// lead performs the refresh call on behalf of every waiter.
func (c *Coordinator) lead(ctx context.Context) (string, error) {
	token, err := c.refresh(ctx)
	if err != nil && c.onSessionEnded != nil {
		c.onSessionEnded(err)
	}
	return token, err
}

func (c *Coordinator) refresh(ctx context.Context) (token string, err error) {
	defer func() {
		c.settle(outcome{token: token, err: err})
	}()

	refreshToken, ok := c.store.RefreshToken()
	if !ok {
		return "", c.fail(apperrors.ErrNoRefreshToken)
	}

	// The refresh is shared, one caller giving up must not fail it for the others.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	c.logger.Debug().Msg("refreshing access token")
	tokens, err := c.refresher.Refresh(rctx, refreshToken)
	if err != nil {
		return "", c.fail(err)
	}
	if err := c.store.Save(tokens.AccessToken, tokens.RefreshToken); err != nil {
		return "", c.fail(errors.Wrap(err, "save refreshed tokens"))
	}
	c.logger.Debug().Msg("access token refreshed")
	return tokens.AccessToken, nil
}

// fail clears the session before waiters are released so none of them can
// start a refresh with the rejected refresh token.
func (c *Coordinator) fail(cause error) error {
	c.logger.Warn().Err(cause).Msg("token refresh failed, ending session")
	if err := c.store.Clear(); err != nil {
		c.logger.Err(err).Msg("failed to clear credentials")
	}
	return fmt.Errorf("%w: %w", apperrors.ErrAuthentication, cause)
}

func (c *Coordinator) settle(o outcome) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	if o.err != nil {
		o.err = fmt.Errorf("%w: %w", apperrors.ErrSessionEnded, o.err)
	}
	for _, w := range waiters {
		w <- o
	}
}

// Refreshing reports whether a refresh call is in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Waiting returns the number of callers blocked on the in-flight refresh.
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
