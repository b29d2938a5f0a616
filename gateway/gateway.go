package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-chat-client/internal/errors"
	"github.com/jrsteele09/go-chat-client/token/refresh"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	loginPath   = "/auth/login"
	refreshPath = "/auth/refresh"

	defaultTimeout = 15 * time.Second
)

// Store is the credential store the gateway reads bearer tokens from.
type Store interface {
	refresh.TokenStore
	Token() (*oauth2.Token, error)
}

// Request describes one call relative to the API base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON encoded when non-nil.
	Body any
}

// Gateway performs authenticated HTTP calls against the chat API. A 401 on a
// protected path triggers one shared token refresh and a single replay.
type Gateway struct {
	baseURL        string
	client         *http.Client
	store          Store
	coordinator    *refresh.Coordinator
	onSessionEnded func(error)
	logger         zerolog.Logger
}

type Option func(*Gateway)

func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithCoordinator shares an existing coordinator, typically with the websocket session.
func WithCoordinator(c *refresh.Coordinator) Option {
	return func(g *Gateway) {
		g.coordinator = c
	}
}

// WithSessionEndedHandler is passed to the coordinator the gateway creates.
// It has no effect together with WithCoordinator.
func WithSessionEndedHandler(fn func(error)) Option {
	return func(g *Gateway) {
		g.onSessionEnded = fn
	}
}

func New(baseURL string, store Store, options ...Option) (*Gateway, error) {
	if baseURL == "" {
		return nil, errors.New("[gateway.New] base URL is required")
	}
	if store == nil {
		return nil, errors.New("[gateway.New] store is required")
	}

	g := &Gateway{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		store:   store,
		logger:  log.Logger.With().Str("component", "gateway").Logger(),
	}
	for _, opt := range options {
		opt(g)
	}

	if g.coordinator == nil {
		coordinatorOptions := []refresh.Option{refresh.WithLogger(g.logger)}
		if g.onSessionEnded != nil {
			coordinatorOptions = append(coordinatorOptions, refresh.WithSessionEndedHandler(g.onSessionEnded))
		}
		c, err := refresh.NewCoordinator(store, g, coordinatorOptions...)
		if err != nil {
			return nil, errors.Wrap(err, "[gateway.New] coordinator")
		}
		g.coordinator = c
	}
	return g, nil
}

// Coordinator returns the refresh coordinator so other transports can share it.
func (g *Gateway) Coordinator() *refresh.Coordinator {
	return g.coordinator
}

// Do executes req and never returns a raw transport error: every failure is
// normalised into Result.Failure.
func (g *Gateway) Do(ctx context.Context, req Request) Result {
	resp, err := g.execute(ctx, req, g.accessToken(), false)
	if err != nil {
		return failed(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed(errors.Wrap(err, "read response body"))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Warn().Int("status", resp.StatusCode).Str("path", req.Path).Msg("HTTP error")
		return Result{
			StatusCode: resp.StatusCode,
			Body:       body,
			Failure:    newFailure(resp.StatusCode, body),
		}
	}
	return Result{OK: true, StatusCode: resp.StatusCode, Body: body}
}

// execute sends the request and, for a first 401 on a protected path, hands
// it to the coordinator. The replay runs with retried set so a second 401 is
// returned as is.
func (g *Gateway) execute(ctx context.Context, req Request, token string, retried bool) (*http.Response, error) {
	resp, err := g.roundTrip(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || retried || !refreshable(req.Path) {
		return resp, nil
	}
	discard(resp)

	return g.coordinator.Handle(ctx, token, func(ctx context.Context, fresh string) (*http.Response, error) {
		return g.execute(ctx, req, fresh, true)
	})
}

func (g *Gateway) roundTrip(ctx context.Context, req Request, token string) (*http.Response, error) {
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request body")
		}
		body = bytes.NewReader(data)
	}

	target := g.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, req.Path)
	}
	return resp, nil
}

func (g *Gateway) accessToken() string {
	tok, err := g.store.Token()
	if err != nil {
		return ""
	}
	return tok.AccessToken
}

// refreshable reports whether a 401 on path may be answered with a token refresh.
func refreshable(path string) bool {
	return path != loginPath && path != refreshPath
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func failed(err error) Result {
	if apperrors.Is(err, apperrors.ErrAuthentication) {
		return Result{
			StatusCode: http.StatusUnauthorized,
			Failure: &Failure{
				Kind:       apperrors.KindAuthentication,
				StatusCode: http.StatusUnauthorized,
				RawMessage: err.Error(),
				Err:        err,
			},
		}
	}
	return Result{Failure: &Failure{Kind: apperrors.KindNetwork, RawMessage: err.Error(), Err: err}}
}
