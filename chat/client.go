package chat

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-chat-client/auth"
	"github.com/jrsteele09/go-chat-client/credentials"
	"github.com/jrsteele09/go-chat-client/gateway"
	"github.com/jrsteele09/go-chat-client/internal/config"
	"github.com/jrsteele09/go-chat-client/internal/logging"
	"github.com/jrsteele09/go-chat-client/realtime"
	"github.com/pkg/errors"
)

// ClientConfig is the configuration NewClient needs.
type ClientConfig interface {
	GetAPIBaseURL() string
	GetWSBaseURL() string
	config.TransportConfig
}

// Client is a fully wired chat client. The store and the refresh coordinator
// are shared by the gateway and the websocket session.
type Client struct {
	Store   *credentials.Store
	Gateway *gateway.Gateway
	Session *realtime.Session
	Auth    *auth.Service
	Chat    *Service
}

// NewClient wires a client on top of repo.
func NewClient(cfg ClientConfig, repo credentials.Repo) (*Client, error) {
	store, err := credentials.NewStore(repo, credentials.WithLogger(logging.Component("credentials")))
	if err != nil {
		return nil, errors.Wrap(err, "[NewClient] credentials store")
	}

	// The chat service is created last but must hear about session ends
	// raised by the gateway's coordinator.
	var chatService *Service
	gw, err := gateway.New(cfg.GetAPIBaseURL(), store,
		gateway.WithHTTPClient(&http.Client{Timeout: cfg.GetHTTPTimeout()}),
		gateway.WithLogger(logging.Component("gateway")),
		gateway.WithSessionEndedHandler(func(err error) {
			if chatService != nil {
				chatService.handleSessionEnded(err)
			}
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[NewClient] gateway")
	}

	session, err := realtime.New(cfg.GetWSBaseURL(), store,
		realtime.WithRenewer(gw.Coordinator()),
		realtime.WithMaxReconnectAttempts(cfg.GetMaxReconnectAttempts()),
		realtime.WithReconnectInterval(cfg.GetReconnectInterval()),
		realtime.WithMaxQueuedMessages(cfg.GetMaxQueuedMessages()),
		realtime.WithLogger(logging.Component("realtime")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[NewClient] websocket session")
	}

	authService, err := auth.NewService(gw, store, auth.WithLogger(logging.Component("auth")))
	if err != nil {
		return nil, errors.Wrap(err, "[NewClient] auth service")
	}

	chatService, err = NewService(gw, session, WithLogger(logging.Component("chat")))
	if err != nil {
		return nil, errors.Wrap(err, "[NewClient] chat service")
	}

	return &Client{
		Store:   store,
		Gateway: gw,
		Session: session,
		Auth:    authService,
		Chat:    chatService,
	}, nil
}

// Logout ends the session on the server, clears the stored tokens and closes
// the live connection. The connection is closed even when clearing fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.Session.Disconnect()
	return c.Auth.Logout(ctx)
}

// Close stops the live connection and releases the credential store.
func (c *Client) Close() error {
	c.Chat.Stop()
	return c.Store.Close()
}
