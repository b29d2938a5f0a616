package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-chat-client/credentials"
	apperrors "github.com/jrsteele09/go-chat-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	chatPath = "/ws/chat"

	defaultMaxReconnectAttempts = 5
	defaultReconnectInterval    = 3 * time.Second
	defaultMaxQueuedMessages    = 500
	defaultHandshakeTimeout     = 10 * time.Second
	closeGracePeriod            = time.Second
)

type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// errUnencodable marks a frame that can never be written, as opposed to a
// transport failure that a later connection may get past.
var errUnencodable = errors.New("outbound frame cannot be encoded")

// TokenStore supplies the access token used in the handshake.
type TokenStore interface {
	Snapshot() credentials.Credentials
}

// Renewer returns an access token newer than staleToken.
type Renewer interface {
	Renew(ctx context.Context, staleToken string) (string, error)
}

// Session is a reconnecting websocket connection to the chat endpoint with an
// outbound queue and per-type dispatch of inbound frames.
type Session struct {
	baseURL              string
	store                TokenStore
	renewer              Renewer
	dialer               *websocket.Dialer
	maxReconnectAttempts int
	reconnectInterval    time.Duration
	maxQueuedMessages    int
	logger               zerolog.Logger

	mu          sync.Mutex
	status      Status
	attempts    int
	queue       []Outbound
	conn        *websocket.Conn
	generation  uint64
	intentional bool
	draining    bool
	retry       *time.Timer
	cancelDial  context.CancelFunc

	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[string]Handler
}

type Option func(*Session)

// WithRenewer lets the session renew an expired or rejected token before dialling.
func WithRenewer(r Renewer) Option {
	return func(s *Session) {
		s.renewer = r
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) {
		s.dialer = d
	}
}

func WithMaxReconnectAttempts(n int) Option {
	return func(s *Session) {
		s.maxReconnectAttempts = n
	}
}

func WithReconnectInterval(d time.Duration) Option {
	return func(s *Session) {
		s.reconnectInterval = d
	}
}

// WithMaxQueuedMessages bounds the outbound queue; Send fails with
// ErrQueueFull once it is reached.
func WithMaxQueuedMessages(n int) Option {
	return func(s *Session) {
		s.maxQueuedMessages = n
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates a disconnected session. baseURL is the ws:// or wss:// origin.
func New(baseURL string, store TokenStore, options ...Option) (*Session, error) {
	if baseURL == "" {
		return nil, errors.New("[realtime.New] base URL is required")
	}
	if store == nil {
		return nil, errors.New("[realtime.New] store is required")
	}

	s := &Session{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		store:   store,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		maxReconnectAttempts: defaultMaxReconnectAttempts,
		reconnectInterval:    defaultReconnectInterval,
		maxQueuedMessages:    defaultMaxQueuedMessages,
		logger:               log.Logger.With().Str("component", "realtime").Logger(),
		handlers:             make(map[string]Handler),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Connect starts connecting in the background. It is a no-op while connecting
// or connected. A manual call resets the reconnect budget.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked()
}

func (s *Session) connectLocked() error {
	if s.status != Disconnected {
		return nil
	}
	s.stopRetryLocked()
	s.attempts = 0
	s.intentional = false
	return s.dialLocked()
}

// dialLocked moves to Connecting and dials on its own goroutine. Caller holds s.mu.
func (s *Session) dialLocked() error {
	creds := s.store.Snapshot()
	if creds.AccessToken == "" {
		return errors.Wrap(apperrors.ErrAuthentication, "websocket connect")
	}

	s.status = Connecting
	s.generation++
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelDial = cancel
	go s.dial(ctx, s.generation, creds)
	return nil
}

func (s *Session) dial(ctx context.Context, gen uint64, creds credentials.Credentials) {
	token := creds.AccessToken
	if s.renewer != nil && creds.Expired(time.Now()) {
		fresh, err := s.renewer.Renew(ctx, token)
		if err != nil {
			s.handleClose(gen, err)
			return
		}
		token = fresh
	}

	s.logger.Debug().Uint64("generation", gen).Msg("dialling chat websocket")
	conn, resp, err := s.dialer.DialContext(ctx, s.endpoint(token), nil)
	if err != nil && resp != nil && resp.StatusCode == http.StatusUnauthorized && s.renewer != nil {
		fresh, rerr := s.renewer.Renew(ctx, token)
		if rerr != nil {
			s.handleClose(gen, rerr)
			return
		}
		conn, _, err = s.dialer.DialContext(ctx, s.endpoint(fresh), nil)
	}
	if err != nil {
		s.handleClose(gen, errors.Wrap(err, "websocket dial"))
		return
	}
	s.opened(gen, conn)
}

func (s *Session) endpoint(token string) string {
	return s.baseURL + chatPath + "?token=" + url.QueryEscape(token)
}

func (s *Session) opened(gen uint64, conn *websocket.Conn) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	s.conn = conn
	s.status = Connected
	s.attempts = 0
	s.draining = true
	s.mu.Unlock()

	s.logger.Info().Msg("chat websocket connected")
	s.dispatch(newEvent(EventConnectionStatus, ConnectionStatus{Connected: true}))
	s.drain(gen, conn)
	go s.readLoop(gen, conn)
}

// drain flushes queued frames in order. A failed write leaves that frame and
// everything behind it queued for the next connection.
func (s *Session) drain(gen uint64, conn *websocket.Conn) {
	for {
		s.mu.Lock()
		if gen != s.generation || s.status != Connected || len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.mu.Unlock()

		err := s.write(conn, next)
		if err != nil && !errors.Is(err, errUnencodable) {
			s.logger.Warn().Err(err).Msg("failed to flush queued message")
			s.mu.Lock()
			s.draining = false
			s.mu.Unlock()
			return
		}
		if err != nil {
			s.logger.Error().Err(err).Str("local_id", next.LocalID).Msg("dropping unencodable queued message")
		}

		s.mu.Lock()
		if len(s.queue) > 0 && s.queue[0].LocalID == next.LocalID {
			s.queue = s.queue[1:]
		}
		s.mu.Unlock()
	}
}

func (s *Session) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleClose(gen, err)
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			s.logger.Warn().Err(err).Str("frame", string(data)).Msg("dropping malformed frame")
			continue
		}
		ev.Raw = data
		s.dispatch(ev)
	}
}

// handleClose runs once per dial or connection. Callbacks from a connection
// that Disconnect or a newer dial replaced are ignored by generation.
func (s *Session) handleClose(gen uint64, cause error) {
	s.mu.Lock()
	if gen != s.generation || s.intentional {
		s.mu.Unlock()
		return
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.cancelDial = nil
	s.status = Disconnected
	s.draining = false

	terminal := errors.Is(cause, apperrors.ErrAuthentication)
	if !terminal && s.attempts < s.maxReconnectAttempts {
		s.attempts++
		attempt := s.attempts
		s.retry = time.AfterFunc(s.reconnectInterval, func() {
			s.retryFired(gen)
		})
		s.logger.Info().Err(cause).Int("attempt", attempt).Dur("in", s.reconnectInterval).Msg("chat websocket closed, reconnecting")
	} else {
		s.logger.Warn().Err(cause).Msg("chat websocket closed, giving up")
	}
	s.mu.Unlock()

	s.dispatch(newEvent(EventConnectionStatus, ConnectionStatus{Connected: false}))
}

func (s *Session) retryFired(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.status != Disconnected || s.intentional {
		return
	}
	s.retry = nil
	if err := s.dialLocked(); err != nil {
		s.logger.Warn().Err(err).Msg("reconnect skipped")
	}
}

func (s *Session) stopRetryLocked() {
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}

// Disconnect closes the connection with a normal closure, cancels any pending
// dial or retry and drops queued frames. It never triggers a reconnect.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.intentional = true
	s.generation++
	s.stopRetryLocked()
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	conn := s.conn
	s.conn = nil
	s.queue = nil
	s.draining = false
	s.status = Disconnected
	s.mu.Unlock()

	if conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	_ = conn.Close()
	s.logger.Info().Msg("chat websocket disconnected")
}

// Send writes msg now when connected and nothing older is waiting; otherwise
// it is queued and, unless a retry is already scheduled, a dial is started.
// Sending never restores a spent reconnect budget, only Connect does. The
// returned ID matches the frame's entry in Pending until it is flushed.
func (s *Session) Send(msg Outbound) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if msg.LocalID == "" {
		msg.LocalID = uuid.NewString()
	}

	s.mu.Lock()
	if s.status == Connected && len(s.queue) == 0 && !s.draining {
		conn := s.conn
		s.mu.Unlock()
		if err := s.write(conn, msg); err != nil {
			if errors.Is(err, errUnencodable) {
				return "", err
			}
			s.logger.Warn().Err(err).Msg("send failed, message queued")
			s.requeue(msg)
		}
		return msg.LocalID, nil
	}
	defer s.mu.Unlock()

	if len(s.queue) >= s.maxQueuedMessages {
		return "", apperrors.ErrQueueFull
	}
	s.queue = append(s.queue, msg)
	if s.status == Disconnected && s.retry == nil {
		s.intentional = false
		if err := s.dialLocked(); err != nil {
			s.logger.Debug().Err(err).Msg("message queued until a session exists")
		}
	}
	return msg.LocalID, nil
}

// requeue puts a message whose direct write failed back at the head of the
// queue, ahead of anything sent after it.
func (s *Session) requeue(msg Outbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append([]Outbound{msg}, s.queue...)
}

// SendTyping is best effort: it is dropped unless connected.
func (s *Session) SendTyping(receiverEmail string, isTyping bool) bool {
	return s.sendNow(NewTyping(receiverEmail, isTyping))
}

// SendReadReceipt is best effort: it is dropped unless connected.
func (s *Session) SendReadReceipt(senderEmail string) bool {
	return s.sendNow(NewReadReceipt(senderEmail))
}

func (s *Session) sendNow(msg Outbound) bool {
	s.mu.Lock()
	conn := s.conn
	connected := s.status == Connected
	s.mu.Unlock()
	if !connected || conn == nil {
		return false
	}
	if err := s.write(conn, msg); err != nil {
		s.logger.Debug().Err(err).Str("type", msg.Type).Msg("signal dropped")
		return false
	}
	return true
}

func (s *Session) write(conn *websocket.Conn, msg Outbound) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", errUnencodable, err)
	}
	if conn == nil {
		return apperrors.ErrNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// On registers the handler for eventType, replacing any previous one.
func (s *Session) On(eventType string, h Handler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[eventType] = h
}

func (s *Session) Off(eventType string) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	delete(s.handlers, eventType)
}

func (s *Session) ClearAll() {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers = make(map[string]Handler)
}

func (s *Session) dispatch(ev Event) {
	s.handlersMu.RLock()
	h := s.handlers[ev.Type]
	s.handlersMu.RUnlock()
	if h == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("type", ev.Type).Msg("event handler panicked")
		}
	}()
	h(ev)
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Attempts returns the reconnect attempts made since the last successful open.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Pending returns a copy of the frames waiting to be sent.
func (s *Session) Pending() []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Outbound(nil), s.queue...)
}
