package chat

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/jrsteele09/go-chat-client/apimodel"
	"github.com/jrsteele09/go-chat-client/auth"
	"github.com/jrsteele09/go-chat-client/gateway"
	"github.com/jrsteele09/go-chat-client/realtime"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultHistoryLimit = 50

// Service is the single entry point for chat features: REST queries through
// the gateway and live messaging through the websocket session.
type Service struct {
	gw        *gateway.Gateway
	session   *realtime.Session
	validator *auth.Validator
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger

	mu             sync.RWMutex
	onSessionEnded func(error)
}

type Option func(*Service)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(gw *gateway.Gateway, session *realtime.Session, options ...Option) (*Service, error) {
	if gw == nil {
		return nil, errors.New("[chat.NewService] gateway is required")
	}
	if session == nil {
		return nil, errors.New("[chat.NewService] session is required")
	}

	s := &Service{
		gw:        gw,
		session:   session,
		validator: auth.NewValidator(),
		sanitizer: bluemonday.StrictPolicy(),
		logger:    log.Logger.With().Str("component", "chat").Logger(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Start opens the live connection.
func (s *Service) Start() error {
	return s.session.Connect()
}

// Stop closes the live connection and removes every subscription.
func (s *Service) Stop() {
	s.session.Disconnect()
	s.session.ClearAll()
}

// SendMessage validates content and sends it, queueing while offline. The
// returned ID identifies the message in Pending until it is delivered.
func (s *Service) SendMessage(toEmail, content string) (string, error) {
	if err := s.validator.ValidateEmail(toEmail); err != nil {
		return "", err
	}
	if err := s.validator.ValidateChatMessage(content); err != nil {
		return "", err
	}
	return s.session.Send(realtime.NewMessage(toEmail, content))
}

// SetTyping is best effort and reports whether the signal was sent.
func (s *Service) SetTyping(toEmail string, isTyping bool) bool {
	return s.session.SendTyping(toEmail, isTyping)
}

// MarkRead tells fromEmail over the socket that their messages were read.
func (s *Service) MarkRead(fromEmail string) bool {
	return s.session.SendReadReceipt(fromEmail)
}

func (s *Service) Pending() []realtime.Outbound {
	return s.session.Pending()
}

func (s *Service) Status() realtime.Status {
	return s.session.Status()
}

// FetchHistory returns up to limit messages exchanged with otherEmail, oldest
// first. A non-positive limit uses DefaultHistoryLimit.
func (s *Service) FetchHistory(ctx context.Context, otherEmail string, limit int) gateway.Outcome[[]apimodel.ChatMessage] {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	out := gateway.Call[[]apimodel.ChatMessage](ctx, s.gw, gateway.Request{
		Path:  "/chat/history/" + url.PathEscape(otherEmail),
		Query: url.Values{"limit": {strconv.Itoa(limit)}},
	})
	for i := range out.Data {
		out.Data[i].Content = s.sanitize(out.Data[i].Content)
	}
	return out
}

func (s *Service) FetchUsers(ctx context.Context) gateway.Outcome[[]apimodel.User] {
	return gateway.Call[[]apimodel.User](ctx, s.gw, gateway.Request{Path: "/chat/users"})
}

func (s *Service) FetchRooms(ctx context.Context) gateway.Outcome[[]apimodel.ChatRoom] {
	out := gateway.Call[[]apimodel.ChatRoom](ctx, s.gw, gateway.Request{Path: "/chat/rooms"})
	for i := range out.Data {
		if last := out.Data[i].LastMessage; last != nil {
			last.Content = s.sanitize(last.Content)
		}
	}
	return out
}

func (s *Service) UnreadCount(ctx context.Context) gateway.Outcome[apimodel.UnreadCount] {
	return gateway.Call[apimodel.UnreadCount](ctx, s.gw, gateway.Request{Path: "/chat/unread-count"})
}

// MarkAllRead marks every message from fromEmail as read on the server.
func (s *Service) MarkAllRead(ctx context.Context, fromEmail string) gateway.Outcome[apimodel.MarkReadResponse] {
	return gateway.Call[apimodel.MarkReadResponse](ctx, s.gw, gateway.Request{
		Method: http.MethodPost,
		Path:   "/chat/mark-read/" + url.PathEscape(fromEmail),
	})
}

// On registers a raw handler, replacing any previous handler for eventType.
func (s *Service) On(eventType string, h realtime.Handler) {
	s.session.On(eventType, h)
}

func (s *Service) Off(eventType string) {
	s.session.Off(eventType)
}

// OnChatMessage delivers inbound messages with HTML stripped from the content.
func (s *Service) OnChatMessage(fn func(realtime.ChatMessage)) {
	s.session.On(realtime.EventMessage, func(ev realtime.Event) {
		var msg realtime.ChatMessage
		if s.decode(ev, &msg) {
			msg.Content = s.sanitize(msg.Content)
			fn(msg)
		}
	})
}

func (s *Service) OnTyping(fn func(realtime.Typing)) {
	subscribe(s, realtime.EventTyping, fn)
}

func (s *Service) OnReadReceipt(fn func(realtime.ReadReceipt)) {
	subscribe(s, realtime.EventReadReceipt, fn)
}

func (s *Service) OnUserStatus(fn func(realtime.UserStatus)) {
	subscribe(s, realtime.EventUserStatus, fn)
}

func (s *Service) OnMessageSent(fn func(realtime.MessageSent)) {
	subscribe(s, realtime.EventMessageSent, fn)
}

func (s *Service) OnServerError(fn func(realtime.ServerError)) {
	subscribe(s, realtime.EventError, fn)
}

func (s *Service) OnConnectionStatus(fn func(connected bool)) {
	subscribe(s, realtime.EventConnectionStatus, func(status realtime.ConnectionStatus) {
		fn(status.Connected)
	})
}

// OnSessionEnded is called after a refresh failed and the stored session was
// cleared. The live connection is already closed when it runs.
func (s *Service) OnSessionEnded(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSessionEnded = fn
}

func (s *Service) handleSessionEnded(err error) {
	s.logger.Warn().Err(err).Msg("session ended")
	s.session.Disconnect()

	s.mu.RLock()
	fn := s.onSessionEnded
	s.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func subscribe[T any](s *Service, eventType string, fn func(T)) {
	s.session.On(eventType, func(ev realtime.Event) {
		var payload T
		if s.decode(ev, &payload) {
			fn(payload)
		}
	})
}

func (s *Service) decode(ev realtime.Event, v any) bool {
	if err := ev.Decode(v); err != nil {
		s.logger.Warn().Err(err).Str("type", ev.Type).Msg("dropping undecodable event")
		return false
	}
	return true
}

func (s *Service) sanitize(content string) string {
	return s.sanitizer.Sanitize(content)
}
