package fakebackend

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-chat-client/apimodel"
)

type wsConn struct {
	email   string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.writeRaw(data)
}

func (c *wsConn) writeRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WebSocketHandler authenticates the token query parameter before upgrading,
// so an expired token is answered with a plain HTTP 401.
func (s *Server) WebSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.wsAttempts++
		reject := s.rejectUpgrade
		s.mu.Unlock()
		if reject {
			http.Error(w, "websocket unavailable", http.StatusServiceUnavailable)
			return
		}

		email, err := s.verifyAccessToken(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Err(err).Msg("websocket upgrade failed")
			return
		}
		c := &wsConn{email: email, conn: conn}

		s.mu.Lock()
		wasOnline := s.onlineLocked(email)
		s.conns[c] = struct{}{}
		s.mu.Unlock()
		if !wasOnline {
			s.broadcastStatus(email, true)
		}

		defer func() {
			_ = conn.Close()
			s.mu.Lock()
			delete(s.conns, c)
			stillOnline := s.onlineLocked(email)
			s.mu.Unlock()
			if !stillOnline {
				s.broadcastStatus(email, false)
			}
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.handleFrame(c, data)
		}
	}
}

func (s *Server) handleFrame(c *wsConn, data []byte) {
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		_ = c.write(map[string]any{"type": "error", "message": "malformed frame"})
		return
	}

	s.mu.Lock()
	s.frames[c.email] = append(s.frames[c.email], frame)
	s.mu.Unlock()

	str := func(key string) string {
		v, _ := frame[key].(string)
		return v
	}

	switch str("type") {
	case "message":
		receiver, content := str("receiver_email"), str("content")
		if receiver == "" || content == "" {
			_ = c.write(map[string]any{"type": "error", "message": "receiver_email and content are required"})
			return
		}
		msg := apimodel.ChatMessage{
			ID:            uuid.NewString(),
			SenderEmail:   c.email,
			ReceiverEmail: receiver,
			Content:       content,
			Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		}
		s.mu.Lock()
		s.messages = append(s.messages, msg)
		s.mu.Unlock()

		s.sendTo(receiver, struct {
			Type string `json:"type"`
			apimodel.ChatMessage
		}{Type: "message", ChatMessage: msg})
		_ = c.write(map[string]any{"type": "message_sent", "message_id": msg.ID})

	case "typing":
		isTyping, _ := frame["is_typing"].(bool)
		s.sendTo(str("receiver_email"), map[string]any{
			"type":         "typing",
			"sender_email": c.email,
			"is_typing":    isTyping,
		})

	case "read":
		sender := str("sender_email")
		s.mu.Lock()
		s.markReadLocked(sender, c.email)
		s.mu.Unlock()
		s.sendTo(sender, readReceiptFrame(sender, c.email))

	default:
		_ = c.write(map[string]any{"type": "error", "message": "unknown message type"})
	}
}

func readReceiptFrame(sender, reader string) map[string]any {
	return map[string]any{"type": "read_receipt", "sender_email": sender, "reader_email": reader}
}

func (s *Server) broadcastStatus(email string, online bool) {
	frame := map[string]any{"type": "user_status", "user_email": email, "is_online": online}
	for _, c := range s.connections() {
		if c.email != email {
			_ = c.write(frame)
		}
	}
}

func (s *Server) sendTo(email string, v any) {
	for _, c := range s.connections() {
		if c.email == email {
			_ = c.write(v)
		}
	}
}

func (s *Server) connections() []*wsConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}

// onlineLocked reports whether email has an open socket. Caller holds s.mu.
func (s *Server) onlineLocked(email string) bool {
	for c := range s.conns {
		if c.email == email {
			return true
		}
	}
	return false
}

// Connections returns the number of open sockets for email.
func (s *Server) Connections(email string) int {
	n := 0
	for _, c := range s.connections() {
		if c.email == email {
			n++
		}
	}
	return n
}

// Frames returns the decoded frames received from email's sockets.
func (s *Server) Frames(email string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.frames[email]...)
}

// Push writes frame as JSON to every socket of email.
func (s *Server) Push(email string, frame any) {
	s.sendTo(email, frame)
}

// PushRaw writes data unmodified to every socket of email.
func (s *Server) PushRaw(email string, data []byte) {
	for _, c := range s.connections() {
		if c.email == email {
			_ = c.writeRaw(data)
		}
	}
}

// DropConnections closes every socket without a close handshake, as a network
// failure would.
func (s *Server) DropConnections() {
	for _, c := range s.connections() {
		_ = c.conn.UnderlyingConn().Close()
	}
}
