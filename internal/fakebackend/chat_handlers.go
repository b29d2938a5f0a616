package fakebackend

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-chat-client/apimodel"
)

const defaultHistoryLimit = 50

func between(m apimodel.ChatMessage, a, b string) bool {
	return (m.SenderEmail == a && m.ReceiverEmail == b) || (m.SenderEmail == b && m.ReceiverEmail == a)
}

func (s *Server) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := callerEmail(r)
		other := chi.URLParam(r, "otherEmail")

		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeFieldErrors(w, "limit must be a positive integer")
				return
			}
			limit = n
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.users[other]; !ok {
			writeDetail(w, http.StatusNotFound, "User not found")
			return
		}

		history := []apimodel.ChatMessage{}
		for _, m := range s.messages {
			if between(m, me, other) {
				history = append(history, m)
			}
		}
		if len(history) > limit {
			history = history[len(history)-limit:]
		}
		writeJSON(w, http.StatusOK, history)
	}
}

func (s *Server) UsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := callerEmail(r)

		s.mu.Lock()
		defer s.mu.Unlock()
		users := []apimodel.User{}
		for _, u := range s.users {
			if u.Email == me {
				continue
			}
			online := s.onlineLocked(u.Email)
			users = append(users, apimodel.User{ID: u.ID, Email: u.Email, Username: u.Username, IsOnline: &online})
		}
		sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
		writeJSON(w, http.StatusOK, users)
	}
}

func (s *Server) RoomsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := callerEmail(r)

		s.mu.Lock()
		defer s.mu.Unlock()
		rooms := map[string]*apimodel.ChatRoom{}
		for i := range s.messages {
			m := s.messages[i]
			var other string
			switch me {
			case m.SenderEmail:
				other = m.ReceiverEmail
			case m.ReceiverEmail:
				other = m.SenderEmail
			default:
				continue
			}
			room, ok := rooms[other]
			if !ok {
				room = &apimodel.ChatRoom{OtherUserEmail: other}
				if u, ok := s.users[other]; ok {
					room.OtherUserUsername = u.Username
				}
				rooms[other] = room
			}
			room.LastMessage = &m
			if m.ReceiverEmail == me && !m.IsRead {
				room.UnreadCount++
			}
		}

		result := make([]apimodel.ChatRoom, 0, len(rooms))
		for _, room := range rooms {
			result = append(result, *room)
		}
		sort.Slice(result, func(i, j int) bool {
			return result[i].LastMessage.Timestamp > result[j].LastMessage.Timestamp
		})
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) UnreadCountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := callerEmail(r)

		s.mu.Lock()
		defer s.mu.Unlock()
		count := 0
		for _, m := range s.messages {
			if m.ReceiverEmail == me && !m.IsRead {
				count++
			}
		}
		writeJSON(w, http.StatusOK, apimodel.UnreadCount{UnreadCount: count})
	}
}

func (s *Server) MarkReadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := callerEmail(r)
		sender := chi.URLParam(r, "senderEmail")

		s.mu.Lock()
		marked := s.markReadLocked(sender, me)
		s.mu.Unlock()

		if marked > 0 {
			s.sendTo(sender, readReceiptFrame(sender, me))
		}
		writeJSON(w, http.StatusOK, apimodel.MarkReadResponse{Success: true})
	}
}

// markReadLocked marks sender's messages to reader as read. Caller holds s.mu.
func (s *Server) markReadLocked(sender, reader string) int {
	marked := 0
	for i := range s.messages {
		m := &s.messages[i]
		if m.SenderEmail == sender && m.ReceiverEmail == reader && !m.IsRead {
			m.IsRead = true
			marked++
		}
	}
	return marked
}
