package apimodel

// ChatMessage is a persisted direct message as returned by /chat/history.
type ChatMessage struct {
	ID            string `json:"id"`
	SenderEmail   string `json:"sender_email"`
	ReceiverEmail string `json:"receiver_email"`
	Content       string `json:"content"`
	Timestamp     string `json:"timestamp"`
	IsRead        bool   `json:"is_read"`
}

// ChatRoom summarises the conversation with one other user.
type ChatRoom struct {
	OtherUserEmail    string       `json:"other_user_email"`
	OtherUserUsername string       `json:"other_user_username,omitempty"`
	LastMessage       *ChatMessage `json:"last_message,omitempty"`
	UnreadCount       int          `json:"unread_count"`
}

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	IsOnline *bool  `json:"is_online,omitempty"`
}

type UnreadCount struct {
	UnreadCount int `json:"unread_count"`
}

type MarkReadResponse struct {
	Success bool `json:"success"`
}
