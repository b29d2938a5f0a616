package fakebackend

// Route path constants
const (
	// Auth
	RouteAuthLogin                = "/auth/login"
	RouteAuthRefresh              = "/auth/refresh"
	RouteAuthLogout               = "/auth/logout"
	RouteAuthRegister             = "/auth/register"
	RouteAuthProfile              = "/auth/profile"
	RouteAuthConfirmEmail         = "/auth/confirm-email/{token}"
	RouteAuthPasswordRequirements = "/auth/password-requirements"
	RouteAuthValidatePassword     = "/auth/validate-password"

	// Chat
	RouteChatHistory     = "/chat/history/{otherEmail}"
	RouteChatUsers       = "/chat/users"
	RouteChatRooms       = "/chat/rooms"
	RouteChatUnreadCount = "/chat/unread-count"
	RouteChatMarkRead    = "/chat/mark-read/{senderEmail}"

	// WebSocket
	RouteWSChat = "/ws/chat"
)
