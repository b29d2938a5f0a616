package fakebackend

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) initRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer, s.LoggingMiddleware)

	r.Post(RouteAuthLogin, s.LoginHandler())
	r.Post(RouteAuthRefresh, s.RefreshHandler())
	r.Post(RouteAuthRegister, s.RegisterHandler())
	r.Get(RouteAuthConfirmEmail, s.ConfirmEmailHandler())
	r.Get(RouteAuthPasswordRequirements, s.PasswordRequirementsHandler())
	r.Post(RouteAuthValidatePassword, s.ValidatePasswordHandler())

	r.Group(func(r chi.Router) {
		r.Use(s.RequireAuth)

		r.Post(RouteAuthLogout, s.LogoutHandler())
		r.Get(RouteAuthProfile, s.ProfileHandler())
		r.Put(RouteAuthProfile, s.UpdateProfileHandler())

		r.Get(RouteChatHistory, s.HistoryHandler())
		r.Get(RouteChatUsers, s.UsersHandler())
		r.Get(RouteChatRooms, s.RoomsHandler())
		r.Get(RouteChatUnreadCount, s.UnreadCountHandler())
		r.Post(RouteChatMarkRead, s.MarkReadHandler())
	})

	r.Get(RouteWSChat, s.WebSocketHandler())
	s.router = r
}
