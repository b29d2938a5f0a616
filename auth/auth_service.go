package auth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-chat-client/apimodel"
	"github.com/jrsteele09/go-chat-client/credentials"
	"github.com/jrsteele09/go-chat-client/gateway"
	apperrors "github.com/jrsteele09/go-chat-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is the part of credentials.Store the auth flows write to.
type Store interface {
	SaveLogin(access, refresh string, id credentials.Identity) error
	UpdateIdentity(id credentials.Identity) error
	Identity() (credentials.Identity, bool)
	Clear() error
}

// Service runs the account flows against the auth endpoints and keeps the
// credential store in step with them.
type Service struct {
	gw        *gateway.Gateway
	store     Store
	validator *Validator
	logger    zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(gw *gateway.Gateway, store Store, options ...ServiceOption) (*Service, error) {
	if gw == nil {
		return nil, errors.New("[NewService] gateway is required")
	}
	if store == nil {
		return nil, errors.New("[NewService] store is required")
	}

	s := &Service{
		gw:        gw,
		store:     store,
		validator: NewValidator(),
		logger:    log.Logger.With().Str("component", "auth").Logger(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login authenticates and stores the session. The username falls back to the
// email when the server does not return one.
func (s *Service) Login(ctx context.Context, email, password string) gateway.Outcome[credentials.Identity] {
	if err := s.validator.ValidateCredentials(email, password); err != nil {
		return invalidInput[credentials.Identity](err)
	}

	out := gateway.Call[apimodel.LoginResponse](ctx, s.gw, gateway.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   apimodel.LoginRequest{Email: email, Password: password},
	})
	if !out.OK {
		return gateway.Outcome[credentials.Identity]{Failure: out.Failure}
	}
	if out.Data.AccessToken == "" || out.Data.RefreshToken == "" {
		return localFailure[credentials.Identity](apperrors.KindServer, apperrors.ErrMissingTokens)
	}

	id := credentials.Identity{Email: out.Data.Email, Username: out.Data.Username}
	if id.Email == "" {
		id.Email = email
	}
	if id.Username == "" {
		id.Username = id.Email
	}
	if err := s.store.SaveLogin(out.Data.AccessToken, out.Data.RefreshToken, id); err != nil {
		return localFailure[credentials.Identity](apperrors.KindUnknown, errors.Wrap(err, "save session"))
	}

	s.logger.Info().Str("email", id.Email).Msg("logged in")
	return gateway.Outcome[credentials.Identity]{OK: true, Data: id}
}

// Logout notifies the server and clears the local session whatever the
// server answers.
func (s *Service) Logout(ctx context.Context) error {
	result := s.gw.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/logout"})
	if !result.OK {
		s.logger.Warn().Err(result.Failure).Msg("server logout failed, clearing local session")
	}
	if err := s.store.Clear(); err != nil {
		return errors.Wrap(err, "[Logout] clear session")
	}
	return nil
}

func (s *Service) Register(ctx context.Context, req apimodel.RegisterRequest) gateway.Outcome[apimodel.UserProfile] {
	if err := s.validator.ValidateEmail(req.Email); err != nil {
		return invalidInput[apimodel.UserProfile](err)
	}
	if err := s.validator.ValidateUsername(req.Username); err != nil {
		return invalidInput[apimodel.UserProfile](err)
	}
	if req.Telephone != "" {
		if err := s.validator.ValidateTelephone(req.Telephone); err != nil {
			return invalidInput[apimodel.UserProfile](err)
		}
	}
	if req.Password == "" {
		return invalidInput[apimodel.UserProfile](ErrPasswordRequired)
	}

	return gateway.Call[apimodel.UserProfile](ctx, s.gw, gateway.Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   req,
	})
}

func (s *Service) Profile(ctx context.Context) gateway.Outcome[apimodel.UserProfile] {
	return gateway.Call[apimodel.UserProfile](ctx, s.gw, gateway.Request{Path: "/auth/profile"})
}

// UpdateProfile sends only the non-nil fields and refreshes the stored
// identity from the server's answer.
func (s *Service) UpdateProfile(ctx context.Context, req apimodel.UpdateProfileRequest) gateway.Outcome[apimodel.UserProfile] {
	if req.Email != nil {
		if err := s.validator.ValidateEmail(*req.Email); err != nil {
			return invalidInput[apimodel.UserProfile](err)
		}
	}
	if req.Username != nil {
		if err := s.validator.ValidateUsername(*req.Username); err != nil {
			return invalidInput[apimodel.UserProfile](err)
		}
	}
	if req.NewPassword != nil && apimodel.Get(req.CurrentPassword) == "" {
		return invalidInput[apimodel.UserProfile](ErrPasswordRequired)
	}

	out := gateway.Call[apimodel.UserProfile](ctx, s.gw, gateway.Request{
		Method: http.MethodPut,
		Path:   "/auth/profile",
		Body:   req,
	})
	if !out.OK {
		return out
	}

	id := credentials.Identity{Email: out.Data.Email, Username: out.Data.Username}
	if err := s.store.UpdateIdentity(id); err != nil {
		s.logger.Err(err).Msg("failed to update stored identity")
	}
	return out
}

func (s *Service) ConfirmEmail(ctx context.Context, token string) gateway.Outcome[apimodel.MessageResponse] {
	return gateway.Call[apimodel.MessageResponse](ctx, s.gw, gateway.Request{
		Path: "/auth/confirm-email/" + url.PathEscape(token),
	})
}

func (s *Service) PasswordRequirements(ctx context.Context) gateway.Outcome[apimodel.PasswordRequirements] {
	return gateway.Call[apimodel.PasswordRequirements](ctx, s.gw, gateway.Request{Path: "/auth/password-requirements"})
}

func (s *Service) ValidatePassword(ctx context.Context, password string) gateway.Outcome[apimodel.PasswordValidation] {
	return gateway.Call[apimodel.PasswordValidation](ctx, s.gw, gateway.Request{
		Method: http.MethodPost,
		Path:   "/auth/validate-password",
		Body:   apimodel.ValidatePasswordRequest{Password: password},
	})
}

// CurrentUser returns the identity of the stored session.
func (s *Service) CurrentUser() (credentials.Identity, bool) {
	return s.store.Identity()
}

func invalidInput[T any](err error) gateway.Outcome[T] {
	return localFailure[T](apperrors.KindValidation, err)
}

func localFailure[T any](kind apperrors.Kind, err error) gateway.Outcome[T] {
	return gateway.Outcome[T]{Failure: &gateway.Failure{Kind: kind, RawMessage: err.Error(), Err: err}}
}
