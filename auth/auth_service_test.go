package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-chat-client/apimodel"
	"github.com/jrsteele09/go-chat-client/auth"
	"github.com/jrsteele09/go-chat-client/credentials"
	"github.com/jrsteele09/go-chat-client/credentials/repofake"
	"github.com/jrsteele09/go-chat-client/gateway"
	apperrors "github.com/jrsteele09/go-chat-client/internal/errors"
	"github.com/jrsteele09/go-chat-client/internal/fakebackend"
	"github.com/stretchr/testify/require"
)

const (
	testUserEmail    = "john.doe@example.com"
	testUsername     = "johndoe"
	testUserPassword = "Password123!"
)

// testFixture holds all test dependencies
type testFixture struct {
	backend *fakebackend.Server
	store   *credentials.Store
	service *auth.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	backend := fakebackend.New()
	require.NoError(t, backend.AddUser(testUserEmail, testUsername, testUserPassword))
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store, err := credentials.NewStore(repofake.NewFakeCredentialsRepo())
	require.NoError(t, err)
	gw, err := gateway.New(srv.URL, store)
	require.NoError(t, err)
	service, err := auth.NewService(gw, store)
	require.NoError(t, err)

	return &testFixture{backend: backend, store: store, service: service}
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	out := f.service.Login(context.Background(), testUserEmail, testUserPassword)
	require.True(t, out.OK, "login failed: %v", out.Failure)
}

func TestNewService(t *testing.T) {
	store, err := credentials.NewStore(repofake.NewFakeCredentialsRepo())
	require.NoError(t, err)
	_, err = auth.NewService(nil, store)
	require.Error(t, err)
}

func TestService_Login(t *testing.T) {
	t.Run("stores the session", func(t *testing.T) {
		f := setupTestFixture(t)

		out := f.service.Login(context.Background(), testUserEmail, testUserPassword)
		require.True(t, out.OK)
		require.Equal(t, credentials.Identity{Email: testUserEmail, Username: testUsername}, out.Data)

		snap := f.store.Snapshot()
		require.True(t, snap.Authenticated())
		require.NotEmpty(t, snap.RefreshToken)
		require.False(t, snap.Expiry().IsZero())

		id, ok := f.service.CurrentUser()
		require.True(t, ok)
		require.Equal(t, testUsername, id.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := setupTestFixture(t)

		out := f.service.Login(context.Background(), testUserEmail, "nope")
		require.False(t, out.OK)
		require.Equal(t, apperrors.KindAuthentication, out.Failure.Kind)
		require.Equal(t, http.StatusUnauthorized, out.Failure.StatusCode)
		require.Zero(t, f.backend.RefreshCalls())

		_, ok := f.store.AccessToken()
		require.False(t, ok)
	})

	t.Run("invalid email is rejected locally", func(t *testing.T) {
		f := setupTestFixture(t)

		out := f.service.Login(context.Background(), "not-an-email", testUserPassword)
		require.False(t, out.OK)
		require.Equal(t, apperrors.KindValidation, out.Failure.Kind)
		require.Zero(t, out.Failure.StatusCode)
		require.ErrorIs(t, out.Failure, apperrors.ErrInvalidInput)
	})

	t.Run("username falls back to email", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"access_token":"A1","refresh_token":"R1"}`))
		}))
		defer srv.Close()

		store, err := credentials.NewStore(repofake.NewFakeCredentialsRepo())
		require.NoError(t, err)
		gw, err := gateway.New(srv.URL, store)
		require.NoError(t, err)
		service, err := auth.NewService(gw, store)
		require.NoError(t, err)

		out := service.Login(context.Background(), testUserEmail, testUserPassword)
		require.True(t, out.OK)
		require.Equal(t, credentials.Identity{Email: testUserEmail, Username: testUserEmail}, out.Data)
	})

	t.Run("missing refresh token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"access_token":"A1","email":"john.doe@example.com"}`))
		}))
		defer srv.Close()

		store, err := credentials.NewStore(repofake.NewFakeCredentialsRepo())
		require.NoError(t, err)
		gw, err := gateway.New(srv.URL, store)
		require.NoError(t, err)
		service, err := auth.NewService(gw, store)
		require.NoError(t, err)

		out := service.Login(context.Background(), testUserEmail, testUserPassword)
		require.False(t, out.OK)
		require.ErrorIs(t, out.Failure, apperrors.ErrMissingTokens)
		_, ok := store.AccessToken()
		require.False(t, ok)
	})
}

func TestService_Logout(t *testing.T) {
	t.Run("clears the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)

		require.NoError(t, f.service.Logout(context.Background()))
		require.False(t, f.store.Snapshot().Authenticated())
	})

	t.Run("clears the session when the server fails", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		f.backend.FailLogout(true)

		require.NoError(t, f.service.Logout(context.Background()))
		_, ok := f.store.AccessToken()
		require.False(t, ok)
		_, ok = f.store.Identity()
		require.False(t, ok)
	})
}

func TestService_RegisterAndConfirm(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	req := apimodel.RegisterRequest{
		Email:     "jane@example.com",
		Username:  "jane_doe",
		Password:  "Password123!",
		Telephone: "+34 600 000 000",
	}

	out := f.service.Register(ctx, req)
	require.True(t, out.OK, "register failed: %v", out.Failure)
	require.Equal(t, "jane@example.com", out.Data.Email)

	t.Run("duplicate", func(t *testing.T) {
		dup := f.service.Register(ctx, req)
		require.False(t, dup.OK)
		require.Equal(t, http.StatusConflict, dup.Failure.StatusCode)
	})

	t.Run("weak password", func(t *testing.T) {
		weak := req
		weak.Email = "weak@example.com"
		weak.Password = "weak"
		res := f.service.Register(ctx, weak)
		require.False(t, res.OK)
		require.Equal(t, apperrors.KindValidation, res.Failure.Kind)
		require.Contains(t, res.Failure.RawMessage, "uppercase")
	})

	t.Run("invalid username", func(t *testing.T) {
		bad := req
		bad.Username = "_jane"
		res := f.service.Register(ctx, bad)
		require.False(t, res.OK)
		require.ErrorIs(t, res.Failure, auth.ErrUsernameEdges)
	})

	t.Run("confirm email", func(t *testing.T) {
		token, ok := f.backend.ConfirmationToken("jane@example.com")
		require.True(t, ok)

		res := f.service.ConfirmEmail(ctx, token)
		require.True(t, res.OK)
		require.Equal(t, "Email confirmed", res.Data.Message)

		again := f.service.ConfirmEmail(ctx, token)
		require.False(t, again.OK)
		require.Equal(t, apperrors.KindNotFound, again.Failure.Kind)
	})
}

func TestService_Profile(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	profile := f.service.Profile(ctx)
	require.True(t, profile.OK)
	require.Equal(t, testUsername, profile.Data.Username)

	t.Run("update username", func(t *testing.T) {
		out := f.service.UpdateProfile(ctx, apimodel.UpdateProfileRequest{Username: apimodel.Set("john_d")})
		require.True(t, out.OK)
		require.Equal(t, "john_d", out.Data.Username)

		id, ok := f.store.Identity()
		require.True(t, ok)
		require.Equal(t, "john_d", id.Username)
	})

	t.Run("wrong current password", func(t *testing.T) {
		out := f.service.UpdateProfile(ctx, apimodel.UpdateProfileRequest{
			CurrentPassword: apimodel.Set("wrong"),
			NewPassword:     apimodel.Set("Password456!"),
		})
		require.False(t, out.OK)
		require.Equal(t, http.StatusBadRequest, out.Failure.StatusCode)
	})

	t.Run("new password needs the current one", func(t *testing.T) {
		out := f.service.UpdateProfile(ctx, apimodel.UpdateProfileRequest{NewPassword: apimodel.Set("Password456!")})
		require.False(t, out.OK)
		require.ErrorIs(t, out.Failure, auth.ErrPasswordRequired)
	})

	t.Run("requires a session", func(t *testing.T) {
		g := setupTestFixture(t)
		out := g.service.Profile(ctx)
		require.False(t, out.OK)
		require.Equal(t, apperrors.KindAuthentication, out.Failure.Kind)
	})
}

func TestService_Passwords(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	reqs := f.service.PasswordRequirements(ctx)
	require.True(t, reqs.OK)
	require.Equal(t, 8, reqs.Data.MinLength)

	weak := f.service.ValidatePassword(ctx, "abc")
	require.True(t, weak.OK)
	require.False(t, weak.Data.IsValid)
	require.NotEmpty(t, weak.Data.Errors)

	strong := f.service.ValidatePassword(ctx, "Password123!")
	require.True(t, strong.OK)
	require.True(t, strong.Data.IsValid)
}
