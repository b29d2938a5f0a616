package credentials_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-chat-client/credentials"
	"github.com/jrsteele09/go-chat-client/credentials/repofake"
	apperrors "github.com/jrsteele09/go-chat-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*credentials.Store, *repofake.FakeCredentialsRepo) {
	t.Helper()
	repo := repofake.NewFakeCredentialsRepo()
	s, err := credentials.NewStore(repo)
	require.NoError(t, err)
	return s, repo
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "a@b.com",
		"exp":   exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestStore_LoginScenario(t *testing.T) {
	s, repo := newStore(t)

	err := s.SaveLogin("A1", "R1", credentials.Identity{Email: "a@b.com", Username: "alice"})
	require.NoError(t, err)

	access, ok := s.AccessToken()
	require.True(t, ok)
	require.Equal(t, "A1", access)

	refresh, ok := s.RefreshToken()
	require.True(t, ok)
	require.Equal(t, "R1", refresh)

	id, ok := s.Identity()
	require.True(t, ok)
	require.Equal(t, credentials.Identity{Email: "a@b.com", Username: "alice"}, id)

	legacy, err := repo.Get(credentials.KeyLegacyToken)
	require.NoError(t, err)
	require.Equal(t, "A1", legacy)
}

func TestStore_SaveLogin(t *testing.T) {
	t.Run("username falls back to email", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.SaveLogin("A1", "R1", credentials.Identity{Email: "a@b.com"}))
		id, _ := s.Identity()
		require.Equal(t, "a@b.com", id.Username)
	})

	t.Run("missing tokens", func(t *testing.T) {
		s, repo := newStore(t)
		err := s.SaveLogin("A1", "", credentials.Identity{Email: "a@b.com"})
		require.ErrorIs(t, err, apperrors.ErrMissingTokens)
		require.Equal(t, 0, repo.Len())
	})

	t.Run("missing identity", func(t *testing.T) {
		s, _ := newStore(t)
		err := s.SaveLogin("A1", "R1", credentials.Identity{})
		require.ErrorIs(t, err, apperrors.ErrMissingIdentity)
	})
}

func TestStore_Save(t *testing.T) {
	t.Run("requires identity", func(t *testing.T) {
		s, repo := newStore(t)
		err := s.Save("A2", "R2")
		require.ErrorIs(t, err, apperrors.ErrMissingIdentity)
		require.Equal(t, 0, repo.Len())
		_, ok := s.AccessToken()
		require.False(t, ok)
	})

	t.Run("keeps identity", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.SaveLogin("A1", "R1", credentials.Identity{Email: "a@b.com", Username: "alice"}))
		require.NoError(t, s.Save("A2", "R2"))

		c := s.Snapshot()
		require.Equal(t, "A2", c.AccessToken)
		require.Equal(t, "R2", c.RefreshToken)
		require.Equal(t, "alice", c.Identity.Username)
	})

	t.Run("failed write leaves snapshot untouched", func(t *testing.T) {
		s, repo := newStore(t)
		require.NoError(t, s.SaveLogin("A1", "R1", credentials.Identity{Email: "a@b.com"}))

		repo.FailApply = errors.New("disk full")
		require.Error(t, s.Save("A2", "R2"))

		c := s.Snapshot()
		require.Equal(t, "A1", c.AccessToken)
		require.Equal(t, "R1", c.RefreshToken)
	})
}

func TestStore_SnapshotIsConsistentUnderConcurrentSaves(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.SaveLogin("A0", "R0", credentials.Identity{Email: "a@b.com"}))

	pairs := map[string]string{"A0": "R0"}
	for i := 1; i <= 20; i++ {
		pairs["A"+string(rune('a'+i))] = "R" + string(rune('a'+i))
	}

	var wg sync.WaitGroup
	for access, refresh := range pairs {
		wg.Add(1)
		go func(access, refresh string) {
			defer wg.Done()
			if err := s.Save(access, refresh); err != nil {
				t.Error(err)
			}
		}(access, refresh)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		c := s.Snapshot()
		require.Equal(t, pairs[c.AccessToken], c.RefreshToken)
		require.NotNil(t, c.Identity)
		select {
		case <-done:
			return
		default:
		}
	}
}

func TestStore_Clear(t *testing.T) {
	s, repo := newStore(t)
	require.NoError(t, s.SaveLogin("A1", "R1", credentials.Identity{Email: "a@b.com", Username: "alice"}))

	require.NoError(t, s.Clear())
	require.Equal(t, 0, repo.Len())

	_, ok := s.AccessToken()
	require.False(t, ok)
	_, ok = s.RefreshToken()
	require.False(t, ok)
	_, ok = s.Identity()
	require.False(t, ok)

	_, err := s.Token()
	require.ErrorIs(t, err, apperrors.ErrNoSession)
}

func TestStore_UpdateIdentity(t *testing.T) {
	s, _ := newStore(t)
	require.ErrorIs(t, s.UpdateIdentity(credentials.Identity{Email: "a@b.com"}), apperrors.ErrNoSession)

	require.NoError(t, s.SaveLogin("A1", "R1", credentials.Identity{Email: "a@b.com", Username: "alice"}))
	require.NoError(t, s.UpdateIdentity(credentials.Identity{Email: "a@b.com", Username: "alicia"}))

	id, _ := s.Identity()
	require.Equal(t, "alicia", id.Username)
}

func TestStore_Load(t *testing.T) {
	t.Run("legacy token key", func(t *testing.T) {
		repo := repofake.NewFakeCredentialsRepo()
		repo.Put(credentials.KeyLegacyToken, "OLD")
		repo.Put(credentials.KeyRefreshToken, "R1")
		repo.Put(credentials.KeyUserEmail, "a@b.com")

		s, err := credentials.NewStore(repo)
		require.NoError(t, err)
		access, ok := s.AccessToken()
		require.True(t, ok)
		require.Equal(t, "OLD", access)
		id, _ := s.Identity()
		require.Equal(t, "a@b.com", id.Username)
	})

	t.Run("token without identity is discarded", func(t *testing.T) {
		repo := repofake.NewFakeCredentialsRepo()
		repo.Put(credentials.KeyAccessToken, "A1")
		repo.Put(credentials.KeyRefreshToken, "R1")

		s, err := credentials.NewStore(repo)
		require.NoError(t, err)
		_, ok := s.AccessToken()
		require.False(t, ok)
		require.Equal(t, 0, repo.Len())
	})

	t.Run("nil repo", func(t *testing.T) {
		_, err := credentials.NewStore(nil)
		require.Error(t, err)
	})
}

func TestCredentials_Expiry(t *testing.T) {
	now := time.Now()

	t.Run("expired jwt", func(t *testing.T) {
		c := credentials.Credentials{AccessToken: signedToken(t, now.Add(-time.Minute))}
		require.True(t, c.Expired(now))
	})

	t.Run("valid jwt", func(t *testing.T) {
		exp := now.Add(time.Hour)
		c := credentials.Credentials{AccessToken: signedToken(t, exp), RefreshToken: "R1"}
		require.False(t, c.Expired(now))

		tok := c.OAuth2Token()
		require.Equal(t, "Bearer", tok.TokenType)
		require.Equal(t, exp.Unix(), tok.Expiry.Unix())
	})

	t.Run("opaque token has no expiry", func(t *testing.T) {
		c := credentials.Credentials{AccessToken: "A1"}
		require.True(t, c.Expiry().IsZero())
		require.False(t, c.Expired(now))
	})
}
