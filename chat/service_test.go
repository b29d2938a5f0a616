package chat_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-chat-client/auth"
	"github.com/jrsteele09/go-chat-client/chat"
	"github.com/jrsteele09/go-chat-client/credentials/repofake"
	"github.com/jrsteele09/go-chat-client/internal/config"
	apperrors "github.com/jrsteele09/go-chat-client/internal/errors"
	"github.com/jrsteele09/go-chat-client/internal/fakebackend"
	"github.com/jrsteele09/go-chat-client/realtime"
	"github.com/stretchr/testify/require"
)

const (
	aliceEmail = "alice@example.com"
	bobEmail   = "bob@example.com"
	password   = "Secret123!"

	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

type testConfig struct {
	config.Transport
	apiURL string
	wsURL  string
}

func (c testConfig) GetAPIBaseURL() string { return c.apiURL }
func (c testConfig) GetWSBaseURL() string { return c.wsURL }
func (c testConfig) GetReconnectInterval() time.Duration { return 10 * time.Millisecond }

type chatFixture struct {
	backend *fakebackend.Server
	cfg     testConfig
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	backend := fakebackend.New()
	require.NoError(t, backend.AddUser(aliceEmail, "alice", password))
	require.NoError(t, backend.AddUser(bobEmail, "bob", password))
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	return &chatFixture{
		backend: backend,
		cfg: testConfig{
			apiURL: srv.URL,
			wsURL:  "ws" + strings.TrimPrefix(srv.URL, "http"),
		},
	}
}

// client returns a logged in client for email that is not yet connected.
func (f *chatFixture) client(t *testing.T, email string) *chat.Client {
	t.Helper()
	c, err := chat.NewClient(f.cfg, repofake.NewFakeCredentialsRepo())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	out := c.Auth.Login(context.Background(), email, password)
	require.True(t, out.OK, "login failed: %v", out.Failure)
	return c
}

// start connects c and waits until the backend has registered the socket for
// email, so frames addressed to it are not lost.
func (f *chatFixture) start(t *testing.T, c *chat.Client, email string) {
	t.Helper()
	require.NoError(t, c.Chat.Start())
	require.Eventually(t, func() bool {
		return c.Chat.Status() == realtime.Connected && f.backend.Connections(email) > 0
	}, waitFor, tick)
}

func TestNewService(t *testing.T) {
	_, err := chat.NewService(nil, nil)
	require.Error(t, err)
}

func TestService_ReceivesSanitisedMessages(t *testing.T) {
	f := newChatFixture(t)
	alice := f.client(t, aliceEmail)
	bob := f.client(t, bobEmail)

	received := make(chan realtime.ChatMessage, 1)
	alice.Chat.OnChatMessage(func(msg realtime.ChatMessage) {
		received <- msg
	})
	f.start(t, alice, aliceEmail)
	f.start(t, bob, bobEmail)

	_, err := bob.Chat.SendMessage(aliceEmail, "<b>hello</b>")
	require.NoError(t, err)

	select {
	case msg := <-received:
		require.Equal(t, "hello", msg.Content)
		require.Equal(t, bobEmail, msg.SenderEmail)
	case <-time.After(waitFor):
		t.Fatal("message not delivered")
	}
}

func TestService_SendWhileDisconnected(t *testing.T) {
	f := newChatFixture(t)
	alice := f.client(t, aliceEmail)

	var ids []string
	for _, content := range []string{"first", "second"} {
		id, err := alice.Chat.SendMessage(bobEmail, content)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.Eventually(t, func() bool { return len(f.backend.Messages()) == 2 }, waitFor, tick)
	messages := f.backend.Messages()
	require.Equal(t, "first", messages[0].Content)
	require.Equal(t, "second", messages[1].Content)
	require.Eventually(t, func() bool { return len(alice.Chat.Pending()) == 0 }, waitFor, tick)
	require.NotEqual(t, ids[0], ids[1])
}

func TestService_SendMessageValidation(t *testing.T) {
	f := newChatFixture(t)
	alice := f.client(t, aliceEmail)

	_, err := alice.Chat.SendMessage(bobEmail, "   ")
	require.ErrorIs(t, err, auth.ErrMessageEmpty)

	_, err = alice.Chat.SendMessage(bobEmail, strings.Repeat("a", auth.MaxMessageLength+1))
	require.ErrorIs(t, err, auth.ErrMessageTooLong)

	_, err = alice.Chat.SendMessage("bob", "hi")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	require.Empty(t, alice.Chat.Pending())
}

func TestService_History(t *testing.T) {
	f := newChatFixture(t)
	alice := f.client(t, aliceEmail)
	f.start(t, alice, aliceEmail)

	for _, content := range []string{"one", "two", "<i>three</i>"} {
		_, err := alice.Chat.SendMessage(bobEmail, content)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return len(f.backend.Messages()) == 3 }, waitFor, tick)

	all := alice.Chat.FetchHistory(context.Background(), bobEmail, 0)
	require.True(t, all.OK)
	require.Len(t, all.Data, 3)
	require.Equal(t, "three", all.Data[2].Content)

	last := alice.Chat.FetchHistory(context.Background(), bobEmail, 2)
	require.True(t, last.OK)
	require.Len(t, last.Data, 2)
	require.Equal(t, "two", last.Data[0].Content)

	missing := alice.Chat.FetchHistory(context.Background(), "nobody@example.com", 0)
	require.False(t, missing.OK)
	require.Equal(t, apperrors.KindNotFound, missing.Failure.Kind)
}

func TestService_UnreadAndMarkRead(t *testing.T) {
	f := newChatFixture(t)
	alice := f.client(t, aliceEmail)
	bob := f.client(t, bobEmail)

	receipts := make(chan realtime.ReadReceipt, 1)
	bob.Chat.OnReadReceipt(func(r realtime.ReadReceipt) {
		receipts <- r
	})
	f.start(t, bob, bobEmail)

	for _, content := range []string{"hi", "are you there?"} {
		_, err := bob.Chat.SendMessage(aliceEmail, content)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return len(f.backend.Messages()) == 2 }, waitFor, tick)

	ctx := context.Background()
	unread := alice.Chat.UnreadCount(ctx)
	require.True(t, unread.OK)
	require.Equal(t, 2, unread.Data.UnreadCount)

	rooms := alice.Chat.FetchRooms(ctx)
	require.True(t, rooms.OK)
	require.Len(t, rooms.Data, 1)
	require.Equal(t, bobEmail, rooms.Data[0].OtherUserEmail)
	require.Equal(t, 2, rooms.Data[0].UnreadCount)
	require.Equal(t, "are you there?", rooms.Data[0].LastMessage.Content)

	users := alice.Chat.FetchUsers(ctx)
	require.True(t, users.OK)
	require.Len(t, users.Data, 1)
	require.True(t, *users.Data[0].IsOnline)

	marked := alice.Chat.MarkAllRead(ctx, bobEmail)
	require.True(t, marked.OK)
	require.True(t, marked.Data.Success)

	select {
	case r := <-receipts:
		require.Equal(t, aliceEmail, r.ReaderEmail)
	case <-time.After(waitFor):
		t.Fatal("no read receipt")
	}

	unread = alice.Chat.UnreadCount(ctx)
	require.True(t, unread.OK)
	require.Zero(t, unread.Data.UnreadCount)
}

func TestService_Typing(t *testing.T) {
	f := newChatFixture(t)
	alice := f.client(t, aliceEmail)
	bob := f.client(t, bobEmail)

	require.False(t, alice.Chat.SetTyping(bobEmail, true))
	require.False(t, alice.Chat.MarkRead(bobEmail))
	require.Empty(t, alice.Chat.Pending())

	typing := make(chan realtime.Typing, 1)
	bob.Chat.OnTyping(func(ev realtime.Typing) {
		typing <- ev
	})
	f.start(t, bob, bobEmail)
	f.start(t, alice, aliceEmail)

	require.True(t, alice.Chat.SetTyping(bobEmail, true))
	select {
	case ev := <-typing:
		require.Equal(t, aliceEmail, ev.SenderEmail)
		require.True(t, ev.IsTyping)
	case <-time.After(waitFor):
		t.Fatal("typing not delivered")
	}
}

func TestService_ConnectionStatusAndUserStatus(t *testing.T) {
	f := newChatFixture(t)
	alice := f.client(t, aliceEmail)
	bob := f.client(t, bobEmail)

	var connected atomic.Bool
	alice.Chat.OnConnectionStatus(func(c bool) { connected.Store(c) })
	online := make(chan realtime.UserStatus, 2)
	alice.Chat.OnUserStatus(func(s realtime.UserStatus) { online <- s })
	f.start(t, alice, aliceEmail)
	require.Eventually(t, connected.Load, waitFor, tick)

	f.start(t, bob, bobEmail)
	select {
	case s := <-online:
		require.Equal(t, bobEmail, s.UserEmail)
		require.True(t, s.IsOnline)
	case <-time.After(waitFor):
		t.Fatal("no user_status")
	}
}

func TestService_SessionEnded(t *testing.T) {
	f := newChatFixture(t)
	alice := f.client(t, aliceEmail)
	f.start(t, alice, aliceEmail)

	var once sync.Once
	ended := make(chan error, 1)
	alice.Chat.OnSessionEnded(func(err error) {
		once.Do(func() { ended <- err })
	})

	f.backend.ExpireAccessTokens()
	f.backend.FailRefresh(true)

	out := alice.Chat.FetchUsers(context.Background())
	require.False(t, out.OK)
	require.Equal(t, apperrors.KindAuthentication, out.Failure.Kind)

	select {
	case err := <-ended:
		require.ErrorIs(t, err, apperrors.ErrAuthentication)
	case <-time.After(waitFor):
		t.Fatal("session end not reported")
	}
	require.Equal(t, realtime.Disconnected, alice.Chat.Status())
	require.False(t, alice.Store.Snapshot().Authenticated())
}

func TestClient_LogoutDisconnects(t *testing.T) {
	f := newChatFixture(t)
	alice := f.client(t, aliceEmail)
	f.start(t, alice, aliceEmail)

	require.NoError(t, alice.Logout(context.Background()))

	require.Equal(t, realtime.Disconnected, alice.Chat.Status())
	require.False(t, alice.Store.Snapshot().Authenticated())
	require.Eventually(t, func() bool { return f.backend.Connections(aliceEmail) == 0 }, waitFor, tick)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, f.backend.WebSocketAttempts())
}

func TestService_StopClearsSubscriptions(t *testing.T) {
	f := newChatFixture(t)
	alice := f.client(t, aliceEmail)

	var calls atomic.Int32
	alice.Chat.OnConnectionStatus(func(bool) { calls.Add(1) })
	f.start(t, alice, aliceEmail)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, tick)

	alice.Chat.Stop()
	require.Equal(t, realtime.Disconnected, alice.Chat.Status())

	f.start(t, alice, aliceEmail)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
}
