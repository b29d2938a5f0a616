package realtime_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-chat-client/realtime"
	"github.com/stretchr/testify/require"
)

func TestOutbound_MarshalJSON(t *testing.T) {
	t.Run("typing keeps false flag", func(t *testing.T) {
		data, err := json.Marshal(realtime.NewTyping("bob@example.com", false))
		require.NoError(t, err)
		require.JSONEq(t, `{"type":"typing","receiver_email":"bob@example.com","is_typing":false}`, string(data))
	})

	t.Run("read receipt", func(t *testing.T) {
		data, err := json.Marshal(realtime.NewReadReceipt("bob@example.com"))
		require.NoError(t, err)
		require.JSONEq(t, `{"type":"read","sender_email":"bob@example.com"}`, string(data))
	})

	t.Run("local id is not serialised", func(t *testing.T) {
		msg := realtime.NewMessage("bob@example.com", "hi")
		require.NotEmpty(t, msg.LocalID)
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		require.NotContains(t, string(data), msg.LocalID)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := json.Marshal(realtime.Outbound{Type: "bogus"})
		require.Error(t, err)
	})
}
