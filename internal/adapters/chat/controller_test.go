package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrivateChatProtocol/private-chat-server/internal/config"
	"github.com/PrivateChatProtocol/private-chat-server/internal/core"
	"github.com/PrivateChatProtocol/private-chat-server/internal/domain"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	m.Run()
}

func testController() *Controller {
	return NewController(core.NewRegistry(), &config.Config{
		ReadLimit:  1 << 20,
		PingPeriod: 54 * time.Second,
	})
}

// drain pops every queued outbound message of the connection.
func drain(t *testing.T, c *wsConn) []domain.Message {
	t.Helper()
	var out []domain.Message
	for {
		select {
		case data := <-c.send:
			var msg domain.Message
			require.NoError(t, json.Unmarshal(data, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestHandleMessage_MalformedPayload(t *testing.T) {
	ctl := testController()
	conn := newWsConn("c1", nil)

	ctl.handleMessage(conn, []byte("{not json"))

	msgs := drain(t, conn)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.TypeError, msgs[0].Type)
	assert.True(t, msgs[0].System)
	assert.Equal(t, "Invalid message format", msgs[0].Content)
}

func TestHandleMessage_UnknownTypeIgnored(t *testing.T) {
	ctl := testController()
	conn := newWsConn("c1", nil)

	ctl.handleMessage(conn, []byte(`{"type":"SHRUG","roomId":"r1"}`))

	assert.Empty(t, drain(t, conn), "unknown types are dropped, not errored")
}

func TestHandleMessage_JoinRoom(t *testing.T) {
	t.Run("success sends join notice and user list", func(t *testing.T) {
		ctl := testController()
		conn := newWsConn("c1", nil)

		ctl.handleMessage(conn, []byte(`{"type":"JOIN_ROOM","roomId":"r1","username":"alice"}`))

		msgs := drain(t, conn)
		require.Len(t, msgs, 2)
		assert.Equal(t, domain.TypeJoinRoom, msgs[0].Type)
		assert.Equal(t, "@alice joined the room", msgs[0].Content)
		assert.Equal(t, domain.TypeUserList, msgs[1].Type)
		assert.Equal(t, []string{"alice"}, msgs[1].Users)
	})

	t.Run("duplicate username gets an error reply, no broadcast", func(t *testing.T) {
		ctl := testController()
		first := newWsConn("c1", nil)
		second := newWsConn("c2", nil)
		ctl.handleMessage(first, []byte(`{"type":"JOIN_ROOM","roomId":"r1","username":"alice"}`))
		drain(t, first)

		ctl.handleMessage(second, []byte(`{"type":"JOIN_ROOM","roomId":"r1","username":"alice"}`))

		replies := drain(t, second)
		require.Len(t, replies, 1)
		assert.Equal(t, domain.TypeError, replies[0].Type)
		assert.Empty(t, drain(t, first), "the room must not see the failed join")
	})

	t.Run("empty room or username is rejected at the boundary", func(t *testing.T) {
		ctl := testController()
		conn := newWsConn("c1", nil)

		ctl.handleMessage(conn, []byte(`{"type":"JOIN_ROOM","roomId":"","username":"alice"}`))
		ctl.handleMessage(conn, []byte(`{"type":"JOIN_ROOM","roomId":"r1","username":""}`))

		msgs := drain(t, conn)
		require.Len(t, msgs, 2)
		for _, msg := range msgs {
			assert.Equal(t, domain.TypeError, msg.Type)
		}
	})
}

func TestHandleMessage_LeaveRoom(t *testing.T) {
	ctl := testController()
	leaver := newWsConn("c1", nil)
	stayer := newWsConn("c2", nil)
	ctl.handleMessage(leaver, []byte(`{"type":"JOIN_ROOM","roomId":"r1","username":"alice"}`))
	ctl.handleMessage(stayer, []byte(`{"type":"JOIN_ROOM","roomId":"r1","username":"bob"}`))
	drain(t, leaver)
	drain(t, stayer)

	ctl.handleMessage(leaver, []byte(`{"type":"LEAVE_ROOM","roomId":"r1","username":"alice"}`))

	msgs := drain(t, stayer)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.TypeLeaveRoom, msgs[0].Type)
	assert.Equal(t, domain.TypeUserList, msgs[1].Type)
	assert.Equal(t, []string{"bob"}, msgs[1].Users)
}

func TestHandleMessage_ChatAndImage(t *testing.T) {
	ctl := testController()
	conn := newWsConn("c1", nil)
	ctl.handleMessage(conn, []byte(`{"type":"JOIN_ROOM","roomId":"r1","username":"alice"}`))
	drain(t, conn)

	// A client cannot forge a system message.
	ctl.handleMessage(conn, []byte(`{"type":"CHAT_MESSAGE","roomId":"r1","username":"alice","content":"hi","system":true}`))
	msgs := drain(t, conn)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].System)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Positive(t, msgs[0].Timestamp)

	ctl.handleMessage(conn, []byte(`{"type":"IMAGE_MESSAGE","roomId":"r1","username":"alice","imageData":"aGVsbG8=","caption":"pic"}`))
	msgs = drain(t, conn)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.TypeImageMessage, msgs[0].Type)
	assert.Equal(t, "aGVsbG8=", msgs[0].ImageData)
	assert.Equal(t, "pic", msgs[0].Caption)
}

func TestWsConnSend(t *testing.T) {
	t.Run("backpressure on a full queue", func(t *testing.T) {
		c := newWsConn("c1", nil)
		for i := 0; i < cap(c.send); i++ {
			require.NoError(t, c.Send([]byte("x")))
		}
		assert.ErrorIs(t, c.Send([]byte("overflow")), ErrBackpressure)
	})

	t.Run("send after close fails instead of panicking", func(t *testing.T) {
		c := newWsConn("c1", nil)
		c.Close()
		assert.Error(t, c.Send([]byte("x")))
	})
}
