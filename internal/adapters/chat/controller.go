// Package chat bridges websocket connections to the room registry: it
// upgrades HTTP requests, decodes wire envelopes, and dispatches them to
// the registry's join/leave/broadcast operations.
package chat

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/PrivateChatProtocol/private-chat-server/internal/config"
	"github.com/PrivateChatProtocol/private-chat-server/internal/core"
	"github.com/PrivateChatProtocol/private-chat-server/internal/domain"
)

type Controller struct {
	Registry *core.Registry
	Cfg      *config.Config
}

func NewController(registry *core.Registry, cfg *config.Config) *Controller {
	return &Controller{Registry: registry, Cfg: cfg}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and starts the connection's pumps. The
// connection gets a fresh ID; the client token cookie only ties log lines
// of the same browser together across reconnects.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := newWsConn(uuid.NewString(), ws)
	log.Info().Str("module", "chat").
		Str("conn", conn.ID()).Str("client_token", c.GetString("client_token")).
		Msg("connection opened")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}

// handleMessage decodes one inbound envelope and dispatches by type.
// Malformed payloads and rejected joins produce a single ERROR reply to
// the sender, never a broadcast. Unknown types are logged and dropped.
func (ctl *Controller) handleMessage(conn *wsConn, data []byte) {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "chat").Str("conn", conn.ID()).Msg("bad payload")
		ctl.Registry.SendError(conn, domain.ErrorMessage("", "", "Invalid message format"))
		return
	}

	switch msg.Type {
	case domain.TypeJoinRoom:
		ctl.handleJoin(conn, msg)
	case domain.TypeLeaveRoom:
		if ctl.Registry.LeaveRoom(conn, msg.RoomID, msg.Username) {
			ctl.Registry.BroadcastUserList(msg.RoomID)
		}
	case domain.TypeChatMessage, domain.TypeImageMessage:
		msg.System = false
		ctl.Registry.BroadcastMessage(msg.RoomID, msg)
	default:
		log.Warn().Str("module", "chat").Str("type", string(msg.Type)).Msg("unknown message type")
	}
}

func (ctl *Controller) handleJoin(conn *wsConn, msg domain.Message) {
	if msg.RoomID == "" || msg.Username == "" || len(msg.Username) > domain.MaxUsernameLen {
		ctl.Registry.SendError(conn, domain.ErrorMessage(msg.RoomID, msg.Username, "invalid room or username"))
		return
	}
	if !ctl.Registry.JoinRoom(conn, msg.RoomID, msg.Username) {
		ctl.Registry.SendError(conn, domain.ErrorMessage(msg.RoomID, msg.Username,
			"Failed to join room: username already taken"))
		return
	}
	ctl.Registry.BroadcastUserList(msg.RoomID)
}
