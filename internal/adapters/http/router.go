package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/PrivateChatProtocol/private-chat-server/internal/adapters/chat"
	"github.com/PrivateChatProtocol/private-chat-server/internal/config"
	"github.com/PrivateChatProtocol/private-chat-server/internal/core"
)

// ClientTokenMiddleware tags every browser with a stable cookie token so
// reconnects of the same client can be correlated in the logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, registry *core.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PrivateChatSession", store))
	r.Use(ClientTokenMiddleware())

	h := NewHandlers(cfg, registry)
	r.GET("/", h.Index)
	r.GET("/health", h.Health)
	r.GET("/api/info", h.Info)

	ctl := chat.NewController(registry, cfg)
	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleWS(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
