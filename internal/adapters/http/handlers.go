package http

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PrivateChatProtocol/private-chat-server/internal/config"
	"github.com/PrivateChatProtocol/private-chat-server/internal/core"
)

// Version of the protocol server, reported on the landing page and /api/info.
const Version = "1.0.0"

//go:embed index.html
var indexFS embed.FS

var indexTmpl = template.Must(template.ParseFS(indexFS, "index.html"))

type Handlers struct {
	cfg      *config.Config
	registry *core.Registry
}

func NewHandlers(cfg *config.Config, registry *core.Registry) *Handlers {
	return &Handlers{cfg: cfg, registry: registry}
}

// Index renders the informational landing page.
func (h *Handlers) Index(c *gin.Context) {
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = indexTmpl.Execute(c.Writer, gin.H{
		"Version": Version,
		"Port":    h.cfg.Port,
	})
}

// Health is the liveness check. It reads registry counters but never
// mutates chat state.
func (h *Handlers) Health(c *gin.Context) {
	rooms, connections := h.registry.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rooms":       rooms,
		"connections": connections,
	})
}

// Info is the machine-readable service descriptor.
func (h *Handlers) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "Private Chat Protocol",
		"version": Version,
		"websocket": gin.H{
			"path": "/ws",
			"messageTypes": []string{
				"JOIN_ROOM", "LEAVE_ROOM", "CHAT_MESSAGE",
				"IMAGE_MESSAGE", "USER_LIST", "ERROR",
			},
		},
	})
}
