package handlers

import (
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/petterhj/yt-dvr/websocket"
)

// SocketHandler upgrades observers onto the progress broadcast hub.
type SocketHandler struct {
	hub websocket.Hub
	log *log.Logger
}

// NewSocketHandler creates a new websocket handler.
func NewSocketHandler(hub websocket.Hub, logger *log.Logger) *SocketHandler {
	return &SocketHandler{hub: hub, log: logger}
}

// Connect upgrades the request and registers the client with the hub.
func (h *SocketHandler) Connect(c *gin.Context) {
	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "err", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, h.log)
	h.hub.RegisterClient(client)
	client.StartPumps()
}
