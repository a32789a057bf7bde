package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/broadcast"
	"github.com/noah-isme/classroom-sync-api/internal/middleware"
)

// WSHandler upgrades broadcast channel connections.
type WSHandler struct {
	hub    *broadcast.Hub
	logger *zap.Logger
}

// NewWSHandler constructs handler.
func NewWSHandler(hub *broadcast.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: logger}
}

// Serve godoc
// @Summary Open the class broadcast channel
// @Tags Broadcast
// @Param sender query string false "Stable sender identity"
// @Success 101 "Switching Protocols"
// @Router /ws [get]
func (h *WSHandler) Serve(c *gin.Context) {
	senderID := c.Query("sender")
	if senderID == "" {
		if claims, ok := middleware.CurrentUser(c); ok {
			senderID = claims.UserID
		}
	}
	if err := h.hub.ServeConn(c.Writer, c.Request, senderID); err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
	}
}
