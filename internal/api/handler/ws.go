package handler

import (
	"net/http"

	"gamelauncher/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Launcher clients are not browsers bound to one origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket verifies the bearer credential, then upgrades. A bad
// credential is refused before the upgrade.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	userID, err := h.Auth.Identify(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHENTICATED", "error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.Log.Warn("websocket upgrade failed", "user_id", userID, "err", err)
		return
	}

	session := h.Hub.Connect(c.Request.Context(), userID)
	client := &chathub.WebSocketClient{
		Session: session,
		Conn:    conn,
		Hub:     h.Hub,
		Log:     h.Log,
	}
	client.Run()
}
