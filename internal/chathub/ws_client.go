package chathub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"gamelauncher/backend/internal/apperrors"
	"gamelauncher/backend/internal/config"
	"gamelauncher/backend/internal/models"

	"github.com/gorilla/websocket"
)

// WebSocketClient pumps one Session over one WebSocket connection.
type WebSocketClient struct {
	Session *Session
	Conn    *websocket.Conn
	Hub     *ManagerService
	Log     *slog.Logger
}

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// readPump decodes client events until the connection fails. It owns the
// session teardown.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Disconnect(c.Session)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Log.Info("websocket read failed", "user_id", c.Session.UserID, "session_id", c.Session.ID, "err", err)
			}
			return
		}

		var ev models.ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.Session.Deliver(models.ErrorEvent(string(apperrors.CodeInvalidArgument), "malformed event", ""))
			continue
		}

		c.Hub.HandleEvent(context.Background(), c.Session, ev)
	}
}

// writePump drains the session buffer into the connection and keeps it alive
// with pings. A closed buffer ends the connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Session.Events():
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
