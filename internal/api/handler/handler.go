package handler

import (
	"log/slog"
	"net/http"

	"gamelauncher/backend/internal/auth"
	"gamelauncher/backend/internal/chathub"
	"gamelauncher/backend/internal/logging"

	"github.com/gin-gonic/gin"
)

// Handler serves the live endpoint and the synchronous REST companion.
type Handler struct {
	Hub  *chathub.ManagerService
	Auth *auth.Authenticator
	Log  *slog.Logger
}

func NewHandler(hub *chathub.ManagerService, authn *auth.Authenticator, log *slog.Logger) *Handler {
	return &Handler{Hub: hub, Auth: authn, Log: log}
}

// NewRouter builds the gin engine with every route registered.
func (h *Handler) NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware(h.Log))

	r.GET("/healthz", h.Health)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api", h.Auth.Middleware())
	{
		api.GET("/conversations", h.ListConversations)
		api.POST("/conversations", h.RequestConversation)
		api.POST("/conversations/:id/accept", h.AcceptConversation)
		api.POST("/conversations/:id/decline", h.DeclineConversation)
		api.DELETE("/conversations/:id", h.RemoveConversation)

		api.GET("/conversations/:id/messages", h.History)
		api.POST("/conversations/:id/messages", h.SendMessage)
		api.POST("/conversations/:id/read", h.MarkRead)
		api.GET("/unread", h.Unread)

		api.POST("/presence/heartbeat", h.Heartbeat)
		api.GET("/presence/:user_id", h.Presence)
	}
	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.Hub.Registry.Count()})
}
