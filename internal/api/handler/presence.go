package handler

import (
	"net/http"
	"time"

	"gamelauncher/backend/internal/apperrors"
	"gamelauncher/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

type presenceResponse struct {
	UserID   string     `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// Heartbeat refreshes last-seen for clients without a live connection.
func (h *Handler) Heartbeat(c *gin.Context) {
	at := h.Hub.Registry.Touch(auth.UserID(c))
	c.JSON(http.StatusOK, gin.H{"last_seen": at})
}

func (h *Handler) Presence(c *gin.Context) {
	userID := c.Param("user_id")
	online, lastSeen, err := h.Hub.Registry.Presence(c.Request.Context(), userID)
	if err != nil {
		h.Log.Error("read presence failed", "user_id", userID, "err", err)
		respondError(c, apperrors.Transient(err))
		return
	}

	resp := presenceResponse{UserID: userID, Online: online}
	if !lastSeen.IsZero() {
		resp.LastSeen = &lastSeen
	}
	c.JSON(http.StatusOK, resp)
}
