package handler

import (
	"net/http"

	"gamelauncher/backend/internal/apperrors"
	"gamelauncher/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

type requestConversationBody struct {
	PeerID string `json:"peer_id"`
}

func (h *Handler) ListConversations(c *gin.Context) {
	list, err := h.Hub.Service.List(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

func (h *Handler) RequestConversation(c *gin.Context) {
	var body requestConversationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, apperrors.InvalidArg("invalid request body"))
		return
	}

	conv, err := h.Hub.Service.Request(c.Request.Context(), auth.UserID(c), body.PeerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *Handler) AcceptConversation(c *gin.Context) {
	h.respond(c, true)
}

func (h *Handler) DeclineConversation(c *gin.Context) {
	h.respond(c, false)
}

func (h *Handler) respond(c *gin.Context, accept bool) {
	conv, err := h.Hub.Service.Respond(c.Request.Context(), auth.UserID(c), c.Param("id"), accept)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *Handler) RemoveConversation(c *gin.Context) {
	if err := h.Hub.Service.Remove(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
